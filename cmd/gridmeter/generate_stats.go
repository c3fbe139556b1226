package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/gridmeter/internal/config"
	"github.com/jgoulah/gridmeter/internal/publisher"
	"github.com/spf13/cobra"
)

var statsEntity string

var generateStatsCmd = &cobra.Command{
	Use:   "generate-stats",
	Short: "Generate statistics in Home Assistant from backfilled states",
	Long: `Calls AppDaemon endpoint to compile statistics from individual hourly states.
Runs once per configured entity (the default entity plus every method entity)
unless --entity is given. Run this after publishing to populate the Energy dashboard.`,
	Args: cobra.NoArgs,
	RunE: runGenerateStats,
}

func init() {
	generateStatsCmd.Flags().StringVar(&statsEntity, "entity", "", "Only generate statistics for this entity")
	rootCmd.AddCommand(generateStatsCmd)
}

func runGenerateStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Generate Statistics started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	// Statistics only need the HTTP side
	pub, err := publisher.New(config.MQTTConfig{}, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	entities := cfg.HomeAssistant.Entities()
	if statsEntity != "" {
		entities = []string{statsEntity}
	}

	for _, entity := range entities {
		fmt.Fprintf(out, "Generating statistics for %s...\n", entity)
		result, err := pub.GenerateStatistics(entity)
		if err != nil {
			return fmt.Errorf("generating statistics for %s: %w", entity, err)
		}

		fmt.Fprintf(out, "✓ Statistics generated successfully\n")
		fmt.Fprintf(out, "  - Inserted: %d new statistics records\n", result.Inserted)
		fmt.Fprintf(out, "  - Updated: %d existing statistics records\n", result.Updated)
		fmt.Fprintf(out, "  - Total hours: %d\n", result.TotalHours)
	}

	return nil
}
