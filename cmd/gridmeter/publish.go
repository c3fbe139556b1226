package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/gridmeter/internal/database"
	"github.com/jgoulah/gridmeter/internal/publisher"
	"github.com/spf13/cobra"
)

var (
	publishService string
	publishMethod  string
	publishSince   string
	publishUntil   string
	publishAll     bool
	publishLimit   int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish usage data to Home Assistant and MQTT",
	Long: `Reads stored electrical usage data from the database and publishes it to Home Assistant
via HTTP API and/or to an MQTT broker, depending on which are enabled in config.

Each reading goes to the Home Assistant entity configured for its usage method
(home_assistant.method_entities), falling back to home_assistant.entity_id.
MQTT topics are <topic_prefix>/<service>/<method slug>.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishService, "service", "", "Service to publish (default: all services)")
	publishCmd.Flags().StringVar(&publishMethod, "method", "", "Only publish this usage method (name, slug or 1-6)")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish data until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish per service (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	method, err := parseMethodFlag(publishMethod)
	if err != nil {
		return err
	}
	since, until, err := dateRange(publishSince, publishUntil)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.HomeAssistant.Enabled && !cfg.MQTT.Enabled {
		return fmt.Errorf("neither Home Assistant nor MQTT is enabled in config")
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	services := []string{}
	if publishService != "" {
		services = append(services, publishService)
	} else {
		services, err = db.ListServices()
		if err != nil {
			return fmt.Errorf("listing services: %w", err)
		}
	}

	totalPublished := 0
	for _, service := range services {
		filter := database.UsageFilter{Service: service, Method: method, Since: since, Until: until}

		list := db.ListUnpublishedUsage
		if publishAll {
			list = db.ListUsage
		}
		data, err := list(filter)
		if err != nil {
			return fmt.Errorf("listing data for %s: %w", service, err)
		}

		if len(data) == 0 {
			if publishAll {
				fmt.Fprintf(out, "No data found for %s\n", service)
			} else {
				fmt.Fprintf(out, "No unpublished data found for %s\n", service)
			}
			continue
		}

		if publishLimit > 0 && len(data) > publishLimit {
			data = data[:publishLimit]
			fmt.Fprintf(out, "Limiting to %d records (--limit flag)\n", publishLimit)
		}

		fmt.Fprintf(out, "Publishing %d records for %s...\n", len(data), service)
		published := 0
		for i, record := range data {
			fmt.Fprintf(out, "[%d/%d] Publishing %s %s (%.2f kWh)... ", i+1, len(data), record.Date.Format("2006-01-02"), record.Method, record.KWh)
			if err := pub.Publish(record); err != nil {
				fmt.Fprintf(out, "FAILED: %v\n", err)
				continue
			}

			if err := db.MarkPublished(record.ID); err != nil {
				fmt.Fprintf(out, "✓ (warning: failed to mark as published: %v)\n", err)
			} else {
				fmt.Fprintf(out, "✓\n")
			}
			published++
		}

		fmt.Fprintf(out, "Successfully published %d/%d records for %s\n", published, len(data), service)
		totalPublished += published
	}

	fmt.Fprintf(out, "\nTotal records published: %d\n", totalPublished)
	return nil
}
