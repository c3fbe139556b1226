package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jgoulah/gridmeter/internal/config"
	"github.com/jgoulah/gridmeter/internal/database"
	"github.com/jgoulah/gridmeter/pkg/models"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "gridmeter",
	Short: "Track electricity usage by usage method",
	Long: `GridMeter keeps a local SQLite ledger of electricity usage records.
Every record is tagged with how the energy was used: consumption, generation,
storage charge or discharge, or an optimizer-driven adjustment. Records can be
imported from utility CSV exports and published to Home Assistant or MQTT.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// parseMethodFlag returns 0 for an empty flag so callers can treat it as "any"
func parseMethodFlag(s string) (models.ElectricityUsageMethod, error) {
	if s == "" {
		return 0, nil
	}
	m, err := models.ParseElectricityUsageMethodValue(s)
	if err != nil {
		return 0, fmt.Errorf("parsing --method: %w", err)
	}
	return m, nil
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	// Try absolute date format first
	t, err := time.Parse("2006-01-02", dateStr)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		daysStr := dateStr[:len(dateStr)-1]
		var days int
		if _, err := fmt.Sscanf(daysStr, "%d", &days); err == nil {
			return daysAgo(days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}

// daysAgo returns UTC midnight n days before today
func daysAgo(n int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -n)
}

// dateRange parses optional --since/--until values
func dateRange(since, until string) (time.Time, time.Time, error) {
	var sinceDate, untilDate time.Time
	var err error
	if since != "" {
		sinceDate, err = parseDate(since)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --since date: %w", err)
		}
	}
	if until != "" {
		untilDate, err = parseDate(until)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --until date: %w", err)
		}
	}
	return sinceDate, untilDate, nil
}
