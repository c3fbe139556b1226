package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jgoulah/gridmeter/internal/importer"
	"github.com/spf13/cobra"
)

var (
	importMethod string
	importSince  string
)

var importCmd = &cobra.Command{
	Use:   "import [service] [file.csv]",
	Short: "Import usage data from a utility CSV export",
	Long: `Reads an electricity usage CSV export and stores it in the local SQLite database.
The date and usage columns are required. Start time, end time and a "method"
column are used when present; rows without a method get --method, or the
service_methods/default_method setting from config.

When days_to_fetch is set in config and --since is not given, rows older than
that window are skipped.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importMethod, "method", "", "Usage method for rows without one (name, slug or 1-6)")
	importCmd.Flags().StringVar(&importSince, "since", "", "Only import rows since this date (YYYY-MM-DD or relative like 7d)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	batch := uuid.NewString()
	fmt.Fprintf(out, "=== Import %s started at %s ===\n", batch[:8], time.Now().Format("2006-01-02 15:04:05 MST"))

	service, path := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	method := cfg.GetMethod(service)
	if importMethod != "" {
		method, err = parseMethodFlag(importMethod)
		if err != nil {
			return err
		}
	}

	var since time.Time
	switch {
	case importSince != "":
		since, err = parseDate(importSince)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
	case cfg.DaysToFetch > 0:
		since = daysAgo(cfg.GetDaysToFetch())
	}

	fmt.Fprintf(out, "Reading %s for %s (default method %s)...\n", path, service, method)
	res, err := importer.ParseFile(path, importer.Options{
		Service: service,
		Method:  method,
		Since:   since,
	})
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	if len(res.Records) == 0 {
		fmt.Fprintf(out, "No data found (%s rows skipped)\n", humanize.Comma(int64(res.Skipped)))
		return nil
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	inserted := 0
	for i := range res.Records {
		ok, err := db.InsertUsage(&res.Records[i])
		if err != nil {
			return fmt.Errorf("inserting usage data: %w", err)
		}
		if ok {
			inserted++
		}
	}

	fmt.Fprintf(out, "✓ Stored %s new records, %s duplicates, %s rows skipped\n",
		humanize.Comma(int64(inserted)),
		humanize.Comma(int64(len(res.Records)-inserted)),
		humanize.Comma(int64(res.Skipped)))
	return nil
}
