package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jgoulah/gridmeter/internal/database"
	"github.com/jgoulah/gridmeter/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	exportService string
	exportMethod  string
	exportSince   string
	exportUntil   string
	exportFormat  string
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored usage data as JSON or CBOR",
	Long: `Writes stored usage records to stdout or a file. JSON output is an array of
records with the usage method as its integer value. CBOR output is a stream of
records with integer map keys, the same encoding used for MQTT when
mqtt.format is cbor.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportService, "service", "", "Filter by service")
	exportCmd.Flags().StringVar(&exportMethod, "method", "", "Filter by usage method (name, slug or 1-6)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "Only export data since this date (YYYY-MM-DD or relative like 7d)")
	exportCmd.Flags().StringVar(&exportUntil, "until", "", "Only export data until this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format (json or cbor)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "cbor" {
		return fmt.Errorf("unknown format: %s (available: json, cbor)", exportFormat)
	}

	method, err := parseMethodFlag(exportMethod)
	if err != nil {
		return err
	}
	since, until, err := dateRange(exportSince, exportUntil)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	data, err := db.ListUsage(database.UsageFilter{
		Service: exportService,
		Method:  method,
		Since:   since,
		Until:   until,
	})
	if err != nil {
		return fmt.Errorf("listing data: %w", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch exportFormat {
	case "cbor":
		enc := wire.NewEncoder(out)
		for _, record := range data {
			rec, err := wire.FromUsage(record)
			if err != nil {
				return fmt.Errorf("encoding record %d: %w", record.ID, err)
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encoding record %d: %w", record.ID, err)
			}
		}
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("encoding records: %w", err)
		}
	}

	if exportOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d records to %s\n", len(data), exportOutput)
	}
	return nil
}
