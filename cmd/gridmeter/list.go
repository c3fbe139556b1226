package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/gridmeter/internal/database"
	"github.com/jgoulah/gridmeter/pkg/models"
	"github.com/spf13/cobra"
)

var (
	listService string
	listMethod  string
	listSince   string
	listUntil   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored usage data",
	Long:  `Displays stored electrical usage data with per-method totals and net grid usage.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listService, "service", "", "Filter by service")
	listCmd.Flags().StringVar(&listMethod, "method", "", "Filter by usage method (name, slug or 1-6)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only list data since this date (YYYY-MM-DD or relative like 7d)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Only list data until this date (YYYY-MM-DD)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	method, err := parseMethodFlag(listMethod)
	if err != nil {
		return err
	}
	since, until, err := dateRange(listSince, listUntil)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	services := []string{}
	if listService != "" {
		services = append(services, listService)
	} else {
		services, err = db.ListServices()
		if err != nil {
			return fmt.Errorf("listing services: %w", err)
		}
	}

	if len(services) == 0 {
		fmt.Fprintln(out, "No data found")
		return nil
	}

	for _, service := range services {
		data, err := db.ListUsage(database.UsageFilter{
			Service: service,
			Method:  method,
			Since:   since,
			Until:   until,
		})
		if err != nil {
			return fmt.Errorf("listing data for %s: %w", service, err)
		}

		if len(data) == 0 {
			fmt.Fprintf(out, "No data found for %s\n", service)
			continue
		}

		fmt.Fprintf(out, "\n%s Usage Data:\n", service)
		fmt.Fprintln(out, "------------------------------------------------------------")
		fmt.Fprintf(out, "%-12s  %-8s  %-30s  %10s\n", "Date", "Start", "Method", "kWh")
		fmt.Fprintln(out, "------------------------------------------------------------")

		for _, record := range data {
			start := ""
			if !record.StartTime.IsZero() {
				start = record.StartTime.Format("15:04")
			}
			fmt.Fprintf(out, "%-12s  %-8s  %-30s  %10.2f\n", record.Date.Format("2006-01-02"), start, record.Method, record.KWh)
		}

		summary := models.Summarize(data)
		fmt.Fprintln(out, "------------------------------------------------------------")
		for _, m := range models.ElectricityUsageMethods() {
			if total, ok := summary.ByMethod[m]; ok {
				fmt.Fprintf(out, "%-30s  %s kWh\n", m, humanize.CommafWithDigits(total, 2))
			}
		}
		fmt.Fprintf(out, "Net grid usage: %s kWh (%s records)\n",
			humanize.CommafWithDigits(summary.Net, 2), humanize.Comma(int64(summary.Records)))

		if rate := cfg.GetRate(service); rate > 0 {
			fmt.Fprintf(out, "Estimated cost: $%.2f at $%.4f/kWh\n", summary.Net*rate, rate)
		}
	}

	counts, err := db.CountByMethod(listService)
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}
	fmt.Fprintln(out, "\nStored records by method:")
	for _, m := range models.ElectricityUsageMethods() {
		if n := counts[m]; n > 0 {
			fmt.Fprintf(out, "  %-30s  %s\n", m, humanize.Comma(int64(n)))
		}
	}

	return nil
}
