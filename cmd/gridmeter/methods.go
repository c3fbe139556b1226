package main

import (
	"encoding/json"
	"fmt"

	"github.com/jgoulah/gridmeter/pkg/models"
	"github.com/spf13/cobra"
)

var methodsJSON bool

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the electricity usage methods and their stored values",
	Long: `Prints every usage method with the integer stored in the database and sent
over MQTT. These values are stable; imports and config files may use either the
name, the snake_case slug or the integer.`,
	Args: cobra.NoArgs,
	RunE: runMethods,
}

func init() {
	methodsCmd.Flags().BoolVar(&methodsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(methodsCmd)
}

type methodInfo struct {
	Value     int    `json:"value"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	GridSign  int    `json:"grid_sign"`
	Storage   bool   `json:"storage"`
	Optimized bool   `json:"optimized"`
}

func runMethods(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var infos []methodInfo
	for _, m := range models.ElectricityUsageMethods() {
		infos = append(infos, methodInfo{
			Value:     m.Int(),
			Name:      m.String(),
			Slug:      m.Slug(),
			GridSign:  m.GridSign(),
			Storage:   m.IsStorage(),
			Optimized: m.IsOptimized(),
		})
	}

	if methodsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	fmt.Fprintf(out, "%-5s  %-30s  %-32s  %4s\n", "Value", "Name", "Slug", "Sign")
	fmt.Fprintln(out, "------------------------------------------------------------------------------")
	for _, info := range infos {
		fmt.Fprintf(out, "%-5d  %-30s  %-32s  %+4d\n", info.Value, info.Name, info.Slug, info.GridSign)
	}
	return nil
}
