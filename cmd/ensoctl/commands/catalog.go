package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/r-ford/enso-api/internal/adapter/store/catalog"
)

var (
	catalogSourceID     string
	catalogExperimentID string
	catalogMemberID     string
	catalogVariableID   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Search the dataset catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.OpenStatic(cfg.CatalogPath)
		if err != nil {
			return err
		}

		entries := cat.Search(catalog.Query{
			SourceID:     catalogSourceID,
			ExperimentID: catalogExperimentID,
			MemberID:     catalogMemberID,
			VariableID:   catalogVariableID,
		})

		if len(entries) == 0 {
			fmt.Println("No catalog entries match.")
			return nil
		}

		fmt.Printf("%-16s %-14s %-10s %-6s %s\n", "SOURCE", "EXPERIMENT", "MEMBER", "GRID", "PATH")
		for _, e := range entries {
			fmt.Printf("%-16s %-14s %-10s %-6s %s\n", e.SourceID, e.ExperimentID, e.MemberID, e.GridLabel, e.Path)
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogSourceID, "source-id", "", "filter by source_id")
	catalogCmd.Flags().StringVar(&catalogExperimentID, "experiment-id", "", "filter by experiment_id")
	catalogCmd.Flags().StringVar(&catalogMemberID, "member-id", "", "filter by variant label")
	catalogCmd.Flags().StringVar(&catalogVariableID, "variable-id", "", "filter by variable_id")
	rootCmd.AddCommand(catalogCmd)
}
