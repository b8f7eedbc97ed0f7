package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/r-ford/enso-api/internal/usecase"
)

var (
	computeSourceID     string
	computeExperimentID string
	computeMemberID     string
	computeGridLabel    string
	computeDatasetPath  string
	computeAreaPath     string
	computeRegion       string
	computeClimStart    string
	computeClimEnd      string
	computeThreshold    float64
	computeOutput       string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute an ENSO index series",
	Long: `Compute the smoothed, normalized SST anomaly index for a region.

Select the dataset either by catalog facets (--source-id etc.) or by
explicit file paths (--dataset with --area). The default region is
Niño 3.4.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := newUseCase()
		if err != nil {
			return err
		}

		req := usecase.ComputeRequest{
			SourceID:         computeSourceID,
			ExperimentID:     computeExperimentID,
			MemberID:         computeMemberID,
			GridLabel:        computeGridLabel,
			DatasetPath:      computeDatasetPath,
			AreaPath:         computeAreaPath,
			RegionName:       computeRegion,
			ClimatologyStart: computeClimStart,
			ClimatologyEnd:   computeClimEnd,
			Threshold:        computeThreshold,
		}

		resp, err := uc.Execute(req)
		if err != nil {
			return err
		}

		switch computeOutput {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		case "table":
			printTable(resp)
			return nil
		default:
			return fmt.Errorf("unknown output format %q (use json or table)", computeOutput)
		}
	},
}

// printTable renders the series with one row per month. Undefined
// values (the smoothing edges) print as dashes.
func printTable(resp *usecase.ComputeResponse) {
	fmt.Println(resp.Title)
	fmt.Printf("Threshold: ±%.2f\n\n", resp.Threshold)
	fmt.Printf("%-22s %10s %10s %10s\n", "TIME", "INDEX", "EL NIÑO", "LA NIÑA")
	for i, t := range resp.Times {
		fmt.Printf("%-22s %10s %10s %10s\n", t,
			cell(resp.Index[i]), cell(resp.PositiveExcess[i]), cell(resp.NegativeExcess[i]))
	}
	if n, ok := resp.Meta["catalog_matches"]; ok {
		log.Warn().Str("matches", n).Msg("Multiple catalog entries matched; used the first")
	}
}

func cell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func init() {
	computeCmd.Flags().StringVar(&computeSourceID, "source-id", "", "catalog facet: model source_id")
	computeCmd.Flags().StringVar(&computeExperimentID, "experiment-id", "", "catalog facet: experiment_id")
	computeCmd.Flags().StringVar(&computeMemberID, "member-id", "", "catalog facet: variant label")
	computeCmd.Flags().StringVar(&computeGridLabel, "grid-label", "", "catalog facet: grid_label")
	computeCmd.Flags().StringVar(&computeDatasetPath, "dataset", "", "SST NetCDF path (bypasses the catalog)")
	computeCmd.Flags().StringVar(&computeAreaPath, "area", "", "cell-area NetCDF path (required with --dataset)")
	computeCmd.Flags().StringVar(&computeRegion, "region", "", "region preset name (default: nino34)")
	computeCmd.Flags().StringVar(&computeClimStart, "clim-start", "", "climatology window start (YYYY-MM)")
	computeCmd.Flags().StringVar(&computeClimEnd, "clim-end", "", "climatology window end (YYYY-MM)")
	computeCmd.Flags().Float64Var(&computeThreshold, "threshold", 0, "El Niño/La Niña threshold (0 = configured default)")
	computeCmd.Flags().StringVarP(&computeOutput, "output", "o", "table", "output format: table or json")
	rootCmd.AddCommand(computeCmd)
}
