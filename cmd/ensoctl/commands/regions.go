package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/r-ford/enso-api/internal/domain"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the available region presets",
	Run: func(cmd *cobra.Command, args []string) {
		regions := domain.AllRegions()
		for _, r := range cfg.ExtraRegions {
			regions = append(regions, r)
		}
		sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })

		fmt.Printf("%-10s %9s %9s %9s %9s\n", "NAME", "LAT MIN", "LAT MAX", "LON MIN", "LON MAX")
		for _, r := range regions {
			fmt.Printf("%-10s %9.1f %9.1f %9.1f %9.1f\n", r.Name, r.LatMin, r.LatMax, r.LonMin, r.LonMax)
		}
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
