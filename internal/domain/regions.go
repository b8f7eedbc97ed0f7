package domain

import "sort"

// Standard Niño index regions. Longitudes are on the 0-360 degree axis
// used by most model output; latitude bounds are exclusive.
//
// References: Niño 1+2 (0-10S, 90W-80W), Niño 3 (5N-5S, 150W-90W),
// Niño 3.4 (5N-5S, 170W-120W), Niño 4 (5N-5S, 160E-150W). The ONI uses
// the Niño 3.4 box.
var standardRegions = map[string]Region{
	"nino12": {Name: "nino12", LatMin: -10.0, LatMax: 0.0, LonMin: 270.0, LonMax: 280.0},
	"nino3":  {Name: "nino3", LatMin: -5.0, LatMax: 5.0, LonMin: 210.0, LonMax: 270.0},
	"nino34": {Name: "nino34", LatMin: -5.0, LatMax: 5.0, LonMin: 190.0, LonMax: 240.0},
	"nino4":  {Name: "nino4", LatMin: -5.0, LatMax: 5.0, LonMin: 160.0, LonMax: 210.0},
	"oni":    {Name: "oni", LatMin: -5.0, LatMax: 5.0, LonMin: 190.0, LonMax: 240.0},
}

// Nino34 returns the default index region.
func Nino34() Region {
	return standardRegions["nino34"]
}

// RegionByName looks up a standard region by its short name.
func RegionByName(name string) (Region, bool) {
	r, ok := standardRegions[name]
	return r, ok
}

// AllRegions returns the standard regions sorted by name.
func AllRegions() []Region {
	regions := make([]Region, 0, len(standardRegions))
	for _, r := range standardRegions {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Name < regions[j].Name
	})
	return regions
}
