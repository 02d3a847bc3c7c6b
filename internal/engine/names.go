package engine

import "fmt"

// StepName is the raster name of a ground shadow sample without facades.
func StepName(stamp string) string {
	return "Shadow_" + stamp + "_LST"
}

// GroundName is the raster name of a ground shadow sample cast with facades.
func GroundName(stamp string) string {
	return "shadow_ground/shadow_ground_" + stamp + "_LST"
}

// FacadeName is the raster name of a building facade shadow sample.
func FacadeName(stamp string) string {
	return "facade_shdw_bldgs/facade_shdw_bldgs_" + stamp + "_LST"
}

// VegetationFacadeName is the raster name of a vegetation facade shadow sample.
func VegetationFacadeName(stamp string) string {
	return "facade_shdw_veg/facade_shdw_veg_" + stamp + "_LST"
}

// MeanName is the raster name of the finalized shadow fraction.
func MeanName(year, dayOfYear int) string {
	return fmt.Sprintf("shadow_fraction_on_%d_%d", year, dayOfYear)
}
