package retrieval

import (
	"strconv"
	"strings"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

const DefaultYearTolerance = 3

// MatchVehicle applies the permissive vehicle filter: a field only excludes a
// hit when it is set on both the filter and the hit and the values differ.
// Years match within +/- tolerance.
func MatchVehicle(filter, hit model.VehicleInfo, tolerance int) bool {
	if filter.Make != "" && hit.Make != "" && !sameText(filter.Make, hit.Make) {
		return false
	}
	if filter.Model != "" && hit.Model != "" && !sameText(filter.Model, hit.Model) {
		return false
	}
	if filter.Year > 0 && hit.Year > 0 {
		diff := filter.Year - hit.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			return false
		}
	}
	return true
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeFilter drops malformed fields instead of rejecting the filter.
func NormalizeFilter(f model.VehicleInfo) model.VehicleInfo {
	f.Make = strings.TrimSpace(f.Make)
	f.Model = strings.TrimSpace(f.Model)
	if !plausibleYear(f.Year) {
		f.Year = 0
	}
	return f
}

func plausibleYear(y int) bool {
	return y >= 1886 && y <= 2100
}

// ParseVehicle derives a filter from a free-form car string such as
// "BMW 3 Series 2015" or "2015 BMW 3 Series". Unparseable input gives an
// empty filter.
func ParseVehicle(car string) model.VehicleInfo {
	parts := strings.Fields(car)
	if len(parts) == 0 {
		return model.VehicleInfo{}
	}
	var info model.VehicleInfo
	if y, ok := parseYear(parts[len(parts)-1]); ok && len(parts) > 1 {
		info.Year = y
		parts = parts[:len(parts)-1]
	} else if y, ok := parseYear(parts[0]); ok && len(parts) > 1 {
		info.Year = y
		parts = parts[1:]
	}
	if len(parts) < 2 && info.Year == 0 {
		return model.VehicleInfo{}
	}
	info.Make = parts[0]
	if len(parts) > 1 {
		info.Model = strings.Join(parts[1:], " ")
	}
	return info
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || !plausibleYear(y) {
		return 0, false
	}
	return y, true
}
