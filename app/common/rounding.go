package common

import (
	"math"
	"strconv"
	"strings"
)

// Round2 rounds half away from zero to two decimals. The scaled value is
// trimmed to 8 decimals first so that binary noise like 1234.4999999999998
// (12.345 * 100) rounds the way the decimal reading suggests.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scaled, err := strconv.ParseFloat(strconv.FormatFloat(v*100, 'f', 8, 64), 64)
	if err != nil {
		scaled = v * 100
	}
	return math.Round(scaled) / 100
}

func FormatPercent(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', 2, 64)
}

// FoldName lowercases a display name for prefix matching.
func FoldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
