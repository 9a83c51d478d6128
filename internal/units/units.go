// Package units converts and formats weights between kilograms and pounds.
// Every function takes its unit explicitly; the persisted user preference is
// handled by PreferenceStore and passed in by callers.
package units

import (
	"math"
	"strconv"
	"strings"
)

// Unit is a weight unit.
type Unit string

const (
	KG  Unit = "kg"
	LBS Unit = "lbs"
)

// KgToLbs is the fixed conversion factor: 1 kg = 2.20462 lbs.
const KgToLbs = 2.20462

// LbsToKg is the reciprocal of KgToLbs.
const LbsToKg = 1 / KgToLbs

var commonWeights = map[Unit][]float64{
	KG:  {12, 16, 20, 24, 28, 32, 36, 40, 44, 48, 53},
	LBS: {26, 35, 44, 53, 62, 70, 79, 88, 97, 106, 120},
}

// Parse accepts "kg" or "lbs" (any case, surrounding space ignored).
func Parse(s string) (Unit, bool) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case KG:
		return KG, true
	case LBS:
		return LBS, true
	}
	return "", false
}

// Valid reports whether u is kg or lbs.
func (u Unit) Valid() bool {
	return u == KG || u == LBS
}

// Other returns the opposite unit.
func (u Unit) Other() Unit {
	if u == KG {
		return LBS
	}
	return KG
}

// Convert converts weight between units. No rounding is applied.
func Convert(weight float64, from, to Unit) float64 {
	if from == to {
		return weight
	}
	switch {
	case from == KG && to == LBS:
		return weight * KgToLbs
	case from == LBS && to == KG:
		return weight * LbsToKg
	}
	return weight
}

// FormatWeight renders weight with one decimal place, e.g. "40kg" or "40.3kg".
func FormatWeight(weight float64, unit Unit) string {
	return FormatWeightPrec(weight, unit, 1)
}

// FormatWeightPrec rounds weight to decimals places. Whole results drop the
// decimal point; others keep exactly decimals digits. There is no space
// before the unit.
func FormatWeightPrec(weight float64, unit Unit, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	rounded := roundHalfUp(weight*scale) / scale
	if rounded == math.Trunc(rounded) {
		return FormatNumber(rounded) + string(unit)
	}
	return strconv.FormatFloat(rounded, 'f', decimals, 64) + string(unit)
}

// ConvertAndFormat converts weight into to and formats it there.
func ConvertAndFormat(weight float64, from, to Unit, decimals int) string {
	return FormatWeightPrec(Convert(weight, from, to), to, decimals)
}

// FormatVolume renders a volume: "1.5k kg" at or above 1000, "500 kg" below.
// Unlike FormatWeight there is a space before the unit.
func FormatVolume(volume float64, unit Unit) string {
	if volume >= 1000 {
		thousands := volume / 1000
		if thousands == math.Trunc(thousands) {
			return FormatNumber(thousands) + "k " + string(unit)
		}
		return strconv.FormatFloat(roundHalfUp(thousands*10)/10, 'f', 1, 64) + "k " + string(unit)
	}
	return FormatNumber(roundHalfUp(volume)) + " " + string(unit)
}

// ToUserUnit converts weight stored in from into the preferred unit.
func ToUserUnit(weight float64, from, preferred Unit) (float64, Unit) {
	return Convert(weight, from, preferred), preferred
}

// FromUserUnit converts weight entered in the preferred unit into to.
func FromUserUnit(weight float64, preferred, to Unit) float64 {
	return Convert(weight, preferred, to)
}

// CommonWeights returns the standard kettlebell ladder for unit.
func CommonWeights(unit Unit) []float64 {
	ladder, ok := commonWeights[unit]
	if !ok {
		ladder = commonWeights[LBS]
	}
	out := make([]float64, len(ladder))
	copy(out, ladder)
	return out
}

// RoundToCommonWeight returns the closest ladder weight. On an exact tie the
// lighter bell wins.
func RoundToCommonWeight(weight float64, unit Unit) float64 {
	ladder := CommonWeights(unit)
	closest := ladder[0]
	minDiff := math.Abs(weight - closest)
	for _, w := range ladder {
		if diff := math.Abs(weight - w); diff < minDiff {
			minDiff = diff
			closest = w
		}
	}
	return closest
}

// FormatNumber prints a float in its shortest form: 40, 22.5, 0.25.
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
