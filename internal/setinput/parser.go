// Package setinput turns free-text set descriptions such as "40 5" or
// "double 35kg x8" into structured, validated sets.
package setinput

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/forgefit/forge/internal/units"
)

// Validation messages shown to the user as-is.
const (
	MsgEmpty      = `Please enter a set (e.g., "40 5" or "double 35kg x8")`
	MsgNoNumbers  = `No numbers found. Try "40 5" or "35kg x8"`
	MsgNeedReps   = `Please add reps (e.g., "40 5" for 5 reps)`
	MsgWeightZero = "Weight must be greater than 0"
	MsgRepsRange  = "Reps must be between 1 and 100"
	MsgRepsWhole  = "Reps must be a whole number"
	MsgKgTooHigh  = "Weight seems high for kg. Did you mean lbs?"
	MsgLbsTooHigh = "Weight seems very high. Please check your input."
)

// Guard rails against unit mix-ups, not physical limits.
const (
	maxKgPerBell     = 200
	maxLbsPerBell    = 500
	maxRepsPerSet    = 100
	defaultBellCount = 2
)

var (
	// lbsRe matches "lb" and "lbs".
	lbsRe = regexp.MustCompile(`lbs?`)

	// singleRe matches "single" or a bell count prefix like "1x24".
	singleRe = regexp.MustCompile(`single|\b1x`)

	// doubleRe matches "double" or a bell count prefix like "2x24".
	doubleRe = regexp.MustCompile(`double|\b2x`)

	// fillerRe matches words that carry no numbers: "reps", "x", "for", "times".
	fillerRe = regexp.MustCompile(`\b(reps?|rep|x|for|times)\b`)

	// pluralRe matches a dangling "s" as in "40 s".
	pluralRe = regexp.MustCompile(`\bs\b`)

	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParsedSet is the result of parsing one line of set input. When IsValid is
// false, Error holds the reason and numeric fields may be partial.
type ParsedSet struct {
	WeightPerBell float64    `json:"weightPerBell"`
	NumberOfBells int        `json:"numberOfBells"`
	Reps          int        `json:"reps"`
	TotalVolume   float64    `json:"totalVolume"`
	RawInput      string     `json:"rawInput"`
	Unit          units.Unit `json:"unit"`
	IsValid       bool       `json:"isValid"`
	Error         string     `json:"error,omitempty"`
}

// Options supplies the unit and bell count used when the input names neither.
type Options struct {
	DefaultUnit  units.Unit
	DefaultBells int
}

func (o Options) normalize() Options {
	if !o.DefaultUnit.Valid() {
		o.DefaultUnit = units.KG
	}
	if o.DefaultBells != 1 && o.DefaultBells != 2 {
		o.DefaultBells = defaultBellCount
	}
	return o
}

// Parse never fails: problems are reported through ParsedSet.IsValid and
// ParsedSet.Error.
//
// Tokens are consumed in order: unit, bell count, filler words, then the
// remaining numbers. The first number is the weight per bell and the last is
// the rep count, so "2x40 5 reps" and "40 kg for 5" both work.
func Parse(input string, opts Options) ParsedSet {
	opts = opts.normalize()
	raw := strings.TrimSpace(input)

	result := ParsedSet{
		NumberOfBells: opts.DefaultBells,
		RawInput:      raw,
		Unit:          opts.DefaultUnit,
	}
	if raw == "" {
		result.Error = MsgEmpty
		return result
	}

	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	s = strings.ReplaceAll(s, "×", "x")

	switch {
	case strings.Contains(s, "kg"):
		result.Unit = units.KG
		s = strings.ReplaceAll(s, "kg", "")
	case strings.Contains(s, "lb"):
		result.Unit = units.LBS
		s = lbsRe.ReplaceAllString(s, "")
	}

	switch {
	case singleRe.MatchString(s):
		result.NumberOfBells = 1
		s = singleRe.ReplaceAllString(s, "")
	case doubleRe.MatchString(s):
		result.NumberOfBells = 2
		s = doubleRe.ReplaceAllString(s, "")
	}

	s = fillerRe.ReplaceAllString(s, " ")
	s = pluralRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")

	numbers := numberRe.FindAllString(s, -1)
	switch len(numbers) {
	case 0:
		result.Error = MsgNoNumbers
		return result
	case 1:
		result.WeightPerBell = parseNumber(numbers[0])
		result.Error = MsgNeedReps
		return result
	}

	weight := parseNumber(numbers[0])
	reps := parseNumber(numbers[len(numbers)-1])
	result.WeightPerBell = weight
	result.Reps = int(reps)

	switch {
	case weight <= 0:
		result.Error = MsgWeightZero
	case reps <= 0 || reps > maxRepsPerSet:
		result.Error = MsgRepsRange
	case reps != math.Trunc(reps):
		result.Error = MsgRepsWhole
	case result.Unit == units.KG && weight > maxKgPerBell:
		result.Error = MsgKgTooHigh
	case result.Unit == units.LBS && weight > maxLbsPerBell:
		result.Error = MsgLbsTooHigh
	default:
		result.TotalVolume = weight * float64(result.NumberOfBells) * float64(result.Reps)
		result.IsValid = true
	}
	return result
}

// Format renders a valid set as
// "double 40kg × 5 reps = 400kg total", or the error for an invalid one.
func Format(p ParsedSet) string {
	if !p.IsValid {
		if p.Error == "" {
			return "Invalid set"
		}
		return p.Error
	}
	bells := "double"
	if p.NumberOfBells == 1 {
		bells = "single"
	}
	return fmt.Sprintf("%s %s%s × %d reps = %s%s total",
		bells,
		units.FormatNumber(p.WeightPerBell), p.Unit,
		p.Reps,
		units.FormatNumber(p.TotalVolume), p.Unit,
	)
}

// Examples returns input hints for unit.
func Examples(unit units.Unit) []string {
	if unit == units.LBS {
		return []string{
			"88 5",
			"double 70lbs x8",
			"single 120 x6",
			"2x53 12 reps",
		}
	}
	return []string{
		"40 5",
		"double 35kg x8",
		"single 53 x10",
		"2x24 12 reps",
	}
}

func parseNumber(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
