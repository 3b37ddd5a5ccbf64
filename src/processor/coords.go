package processor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	LatitudeLimit  = 90.0
	LongitudeLimit = 180.0

	// DefaultDecimalWidth is the integer-part width the TaxiGov exports assume,
	// sign included ("-15" + "." + "78235"). Dataset specific.
	DefaultDecimalWidth = 3
	// DefaultScaleFactor undoes exports that dropped the decimal point on numeric columns.
	DefaultScaleFactor = 100000.0
)

// RepairStrategy selects how raw coordinates are repaired. The two source
// exports were cleaned differently and neither rule is known to be correct for
// the live dataset, so the choice is per dataset config.
type RepairStrategy string

const (
	// StrategyText: comma to period, insert missing decimal point, parse.
	StrategyText RepairStrategy = "text"
	// StrategyScale: parse, divide out-of-range magnitudes by the scale factor.
	StrategyScale RepairStrategy = "scale"
	// StrategyFull: text repair followed by scale repair.
	StrategyFull RepairStrategy = "full"
)

var ErrUnknownStrategy = errors.New("unknown repair strategy")

func ParseStrategy(s string) (RepairStrategy, error) {
	switch st := RepairStrategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyText, StrategyScale, StrategyFull:
		return st, nil
	case "":
		return StrategyFull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// CoordinateRepair holds the dataset-specific constants of the heuristics.
type CoordinateRepair struct {
	Strategy     RepairStrategy
	DecimalWidth int
	ScaleFactor  float64
}

func NewCoordinateRepair(strategy RepairStrategy) CoordinateRepair {
	return CoordinateRepair{
		Strategy:     strategy,
		DecimalWidth: DefaultDecimalWidth,
		ScaleFactor:  DefaultScaleFactor,
	}
}

// NormalizeDecimalComma replaces comma decimal separators with periods.
func NormalizeDecimalComma(s string) string {
	return strings.ReplaceAll(s, ",", ".")
}

// InsertDecimalPoint puts a period after the first width characters when s has none.
// Only valid for the fixed-width layout of the source export: "-1578235"
// becomes "-15.78235", while the unsigned "1578235" becomes "157.8235".
func InsertDecimalPoint(s string, width int) string {
	if strings.Contains(s, ".") || width <= 0 || len(s) <= width {
		return s
	}
	return s[:width] + "." + s[width:]
}

// RescaleOutOfRange divides v by factor when |v| exceeds limit. The result is
// not re-checked; a value still out of range is returned as-is.
func RescaleOutOfRange(v, limit, factor float64) float64 {
	if math.IsNaN(v) || factor == 0 {
		return v
	}
	if math.Abs(v) > limit {
		return v / factor
	}
	return v
}

// ParseCoordinate parses s as a float, returning NaN for empty, malformed or
// infinite input ("Inf", "Infinity").
func ParseCoordinate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Repair applies the configured strategy to one raw value within ±limit.
func (r CoordinateRepair) Repair(raw string, limit float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN()
	}

	switch r.Strategy {
	case StrategyText:
		return ParseCoordinate(r.repairText(raw))
	case StrategyScale:
		return RescaleOutOfRange(ParseCoordinate(raw), limit, r.scale())
	default:
		return RescaleOutOfRange(ParseCoordinate(r.repairText(raw)), limit, r.scale())
	}
}

// RepairFloat handles a value that is already numeric. The text heuristics
// would re-insert a decimal point into it, so only rescaling applies.
func (r CoordinateRepair) RepairFloat(v, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	if r.Strategy == StrategyText {
		return v
	}
	return RescaleOutOfRange(v, limit, r.scale())
}

func (r CoordinateRepair) repairText(raw string) string {
	width := r.DecimalWidth
	if width == 0 {
		width = DefaultDecimalWidth
	}
	s := NormalizeDecimalComma(raw)
	// numeric-looking exponents ("1.5E7") are left to the parser
	if strings.ContainsAny(s, "eE") {
		return s
	}
	return InsertDecimalPoint(s, width)
}

func (r CoordinateRepair) scale() float64 {
	if r.ScaleFactor == 0 {
		return DefaultScaleFactor
	}
	return r.ScaleFactor
}

func (r CoordinateRepair) RepairLatitude(raw string) float64 {
	return r.Repair(raw, LatitudeLimit)
}

func (r CoordinateRepair) RepairLongitude(raw string) float64 {
	return r.Repair(raw, LongitudeLimit)
}

// ValidLatitude reports whether v is a present latitude in [-90, 90].
func ValidLatitude(v float64) bool {
	return !math.IsNaN(v) && v >= -LatitudeLimit && v <= LatitudeLimit
}

func ValidLongitude(v float64) bool {
	return !math.IsNaN(v) && v >= -LongitudeLimit && v <= LongitudeLimit
}

// ValidPoint reports whether lat/lon are both present and in range.
func ValidPoint(lat, lon float64) bool {
	return ValidLatitude(lat) && ValidLongitude(lon)
}

// Present reports whether both values are finite. Map builders only skip
// missing values, out-of-range values are kept visible.
func Present(lat, lon float64) bool {
	return finite(lat) && finite(lon)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
