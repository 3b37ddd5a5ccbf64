package processor

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDecimalComma(t *testing.T) {
	for _, raw := range []string{"-15,7935", "-47,8823", "0,5", "-23,55052"} {
		s := NormalizeDecimalComma(raw)
		_, err := strconv.ParseFloat(s, 64)
		assert.NoError(t, err, raw)
	}
	assert.Equal(t, "-15.7935", NormalizeDecimalComma("-15,7935"))
}

func TestInsertDecimalPoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"-1578235", "-15.78235"},
		{"-4788230", "-47.88230"},
		{"1578235", "157.8235"},
		{"-15.7935", "-15.7935"},
		{"-15", "-15"},
		{"", ""},
	}
	for _, tt := range tests {
		got := InsertDecimalPoint(tt.in, DefaultDecimalWidth)
		assert.Equal(t, tt.want, got, tt.in)
		if len(tt.in) > DefaultDecimalWidth {
			_, err := strconv.ParseFloat(got, 64)
			assert.NoError(t, err, tt.in)
		}
	}
}

func TestRescaleOutOfRange(t *testing.T) {
	assert.InDelta(t, -47.823, RescaleOutOfRange(-4782300.0, LongitudeLimit, DefaultScaleFactor), 1e-9)
	assert.InDelta(t, -15.78235, RescaleOutOfRange(-1578235, LatitudeLimit, DefaultScaleFactor), 1e-9)
	assert.Equal(t, -15.7935, RescaleOutOfRange(-15.7935, LatitudeLimit, DefaultScaleFactor))
	assert.True(t, math.IsNaN(RescaleOutOfRange(math.NaN(), LatitudeLimit, DefaultScaleFactor)))

	// applied once, no clamp
	assert.Equal(t, -9.5e7/DefaultScaleFactor, RescaleOutOfRange(-9.5e7, LatitudeLimit, DefaultScaleFactor))
	assert.False(t, ValidLatitude(RescaleOutOfRange(-9.5e7, LatitudeLimit, DefaultScaleFactor)))
}

func TestRescaleBringsDatasetValuesInRange(t *testing.T) {
	// latitudes exported without the decimal point, as seen in the 7-day archive
	for _, v := range []float64{-1579352, -2290684, -2354987, -1000000} {
		got := RescaleOutOfRange(v, LatitudeLimit, DefaultScaleFactor)
		assert.True(t, ValidLatitude(got), "%v -> %v", v, got)
	}
}

func TestParseCoordinate(t *testing.T) {
	assert.Equal(t, -15.5, ParseCoordinate(" -15.5 "))
	assert.True(t, math.IsNaN(ParseCoordinate("")))
	assert.True(t, math.IsNaN(ParseCoordinate("abc")))
	assert.True(t, math.IsNaN(ParseCoordinate("NaN")))
}

func TestParseStrategy(t *testing.T) {
	st, err := ParseStrategy("Scale")
	require.NoError(t, err)
	assert.Equal(t, StrategyScale, st)

	st, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFull, st)

	_, err = ParseStrategy("guess")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRepairStrategies(t *testing.T) {
	text := NewCoordinateRepair(StrategyText)
	scale := NewCoordinateRepair(StrategyScale)
	full := NewCoordinateRepair(StrategyFull)

	tests := []struct {
		name   string
		repair CoordinateRepair
		raw    string
		lat    bool
		want   float64
	}{
		{"text comma", text, "-15,7935", true, -15.7935},
		{"text missing point", text, "-1578235", true, -15.78235},
		{"text ignores scale", text, "-4782300.0", false, -4782300.0},
		{"scale longitude", scale, "-4782300.0", false, -47.823},
		{"scale latitude", scale, "-1578235", true, -15.78235},
		{"scale in range", scale, "-15.7935", true, -15.7935},
		{"full comma", full, "-47,8823", false, -47.8823},
		{"full missing point", full, "-4788230", false, -47.8823},
		{"full scaled", full, "-4782300.0", false, -47.823},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got float64
			if tt.lat {
				got = tt.repair.RepairLatitude(tt.raw)
			} else {
				got = tt.repair.RepairLongitude(tt.raw)
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// Decimal insertion assumes a signed two-digit integer part. Unsigned values
// come out wrong under every strategy; these assertions pin that down.
func TestRepairFixedWidthSharpEdge(t *testing.T) {
	text := NewCoordinateRepair(StrategyText)
	got := text.RepairLatitude("1578235")
	assert.InDelta(t, 157.8235, got, 1e-9)
	assert.False(t, ValidLatitude(got), "text repair leaves the value out of range")

	full := NewCoordinateRepair(StrategyFull)
	got = full.RepairLatitude("1578235")
	assert.InDelta(t, 0.001578235, got, 1e-12)
	assert.True(t, ValidLatitude(got), "full repair rescales to an in-range but wrong latitude")
}

func TestRepairMissing(t *testing.T) {
	for _, st := range []RepairStrategy{StrategyText, StrategyScale, StrategyFull} {
		r := NewCoordinateRepair(st)
		assert.True(t, math.IsNaN(r.RepairLatitude("")), st)
		assert.True(t, math.IsNaN(r.RepairLatitude("   ")), st)
		assert.True(t, math.IsNaN(r.RepairLongitude("sem coordenada")), st)
	}
}

func TestParseCoordinateRejectsInfinity(t *testing.T) {
	for _, s := range []string{"Inf", "+Inf", "-inf", "Infinity", "1e400"} {
		assert.True(t, math.IsNaN(ParseCoordinate(s)), s)
	}
	assert.InDelta(t, -15.79, ParseCoordinate(" -15.79 "), 1e-9)
}

func TestRepairFloat(t *testing.T) {
	text := NewCoordinateRepair(StrategyText)
	assert.Equal(t, -157.0, text.RepairFloat(-157, LatitudeLimit))

	scale := NewCoordinateRepair(StrategyScale)
	assert.InDelta(t, -15.78235, scale.RepairFloat(-1578235, LatitudeLimit), 1e-9)
	assert.True(t, math.IsNaN(scale.RepairFloat(math.Inf(-1), LatitudeLimit)))
	assert.True(t, math.IsNaN(scale.RepairFloat(math.NaN(), LatitudeLimit)))
}

func TestValidPoint(t *testing.T) {
	assert.True(t, ValidPoint(-15.79, -47.88))
	assert.False(t, ValidPoint(-157.9, -47.88))
	assert.False(t, ValidPoint(-15.79, -478.8))
	assert.False(t, ValidPoint(math.NaN(), -47.88))
	assert.True(t, Present(-157.9, -47.88))
	assert.False(t, Present(-15.79, math.NaN()))
	assert.False(t, Present(math.Inf(1), -47.88))
}
