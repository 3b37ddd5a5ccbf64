package processor

import (
	"TaxiGovExplorer/src/config"
	"TaxiGovExplorer/src/utils"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ColumnStats counts what cleaning did to one coordinate column.
type ColumnStats struct {
	Column     string `json:"column"`
	Rows       int    `json:"rows"`
	Missing    int    `json:"missing"`
	Repaired   int    `json:"repaired"`
	OutOfRange int    `json:"out_of_range"`
}

// Cleaner turns the six raw coordinate columns into float columns.
type Cleaner struct {
	Schema Schema
	Repair CoordinateRepair
	// Only these headers go through Repair; the other coordinate columns are
	// parsed as plain numbers. Empty means all six.
	RepairColumns []string
}

func NewCleaner(schema Schema, repair CoordinateRepair) *Cleaner {
	return &Cleaner{Schema: schema, Repair: repair}
}

// NewCleanerFromConfig wires the dataset config into a Cleaner.
func NewCleanerFromConfig(dcfg *config.DataConfig) (*Cleaner, error) {
	strategy, err := ParseStrategy(dcfg.RepairStrategy)
	if err != nil {
		return nil, err
	}
	repair := NewCoordinateRepair(strategy)
	if dcfg.DecimalWidth > 0 {
		repair.DecimalWidth = dcfg.DecimalWidth
	}
	if dcfg.ScaleFactor > 0 {
		repair.ScaleFactor = dcfg.ScaleFactor
	}
	c := NewCleaner(SchemaFromConfig(dcfg), repair)
	c.RepairColumns = dcfg.RepairColumns
	return c, nil
}

// Clean returns a copy of df whose coordinate columns are float series.
// Unrepairable values become NaN or stay out of range; neither is an error.
func (c *Cleaner) Clean(df dataframe.DataFrame) (dataframe.DataFrame, []ColumnStats, error) {
	if df.Err != nil {
		return df, nil, df.Err
	}
	cpData := df.Copy()

	var stats []ColumnStats
	for _, pair := range c.Schema.CoordinatePairs() {
		for i, col := range pair {
			if !utils.HasColumn(cpData, col) {
				// requested destination is optional in older exports
				if col == c.Schema.RequestedDestLat || col == c.Schema.RequestedDestLon {
					continue
				}
				return df, nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
			}
			limit := LatitudeLimit
			if i == 1 {
				limit = LongitudeLimit
			}

			values, st := c.cleanColumn(cpData.Col(col), limit)
			cpData = cpData.Mutate(series.New(values, series.Float, col))
			if cpData.Err != nil {
				return df, nil, fmt.Errorf("mutate %s: %w", col, cpData.Err)
			}
			stats = append(stats, st)
		}
	}
	return cpData, stats, nil
}

func (c *Cleaner) cleanColumn(s series.Series, limit float64) ([]float64, ColumnStats) {
	st := ColumnStats{Column: s.Name, Rows: s.Len()}
	repair := c.shouldRepair(s.Name)

	numeric := s.Type() == series.Float
	var raw []string
	var floats []float64
	if numeric {
		floats = s.Float()
	} else {
		raw = s.Records()
	}

	values := make([]float64, s.Len())
	for i := range values {
		var plain, v float64
		if numeric {
			// already cleaned once: text heuristics would shift the decimal point again
			plain = floats[i]
			if !finite(plain) {
				plain = math.NaN()
			}
			v = plain
			if repair {
				v = c.Repair.RepairFloat(plain, limit)
			}
		} else {
			plain = ParseCoordinate(raw[i])
			v = plain
			if repair {
				v = c.Repair.Repair(raw[i], limit)
			}
		}
		values[i] = v

		switch {
		case math.IsNaN(v):
			st.Missing++
		case math.Abs(v) > limit:
			st.OutOfRange++
		}
		if !math.IsNaN(v) && (math.IsNaN(plain) || v != plain) {
			st.Repaired++
		}
	}
	return values, st
}

func (c *Cleaner) shouldRepair(col string) bool {
	if len(c.RepairColumns) == 0 {
		return true
	}
	return utils.Contains(c.RepairColumns, col)
}
