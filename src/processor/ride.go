package processor

import (
	"TaxiGovExplorer/src/config"
	"TaxiGovExplorer/src/utils"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var ErrMissingColumn = errors.New("missing column")

// PointType names a coordinate pair by its dataset prefix.
type PointType string

const (
	PointOrigin        PointType = "origem"
	PointRequestedDest PointType = "destino_solicitado"
	PointActualDest    PointType = "destino_efetivo"
)

func ParsePointType(s string) (PointType, error) {
	switch pt := PointType(s); pt {
	case PointOrigin, PointRequestedDest, PointActualDest:
		return pt, nil
	case "":
		return PointOrigin, nil
	default:
		return "", fmt.Errorf("unknown point type %q", s)
	}
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) Present() bool { return Present(p.Lat, p.Lon) }

// Ride is one TaxiGov trip after cleaning.
type Ride struct {
	Start             time.Time
	End               time.Time
	RawStart          string
	RawEnd            string
	Origin            Point
	RequestedDest     Point
	ActualDest        Point
	OriginAddress     string
	ActualDestAddress string
	Reason            string
	Agency            string
	Base              string
	Distance          float64
	Fare              float64
}

func (r Ride) Point(pt PointType) Point {
	switch pt {
	case PointRequestedDest:
		return r.RequestedDest
	case PointActualDest:
		return r.ActualDest
	default:
		return r.Origin
	}
}

// Category returns the value of a categorical field by its logical name.
func (r Ride) Category(field string) string {
	switch field {
	case "reason":
		return r.Reason
	case "agency":
		return r.Agency
	case "base":
		return r.Base
	default:
		return ""
	}
}

// Schema is the resolved set of dataset headers.
type Schema struct {
	Start             string
	End               string
	OriginLat         string
	OriginLon         string
	RequestedDestLat  string
	RequestedDestLon  string
	ActualDestLat     string
	ActualDestLon     string
	OriginAddress     string
	ActualDestAddress string
	Reason            string
	Agency            string
	Base              string
	Distance          string
	Fare              string
	TimestampLayouts  []string
}

func SchemaFromConfig(dcfg *config.DataConfig) Schema {
	return Schema{
		Start:             dcfg.Column("start"),
		End:               dcfg.Column("end"),
		OriginLat:         dcfg.Column("origin_latitude"),
		OriginLon:         dcfg.Column("origin_longitude"),
		RequestedDestLat:  dcfg.Column("requested_dest_latitude"),
		RequestedDestLon:  dcfg.Column("requested_dest_longitude"),
		ActualDestLat:     dcfg.Column("actual_dest_latitude"),
		ActualDestLon:     dcfg.Column("actual_dest_longitude"),
		OriginAddress:     dcfg.Column("origin_address"),
		ActualDestAddress: dcfg.Column("actual_dest_address"),
		Reason:            dcfg.Column("reason"),
		Agency:            dcfg.Column("agency"),
		Base:              dcfg.Column("base"),
		Distance:          dcfg.Column("distance"),
		Fare:              dcfg.Column("fare"),
		TimestampLayouts:  dcfg.TimestampLayout,
	}
}

// DefaultSchema uses the TaxiGov headers.
func DefaultSchema() Schema {
	return SchemaFromConfig(&config.DataConfig{})
}

// CoordinatePairs returns {lat, lon} header pairs for the three point types.
func (s Schema) CoordinatePairs() [][2]string {
	return [][2]string{
		{s.OriginLat, s.OriginLon},
		{s.RequestedDestLat, s.RequestedDestLon},
		{s.ActualDestLat, s.ActualDestLon},
	}
}

// RequireColumns reports the first missing header among names.
func RequireColumns(df dataframe.DataFrame, names ...string) error {
	for _, name := range names {
		if !utils.HasColumn(df, name) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}

// Rides converts a cleaned frame into ride values. Optional text columns
// that are absent become empty strings; coordinates must be present.
func Rides(df dataframe.DataFrame, s Schema) ([]Ride, error) {
	if err := RequireColumns(df, s.OriginLat, s.OriginLon, s.ActualDestLat, s.ActualDestLon); err != nil {
		return nil, err
	}

	text := func(name string) []string {
		if !utils.HasColumn(df, name) {
			return make([]string, df.Nrow())
		}
		return df.Col(name).Records()
	}
	floats := func(name string) []float64 {
		if !utils.HasColumn(df, name) {
			out := make([]float64, df.Nrow())
			for i := range out {
				out[i] = math.NaN()
			}
			return out
		}
		col := df.Col(name)
		if col.Type() == series.Float {
			return col.Float()
		}
		records := col.Records()
		out := make([]float64, len(records))
		for i, r := range records {
			out[i] = ParseNumber(r)
		}
		return out
	}

	var (
		start, end     = text(s.Start), text(s.End)
		oLat, oLon     = floats(s.OriginLat), floats(s.OriginLon)
		rLat, rLon     = floats(s.RequestedDestLat), floats(s.RequestedDestLon)
		aLat, aLon     = floats(s.ActualDestLat), floats(s.ActualDestLon)
		oAddr, aAddr   = text(s.OriginAddress), text(s.ActualDestAddress)
		reason, agency = text(s.Reason), text(s.Agency)
		base           = text(s.Base)
		distance, fare = floats(s.Distance), floats(s.Fare)
	)

	rides := make([]Ride, df.Nrow())
	for i := range rides {
		rides[i] = Ride{
			RawStart:          start[i],
			RawEnd:            end[i],
			Origin:            Point{oLat[i], oLon[i]},
			RequestedDest:     Point{rLat[i], rLon[i]},
			ActualDest:        Point{aLat[i], aLon[i]},
			OriginAddress:     oAddr[i],
			ActualDestAddress: aAddr[i],
			Reason:            reason[i],
			Agency:            agency[i],
			Base:              base[i],
			Distance:          distance[i],
			Fare:              fare[i],
		}
		rides[i].Start, _ = ParseTimestamp(start[i], s.TimestampLayouts)
		rides[i].End, _ = ParseTimestamp(end[i], s.TimestampLayouts)
	}
	return rides, nil
}

// ParseNumber parses a plain decimal, accepting a comma separator; missing -> NaN.
func ParseNumber(s string) float64 {
	return ParseCoordinate(NormalizeDecimalComma(s))
}

// ParseTimestamp tries each layout in order; ok is false for empty or unknown formats.
func ParseTimestamp(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NaN" {
		return time.Time{}, false
	}
	if len(layouts) == 0 {
		layouts = utils.TimeLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
