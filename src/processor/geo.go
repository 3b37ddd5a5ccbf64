package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"
)

type Direction string

const (
	DirectionOrigin      Direction = "origin"
	DirectionDestination Direction = "destination"
)

const (
	ColorOrigin      = "darkblue"
	ColorDestination = "orange"
	IconOrigin       = "glyphicon glyphicon-log-out"
	IconDestination  = "glyphicon glyphicon-log-in"
)

// Popup is the text shown when a marker is clicked. Numbers are preformatted so
// missing values render as "nan" instead of breaking JSON.
type Popup struct {
	TimeLabel  string `json:"time_label"`
	Time       string `json:"time"`
	PlaceLabel string `json:"place_label"`
	Place      string `json:"place"`
	Reason     string `json:"reason"`
	Distance   string `json:"distance"`
	Fare       string `json:"fare"`
}

type Marker struct {
	Point
	Direction Direction `json:"direction"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	Popup     Popup     `json:"popup"`
	Ride      int       `json:"ride"` // index into the input slice
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%g", v)
}

// Markers places an origin marker and an actual-destination marker per ride,
// skipping either one when its coordinates are missing.
func Markers(rides []Ride) []Marker {
	var out []Marker
	for i, r := range rides {
		if r.Origin.Present() {
			out = append(out, Marker{
				Point:     r.Origin,
				Direction: DirectionOrigin,
				Color:     ColorOrigin,
				Icon:      IconOrigin,
				Popup: Popup{
					TimeLabel:  "Hora partida",
					Time:       r.RawStart,
					PlaceLabel: "Destino efetivo",
					Place:      r.ActualDestAddress,
					Reason:     r.Reason,
					Distance:   formatNumber(r.Distance),
					Fare:       formatNumber(r.Fare),
				},
				Ride: i,
			})
		}
		if r.ActualDest.Present() {
			out = append(out, Marker{
				Point:     r.ActualDest,
				Direction: DirectionDestination,
				Color:     ColorDestination,
				Icon:      IconDestination,
				Popup: Popup{
					TimeLabel:  "Hora chegada",
					Time:       r.RawEnd,
					PlaceLabel: "Origem",
					Place:      r.OriginAddress,
					Reason:     r.Reason,
					Distance:   formatNumber(r.Distance),
					Fare:       formatNumber(r.Fare),
				},
				Ride: i,
			})
		}
	}
	return out
}

func nanMean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if !finite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Center averages the mean origin and the mean actual destination, ignoring
// missing values in each mean.
func Center(rides []Ride) Point {
	oLat := make([]float64, len(rides))
	oLon := make([]float64, len(rides))
	dLat := make([]float64, len(rides))
	dLon := make([]float64, len(rides))
	for i, r := range rides {
		oLat[i], oLon[i] = r.Origin.Lat, r.Origin.Lon
		dLat[i], dLon[i] = r.ActualDest.Lat, r.ActualDest.Lon
	}
	return Point{
		Lat: (nanMean(oLat) + nanMean(dLat)) / 2,
		Lon: (nanMean(oLon) + nanMean(dLon)) / 2,
	}
}

// BoundingBox is the rectangle a renderer fits the map view to.
type BoundingBox struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// MarkerBounds is Bounds over the marker positions; nil when there is no marker.
func MarkerBounds(markers []Marker) *BoundingBox {
	points := make([]Point, len(markers))
	for i, m := range markers {
		points[i] = m.Point
	}
	sw, ne, ok := Bounds(points)
	if !ok {
		return nil
	}
	return &BoundingBox{SouthWest: sw, NorthEast: ne}
}

// Bounds returns the south-west and north-east corners of the present points.
// ok is false when no point is present.
func Bounds(points []Point) (sw, ne Point, ok bool) {
	sw = Point{Lat: math.Inf(1), Lon: math.Inf(1)}
	ne = Point{Lat: math.Inf(-1), Lon: math.Inf(-1)}
	for _, p := range points {
		if !p.Present() {
			continue
		}
		ok = true
		sw.Lat = math.Min(sw.Lat, p.Lat)
		sw.Lon = math.Min(sw.Lon, p.Lon)
		ne.Lat = math.Max(ne.Lat, p.Lat)
		ne.Lon = math.Max(ne.Lon, p.Lon)
	}
	if !ok {
		return Point{}, Point{}, false
	}
	return sw, ne, true
}

// Layer groups the markers of one category value. Layers start hidden and are
// toggled by the renderer's layer control.
type Layer struct {
	Name    string   `json:"name"`
	Show    bool     `json:"show"`
	Markers []Marker `json:"markers"`
}

// Layers builds one layer per distinct value of field ("reason", "agency",
// "base"), in order of first appearance.
func Layers(rides []Ride, field string) []Layer {
	index := make(map[string]int)
	var layers []Layer
	for _, r := range rides {
		v := r.Category(field)
		if _, ok := index[v]; !ok {
			index[v] = len(layers)
			layers = append(layers, Layer{Name: v})
		}
	}
	for _, m := range Markers(rides) {
		i := index[rides[m.Ride].Category(field)]
		layers[i].Markers = append(layers[i].Markers, m)
	}
	return layers
}

// HeatPoints returns [lat, lon] for rides whose point and start timestamp are present.
func HeatPoints(rides []Ride, pt PointType) [][2]float64 {
	var out [][2]float64
	for _, r := range rides {
		p := r.Point(pt)
		if !p.Present() || isMissing(r.RawStart) {
			continue
		}
		out = append(out, [2]float64{p.Lat, p.Lon})
	}
	return out
}

// HeatFrame is one step of a time-animated heatmap.
type HeatFrame struct {
	Date   string       `json:"date"`
	Points [][2]float64 `json:"points"`
}

// HeatFrames buckets heat points by the calendar date of the ride start,
// ordered chronologically. Rides whose start cannot be parsed are dropped.
func HeatFrames(rides []Ride, pt PointType) []HeatFrame {
	buckets := make(map[string][][2]float64)
	for _, r := range rides {
		p := r.Point(pt)
		if !p.Present() || r.Start.IsZero() {
			continue
		}
		day := r.Start.Format("2006-01-02")
		buckets[day] = append(buckets[day], [2]float64{p.Lat, p.Lon})
	}

	days := make([]string, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Strings(days)

	frames := make([]HeatFrame, len(days))
	for i, d := range days {
		frames[i] = HeatFrame{Date: d, Points: buckets[d]}
	}
	return frames
}

// HeatCell aggregates heat points falling into one geohash cell.
type HeatCell struct {
	Hash   string  `json:"hash"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight int     `json:"weight"`
}

// HeatCells buckets points into geohash cells of the given precision,
// heaviest first; ties are ordered by hash. Out-of-range points are skipped
// since geohash cannot encode them.
func HeatCells(points [][2]float64, precision uint) []HeatCell {
	if precision == 0 {
		precision = 6
	}
	weights := make(map[string]int)
	for _, p := range points {
		if !ValidPoint(p[0], p[1]) {
			continue
		}
		weights[geohash.EncodeWithPrecision(p[0], p[1], precision)]++
	}

	cells := make([]HeatCell, 0, len(weights))
	for h, w := range weights {
		lat, lon := geohash.DecodeCenter(h)
		cells = append(cells, HeatCell{Hash: h, Lat: lat, Lon: lon, Weight: w})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Weight != cells[j].Weight {
			return cells[i].Weight > cells[j].Weight
		}
		return cells[i].Hash < cells[j].Hash
	})
	return cells
}
