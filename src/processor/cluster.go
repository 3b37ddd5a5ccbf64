package processor

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

// Cluster is a group of markers drawn as one bubble until zoomed in.
type Cluster struct {
	Center  Point    `json:"center"`
	Markers []Marker `json:"markers"`
}

func (c Cluster) Size() int { return len(c.Markers) }

type spatialMarker struct {
	idx   int
	point rtreego.Point
}

func (s *spatialMarker) Bounds() rtreego.Rect {
	return s.point.ToRect(1e-9)
}

// Clusters groups markers greedily: in input order, each unassigned marker
// claims every unassigned marker within radius (degrees) of it.
func Clusters(markers []Marker, radius float64) []Cluster {
	if len(markers) == 0 {
		return nil
	}
	if radius <= 0 {
		out := make([]Cluster, len(markers))
		for i, m := range markers {
			out[i] = Cluster{Center: m.Point, Markers: []Marker{m}}
		}
		return out
	}

	tree := rtreego.NewTree(2, 25, 50)
	entries := make([]*spatialMarker, len(markers))
	for i, m := range markers {
		entries[i] = &spatialMarker{idx: i, point: rtreego.Point{m.Lat, m.Lon}}
		tree.Insert(entries[i])
	}

	assigned := make([]bool, len(markers))
	var clusters []Cluster
	for i, seed := range entries {
		if assigned[i] {
			continue
		}

		var members []int
		for _, hit := range tree.SearchIntersect(seed.point.ToRect(radius)) {
			e := hit.(*spatialMarker)
			if assigned[e.idx] || distance(seed.point, e.point) > radius {
				continue
			}
			members = append(members, e.idx)
		}
		sort.Ints(members)

		c := Cluster{}
		var lat, lon float64
		for _, idx := range members {
			assigned[idx] = true
			tree.Delete(entries[idx])
			c.Markers = append(c.Markers, markers[idx])
			lat += markers[idx].Lat
			lon += markers[idx].Lon
		}
		c.Center = Point{Lat: lat / float64(len(members)), Lon: lon / float64(len(members))}
		clusters = append(clusters, c)
	}
	return clusters
}

func distance(a, b rtreego.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}
