// Package geospatial builds the search region around a geocoded point.
//
// Regions are planar disks in degree space. One degree is taken as
// MetersPerDegree meters along both axes, so the east-west extent is
// stretched by 1/cos(lat) compared to a true geodesic circle.
package geospatial

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// MetersPerDegree is the flat conversion factor between meters and degrees.
const MetersPerDegree = 111320.0

// SRID is the spatial reference of every geometry produced here (WGS 84).
const SRID = 4326

// DefaultSegments is the number of vertices used to approximate the disk.
const DefaultSegments = 64

// ErrValidation is returned for non-finite or out-of-range inputs.
var ErrValidation = eris.New("geospatial: validation failed")

// Point is a longitude/latitude pair in EPSG:4326 degrees.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// String renders the point as "lat, lon" with six decimals.
func (p Point) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lon)
}

// Geom returns the point as a go-geom point with SRID 4326.
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(SRID)
}

// Validate checks that the coordinates are finite and in range.
func (p Point) Validate() error {
	if !finite(p.Lon) || !finite(p.Lat) {
		return eris.Wrapf(ErrValidation, "geospatial: non-finite coordinates (%v, %v)", p.Lon, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return eris.Wrapf(ErrValidation, "geospatial: longitude %v out of range", p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return eris.Wrapf(ErrValidation, "geospatial: latitude %v out of range", p.Lat)
	}
	return nil
}

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Bounds converts the box to go-geom bounds.
func (b BBox) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Region is the search area around a center point.
type Region struct {
	center        Point
	radiusMeters  float64
	radiusDegrees float64
	polygon       *geom.Polygon
}

// BuildRegion returns the disk of radiusMeters around p.
func BuildRegion(p Point, radiusMeters float64) (*Region, error) {
	return BuildRegionWithSegments(p, radiusMeters, DefaultSegments)
}

// BuildRegionWithSegments is BuildRegion with an explicit polygon resolution.
func BuildRegionWithSegments(p Point, radiusMeters float64, segments int) (*Region, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !finite(radiusMeters) || radiusMeters <= 0 {
		return nil, eris.Wrapf(ErrValidation, "geospatial: radius %v must be a positive finite number", radiusMeters)
	}
	if segments < 4 {
		return nil, eris.Wrapf(ErrValidation, "geospatial: %d segments is too few for a polygon", segments)
	}

	r := radiusMeters / MetersPerDegree

	flat := make([]float64, 0, 2*(segments+1))
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		flat = append(flat, p.Lon+r*math.Cos(theta), p.Lat+r*math.Sin(theta))
	}
	// Close the ring.
	flat = append(flat, flat[0], flat[1])

	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(SRID)

	return &Region{
		center:        p,
		radiusMeters:  radiusMeters,
		radiusDegrees: r,
		polygon:       poly,
	}, nil
}

// Center returns the point the region was built from.
func (r *Region) Center() Point { return r.center }

// RadiusMeters returns the requested radius.
func (r *Region) RadiusMeters() float64 { return r.radiusMeters }

// RadiusDegrees returns the radius converted with MetersPerDegree.
func (r *Region) RadiusDegrees() float64 { return r.radiusDegrees }

// Polygon returns the disk approximation. Callers must not mutate it.
func (r *Region) Polygon() *geom.Polygon { return r.polygon }

// BBox returns the exact bounding box of the disk.
func (r *Region) BBox() BBox {
	return BBox{
		MinLng: r.center.Lon - r.radiusDegrees,
		MinLat: r.center.Lat - r.radiusDegrees,
		MaxLng: r.center.Lon + r.radiusDegrees,
		MaxLat: r.center.Lat + r.radiusDegrees,
	}
}

// Contains reports whether p lies within the planar disk.
func (r *Region) Contains(p Point) bool {
	dx := p.Lon - r.center.Lon
	dy := p.Lat - r.center.Lat
	return math.Hypot(dx, dy) <= r.radiusDegrees
}

// DistortionFactor is how much wider the region is east-west on the ground
// than north-south, 1/cos(lat).
func (r *Region) DistortionFactor() float64 {
	c := math.Cos(r.center.Lat * math.Pi / 180)
	if c <= 0 {
		return math.Inf(1)
	}
	return 1 / c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
