// Package geo converts simulator positions to simplefeatures geometries.
// Board units are planar and unprojected, so geometries carry no SRID.
package geo

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/tiltpilot/navsim/pkg/core"
)

// ErrShortTrack is returned when a track has fewer than two points.
var ErrShortTrack = errors.New("track needs at least two points")

// PointFromVector returns an XYZ point for v.
func PointFromVector(v core.Vector3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Z:    v.Z,
		Type: geom.DimXYZ,
	})
}

// VectorFromPoint is the inverse of PointFromVector. The second result is
// false for an empty point.
func VectorFromPoint(p geom.Point) (core.Vector3, bool) {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vector3{}, false
	}
	return core.Vector3{X: c.X, Y: c.Y, Z: c.Z}, true
}

// TrackLineString builds an XYZ line string through the given positions.
func TrackLineString(track []core.Vector3) (geom.LineString, error) {
	if len(track) < 2 {
		return geom.LineString{}, ErrShortTrack
	}
	flat := make([]float64, 0, len(track)*3)
	for _, p := range track {
		flat = append(flat, p.X, p.Y, p.Z)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}

// TrackWKT renders the track as WKT, or "" for tracks too short to form a
// line.
func TrackWKT(track []core.Vector3) string {
	ls, err := TrackLineString(track)
	if err != nil {
		return ""
	}
	return ls.AsText()
}

// ParseTrackWKT reads a LINESTRING Z back into positions.
func ParseTrackWKT(wkt string) ([]core.Vector3, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}
	ls, ok := g.AsLineString()
	if !ok {
		return nil, fmt.Errorf("parse track: expected LineString, got %s", g.Type())
	}
	seq := ls.Coordinates()
	out := make([]core.Vector3, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = core.Vector3{X: c.X, Y: c.Y, Z: c.Z}
	}
	return out, nil
}

// HorizontalLength is the distance flown over the board plane.
func HorizontalLength(track []core.Vector3) float64 {
	ls, err := TrackLineString(track)
	if err != nil {
		return 0
	}
	return ls.Length()
}
