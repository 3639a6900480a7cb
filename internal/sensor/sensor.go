// Package sensor turns raw accelerometer counts into tilt samples relative
// to the attitude the vehicle started in.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrZeroGravity is returned when the startup Z sample cannot serve as a
	// gravity reference.
	ErrZeroGravity = errors.New("sensor: zero gravity reference")
	// ErrMalformedSample is returned for an unparseable sample line.
	ErrMalformedSample = errors.New("sensor: malformed sample")
)

// DefaultDivisor converts raw counts to the unit tilt is integrated in.
const DefaultDivisor = 1000

// RawSample is one accelerometer reading in device counts.
type RawSample struct {
	X, Y, Z int
}

func (s RawSample) String() string {
	return fmt.Sprintf("%d,%d,%d", s.X, s.Y, s.Z)
}

// RawReader reads one accelerometer sample.
type RawReader interface {
	ReadRaw(ctx context.Context) (RawSample, error)
}

// ParseSample parses an "x,y,z" line of integer counts.
func ParseSample(line string) (RawSample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return RawSample{}, fmt.Errorf("%w: %q", ErrMalformedSample, line)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return RawSample{}, fmt.Errorf("%w: %q: %v", ErrMalformedSample, line, err)
		}
		vals[i] = v
	}
	return RawSample{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
