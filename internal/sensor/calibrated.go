package sensor

import (
	"context"
	"fmt"

	"github.com/tiltpilot/navsim/pkg/core"
)

// Calibrated zero-references samples against the first reading taken at
// startup.
type Calibrated struct {
	reader  RawReader
	divisor float64
	bias    RawSample
	gravity float64
}

// Calibrate takes the startup reading from r and returns a sampler whose
// output is relative to it. divisor <= 0 selects DefaultDivisor.
func Calibrate(ctx context.Context, r RawReader, divisor float64) (*Calibrated, error) {
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	bias, err := r.ReadRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("read startup sample: %w", err)
	}
	gravity := float64(bias.Z) / divisor
	if gravity == 0 {
		return nil, ErrZeroGravity
	}
	return &Calibrated{reader: r, divisor: divisor, bias: bias, gravity: gravity}, nil
}

// GravityReference is the startup Z reading scaled by the divisor.
func (c *Calibrated) GravityReference() float64 {
	return c.gravity
}

// Bias returns the startup reading.
func (c *Calibrated) Bias() RawSample {
	return c.bias
}

// SampleTilt reads a sample and returns it relative to the startup reading.
func (c *Calibrated) SampleTilt(ctx context.Context) (core.Vector3, error) {
	raw, err := c.reader.ReadRaw(ctx)
	if err != nil {
		return core.Vector3{}, err
	}
	return core.Vector3{
		X: float64(raw.X-c.bias.X) / c.divisor,
		Y: float64(raw.Y-c.bias.Y) / c.divisor,
		Z: float64(raw.Z-c.bias.Z) / c.divisor,
	}, nil
}
