package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrIncompleteSample is returned when an acceleration vector is missing or
// has a null or non-finite component.
var ErrIncompleteSample = errors.New("acceleration vector missing or incomplete")

// MotionSample is a single acceleration-including-gravity reading in m/s².
// Field order on the wire is x, y, z.
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// String formats the sample with two decimals per axis.
func (s MotionSample) String() string {
	return fmt.Sprintf("x=%6.2f y=%6.2f z=%6.2f", s.X, s.Y, s.Z)
}

// Acceleration is a vector as delivered by a sensor platform or decoded from
// a request body. A nil component means the platform did not provide it.
type Acceleration struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Vector builds an Acceleration with all three components present.
func Vector(x, y, z float64) *Acceleration {
	return &Acceleration{X: &x, Y: &y, Z: &z}
}

// Complete reports whether all three components are present and finite.
// Platforms can report NaN for an axis they could not read, which JSON
// cannot carry.
func (a *Acceleration) Complete() bool {
	return a != nil && finite(a.X) && finite(a.Y) && finite(a.Z)
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// Sample converts the vector into a MotionSample.
// A nil vector or any missing or non-finite component yields
// ErrIncompleteSample.
func (a *Acceleration) Sample() (MotionSample, error) {
	if !a.Complete() {
		return MotionSample{}, ErrIncompleteSample
	}
	return MotionSample{X: *a.X, Y: *a.Y, Z: *a.Z}, nil
}

// Reading is a MotionSample as received and recorded by the relay server.
type Reading struct {
	ID         string    `json:"id"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	Source     string    `json:"source,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Sample returns the reading's acceleration vector.
func (r *Reading) Sample() MotionSample {
	return MotionSample{X: r.X, Y: r.Y, Z: r.Z}
}

// ReadingFilter narrows a reading listing. Zero values mean "no constraint".
type ReadingFilter struct {
	Source string
	Since  time.Time
	Limit  int
}

// Matches reports whether r satisfies the filter's source and since
// constraints. Limit is applied by the caller.
func (f ReadingFilter) Matches(r *Reading) bool {
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && r.ReceivedAt.Before(f.Since) {
		return false
	}
	return true
}

// AxisStats summarises one axis over a set of readings.
type AxisStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats summarises the readings currently held by a store.
type Stats struct {
	Count int        `json:"count"`
	X     AxisStats  `json:"x"`
	Y     AxisStats  `json:"y"`
	Z     AxisStats  `json:"z"`
	First *time.Time `json:"first,omitempty"`
	Last  *time.Time `json:"last,omitempty"`
}

// ComputeStats folds readings into Stats. The order of readings does not
// matter.
func ComputeStats(readings []*Reading) Stats {
	var st Stats
	if len(readings) == 0 {
		return st
	}
	var sx, sy, sz float64
	for i, r := range readings {
		if i == 0 {
			st.X = AxisStats{Min: r.X, Max: r.X}
			st.Y = AxisStats{Min: r.Y, Max: r.Y}
			st.Z = AxisStats{Min: r.Z, Max: r.Z}
			first, last := r.ReceivedAt, r.ReceivedAt
			st.First, st.Last = &first, &last
		}
		foldAxis(&st.X, r.X)
		foldAxis(&st.Y, r.Y)
		foldAxis(&st.Z, r.Z)
		sx += r.X
		sy += r.Y
		sz += r.Z
		if r.ReceivedAt.Before(*st.First) {
			t := r.ReceivedAt
			st.First = &t
		}
		if r.ReceivedAt.After(*st.Last) {
			t := r.ReceivedAt
			st.Last = &t
		}
	}
	n := float64(len(readings))
	st.Count = len(readings)
	st.X.Mean = sx / n
	st.Y.Mean = sy / n
	st.Z.Mean = sz / n
	return st
}

func foldAxis(a *AxisStats, v float64) {
	if v < a.Min {
		a.Min = v
	}
	if v > a.Max {
		a.Max = v
	}
}
