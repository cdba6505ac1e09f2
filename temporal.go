/*
Copyright (C) 2025 the PreREISE authors.
This file is part of PreREISE.

PreREISE is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PreREISE is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PreREISE.  If not, see <http://www.gnu.org/licenses/>.
*/

package prereise

import (
	"fmt"
	"sort"
	"time"
)

// Sample is one timestamped resource value.
type Sample struct {
	Time  time.Time
	Value float64
}

// ResourceSeries is the resource history for one asset. Timestamps are
// strictly increasing; duplicates are rejected at construction.
type ResourceSeries struct {
	AssetID string
	Samples []Sample
}

// Append adds a sample, enforcing timestamp order.
func (s *ResourceSeries) Append(t time.Time, v float64) error {
	if n := len(s.Samples); n > 0 && !t.After(s.Samples[n-1].Time) {
		return fmt.Errorf("prereise: asset %s: sample at %v is not after previous sample at %v",
			s.AssetID, t, s.Samples[n-1].Time)
	}
	s.Samples = append(s.Samples, Sample{Time: t, Value: v})
	return nil
}

// TimeIndex is the simulation's unified fixed-step time index.
type TimeIndex struct {
	Start time.Time
	N     int
	Step  time.Duration
}

// Times materializes the index.
func (ti TimeIndex) Times() []time.Time {
	out := make([]time.Time, ti.N)
	for i := range out {
		out[i] = ti.Start.Add(time.Duration(i) * ti.Step)
	}
	return out
}

// End returns the last timestamp of the index.
func (ti TimeIndex) End() time.Time {
	return ti.Start.Add(time.Duration(ti.N-1) * ti.Step)
}

// ExtrapPolicy controls what happens when the target index extends
// beyond the source samples.
type ExtrapPolicy int

const (
	// ExtrapReject fails with TemporalRangeError when a target time
	// falls outside the covered range by more than the tolerance;
	// inside the tolerance window the nearest boundary sample is held.
	ExtrapReject ExtrapPolicy = iota
	// ExtrapHoldLast holds the nearest boundary sample for any target
	// time outside the covered range.
	ExtrapHoldLast
	// ExtrapZero emits zero for any target time outside the covered
	// range.
	ExtrapZero
)

// ParseExtrapPolicy converts a configuration string to a policy. There
// is deliberately no default; the policy must be chosen explicitly.
func ParseExtrapPolicy(s string) (ExtrapPolicy, error) {
	switch s {
	case "reject":
		return ExtrapReject, nil
	case "hold-last":
		return ExtrapHoldLast, nil
	case "zero":
		return ExtrapZero, nil
	}
	return 0, fmt.Errorf("prereise: unknown extrapolation policy %q; want reject, hold-last or zero", s)
}

// Aligner resamples resource series onto the unified time index.
type Aligner struct {
	Policy ExtrapPolicy
	// Tolerance is the window around the covered range within which
	// the reject policy still holds the boundary value instead of
	// failing.
	Tolerance time.Duration
}

// Align resamples the series onto the target index using linear
// interpolation between source samples. The output preserves index
// order and contains no NaN values inside the source's covered range.
func (al Aligner) Align(s *ResourceSeries, idx TimeIndex) ([]float64, error) {
	if len(s.Samples) == 0 {
		return nil, fmt.Errorf("prereise: asset %s: cannot align an empty resource series", s.AssetID)
	}
	if idx.N <= 0 || idx.Step <= 0 {
		return nil, fmt.Errorf("prereise: invalid target index: n=%d step=%v", idx.N, idx.Step)
	}
	first := s.Samples[0]
	last := s.Samples[len(s.Samples)-1]
	out := make([]float64, idx.N)
	for i := 0; i < idx.N; i++ {
		t := idx.Start.Add(time.Duration(i) * idx.Step)
		switch {
		case t.Before(first.Time):
			v, err := al.extrapolate(s.AssetID, t, first, true)
			if err != nil {
				return nil, err
			}
			out[i] = v
		case t.After(last.Time):
			v, err := al.extrapolate(s.AssetID, t, last, false)
			if err != nil {
				return nil, err
			}
			out[i] = v
		default:
			out[i] = interpolate(s.Samples, t)
		}
	}
	return out, nil
}

func (al Aligner) extrapolate(assetID string, t time.Time, edge Sample, before bool) (float64, error) {
	gap := t.Sub(edge.Time)
	if before {
		gap = edge.Time.Sub(t)
	}
	switch al.Policy {
	case ExtrapHoldLast:
		return edge.Value, nil
	case ExtrapZero:
		return 0, nil
	default:
		if gap > al.Tolerance {
			return 0, &TemporalRangeError{
				AssetID:    assetID,
				Want:       t,
				Have:       edge.Time,
				Tolerance:  al.Tolerance,
				BeforeData: before,
			}
		}
		return edge.Value, nil
	}
}

// interpolate returns the linearly interpolated value at t, which must
// lie within [first, last] of the samples.
func interpolate(samples []Sample, t time.Time) float64 {
	// index of the first sample at or after t
	i := sort.Search(len(samples), func(i int) bool { return !samples[i].Time.Before(t) })
	if samples[i].Time.Equal(t) {
		return samples[i].Value
	}
	lo, hi := samples[i-1], samples[i]
	frac := float64(t.Sub(lo.Time)) / float64(hi.Time.Sub(lo.Time))
	return lo.Value + frac*(hi.Value-lo.Value)
}
