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
)

// ConversionModel turns a resource value (wind speed, irradiance) into
// unclamped power output in MW. Implementations must be safe for
// concurrent use after Validate has passed.
type ConversionModel interface {
	// At returns power output in MW for the given resource value.
	At(resource float64) float64
	// Validate checks the model parameters. It is called once when the
	// asset inventory is loaded.
	Validate() error
}

// Convert applies the asset's model to one resource value and clamps
// the result to [0, rated capacity].
func Convert(resource float64, a *Asset) float64 {
	p := a.Model.At(resource)
	if p < 0 {
		return 0
	}
	if p > a.Capacity {
		return a.Capacity
	}
	return p
}

// CappedLinear is the linear conversion model: power = Slope*resource +
// Intercept, before clamping.
type CappedLinear struct {
	Slope     float64 // MW per resource unit
	Intercept float64 // MW
}

// At returns the linear power output.
func (m *CappedLinear) At(resource float64) float64 {
	return m.Slope*resource + m.Intercept
}

// Validate rejects a non-positive slope; a flat or descending line
// cannot represent a generation response.
func (m *CappedLinear) Validate() error {
	if m.Slope <= 0 {
		return fmt.Errorf("capped-linear slope %g is not positive", m.Slope)
	}
	return nil
}

// CurvePoint is one knot of a piecewise-linear power curve.
type CurvePoint struct {
	Resource float64
	Power    float64 // MW
}

// PowerCurve is the curve-lookup conversion model: piecewise-linear
// interpolation over a monotonic resource-to-power curve. Resource
// values below the first knot yield the first knot's power; values
// above the last knot yield the last knot's power.
type PowerCurve struct {
	Points []CurvePoint
}

// At interpolates the curve at the given resource value.
func (m *PowerCurve) At(resource float64) float64 {
	pts := m.Points
	if resource <= pts[0].Resource {
		return pts[0].Power
	}
	if resource >= pts[len(pts)-1].Resource {
		return pts[len(pts)-1].Power
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Resource >= resource })
	lo, hi := pts[i-1], pts[i]
	frac := (resource - lo.Resource) / (hi.Resource - lo.Resource)
	return lo.Power + frac*(hi.Power-lo.Power)
}

// Validate requires at least two knots, strictly increasing resource
// values, non-decreasing power values, and no negative power.
func (m *PowerCurve) Validate() error {
	if len(m.Points) < 2 {
		return fmt.Errorf("power curve has %d points; need at least 2", len(m.Points))
	}
	for i, p := range m.Points {
		if p.Power < 0 {
			return fmt.Errorf("power curve point %d has negative power %g", i, p.Power)
		}
		if i == 0 {
			continue
		}
		prev := m.Points[i-1]
		if p.Resource <= prev.Resource {
			return fmt.Errorf("power curve resource values are not strictly increasing at point %d (%g after %g)",
				i, p.Resource, prev.Resource)
		}
		if p.Power < prev.Power {
			return fmt.Errorf("power curve is not monotonic at point %d (%g after %g)",
				i, p.Power, prev.Power)
		}
	}
	return nil
}
