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

// Package raster reads time-stamped two-dimensional resource fields
// (wind speed, irradiance) from gridded weather archives.
package raster

import (
	"fmt"
	"math"
	"time"

	"bitbucket.org/ctessum/sparse"
)

// Axes holds the coordinate axes of a regular latitude/longitude grid.
// Axis values are ordered and shared by every frame of one source.
type Axes struct {
	Lat []float64
	Lon []float64
}

// Validate checks that both axes are present, have at least two points,
// and are strictly monotonic with regular spacing.
func (a *Axes) Validate() error {
	for name, ax := range map[string][]float64{"latitude": a.Lat, "longitude": a.Lon} {
		if len(ax) < 2 {
			return fmt.Errorf("raster: %s axis has %d points; need at least 2", name, len(ax))
		}
		d := ax[1] - ax[0]
		if d == 0 {
			return fmt.Errorf("raster: %s axis is not monotonic", name)
		}
		for i := 1; i < len(ax); i++ {
			step := ax[i] - ax[i-1]
			if step*d <= 0 {
				return fmt.Errorf("raster: %s axis is not monotonic at index %d", name, i)
			}
			if math.Abs(step-d) > 1.e-6*math.Abs(d) {
				return fmt.Errorf("raster: %s axis spacing is irregular at index %d (%g vs %g)",
					name, i, step, d)
			}
		}
	}
	return nil
}

// Dlat returns the latitude axis spacing (may be negative for
// north-to-south ordered archives).
func (a *Axes) Dlat() float64 { return a.Lat[1] - a.Lat[0] }

// Dlon returns the longitude axis spacing.
func (a *Axes) Dlon() float64 { return a.Lon[1] - a.Lon[0] }

// Equal reports whether two axis sets are identical.
func (a *Axes) Equal(b *Axes) bool {
	if len(a.Lat) != len(b.Lat) || len(a.Lon) != len(b.Lon) {
		return false
	}
	for i, v := range a.Lat {
		if b.Lat[i] != v {
			return false
		}
	}
	for i, v := range a.Lon {
		if b.Lon[i] != v {
			return false
		}
	}
	return true
}

// Frame is one time-stamped resource field on the source grid.
// Data is indexed [lat, lon].
type Frame struct {
	Time time.Time
	Data *sparse.DenseArray
}

// CheckShape verifies that the frame's array dimensions match the axes.
func (f *Frame) CheckShape(a *Axes) error {
	if len(f.Data.Shape) != 2 {
		return fmt.Errorf("raster: frame at %v has %d dimensions; want 2", f.Time, len(f.Data.Shape))
	}
	if f.Data.Shape[0] != len(a.Lat) || f.Data.Shape[1] != len(a.Lon) {
		return fmt.Errorf("raster: frame at %v has shape [%d %d]; axes require [%d %d]",
			f.Time, f.Data.Shape[0], f.Data.Shape[1], len(a.Lat), len(a.Lon))
	}
	return nil
}

// FrameSource is a lazy sequence of time-stamped frames. Next returns
// io.EOF after the last frame. Implementations own the underlying file
// handle lifecycle.
type FrameSource interface {
	Axes() *Axes
	Next() (*Frame, error)
	Close() error
}

// Format selects a raster archive decoder.
type Format int

const (
	FormatNetCDF Format = iota
	FormatGRIB2
)

// ParseFormat converts a configuration string to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "netcdf":
		return FormatNetCDF, nil
	case "grib", "grib2":
		return FormatGRIB2, nil
	}
	return 0, fmt.Errorf("raster: unknown format %q; want netcdf or grib2", s)
}

// VarSpec describes where the resource variable lives inside an archive
// and how to unpack it.
type VarSpec struct {
	// Name is the resource variable (e.g. "wnd100m", "ssrd").
	Name string
	// TimeVar, LatVar and LonVar are the coordinate variable names.
	// Empty values default to "time", "latitude" and "longitude".
	TimeVar, LatVar, LonVar string
	// Epoch is the zero point the time variable counts from.
	Epoch time.Time
	// TimeUnit is the duration of one tick of the time variable
	// (time.Hour for ERA5-style archives).
	TimeUnit time.Duration
	// Scale and Offset unpack integer-packed variables:
	// value = raw*Scale + Offset. A zero Scale means 1.
	Scale, Offset float64
}

func (s *VarSpec) withDefaults() VarSpec {
	o := *s
	if o.TimeVar == "" {
		o.TimeVar = "time"
	}
	if o.LatVar == "" {
		o.LatVar = "latitude"
	}
	if o.LonVar == "" {
		o.LonVar = "longitude"
	}
	if o.TimeUnit == 0 {
		o.TimeUnit = time.Hour
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	return o
}

// Open opens a raster archive with the decoder for the given format and
// wraps it so that frames are guaranteed to arrive in timestamp order.
func Open(path string, format Format, spec VarSpec) (FrameSource, error) {
	var src FrameSource
	var err error
	switch format {
	case FormatNetCDF:
		src, err = OpenNetCDF(path, spec)
	case FormatGRIB2:
		src, err = OpenGRIB2(path)
	default:
		err = fmt.Errorf("raster: unknown format %d", format)
	}
	if err != nil {
		return nil, err
	}
	return NewOrderedSource(src)
}

// OrderedSource wraps a FrameSource and rejects frames that arrive out
// of timestamp order or with a shape inconsistent with the source axes.
// Downstream components assume time-ordered input.
type OrderedSource struct {
	src  FrameSource
	last time.Time
	any  bool
}

// NewOrderedSource validates the source axes and wraps the source.
func NewOrderedSource(src FrameSource) (*OrderedSource, error) {
	if err := src.Axes().Validate(); err != nil {
		src.Close()
		return nil, err
	}
	return &OrderedSource{src: src}, nil
}

// Axes returns the axes of the wrapped source.
func (o *OrderedSource) Axes() *Axes { return o.src.Axes() }

// Next returns the next frame, failing if it is not strictly after the
// previous one.
func (o *OrderedSource) Next() (*Frame, error) {
	f, err := o.src.Next()
	if err != nil {
		return nil, err
	}
	if err := f.CheckShape(o.src.Axes()); err != nil {
		return nil, err
	}
	if o.any && !f.Time.After(o.last) {
		return nil, fmt.Errorf("raster: frame at %v is not after previous frame at %v", f.Time, o.last)
	}
	o.any = true
	o.last = f.Time
	return f, nil
}

// Close closes the wrapped source.
func (o *OrderedSource) Close() error { return o.src.Close() }
