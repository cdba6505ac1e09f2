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

package raster

import (
	"fmt"
	"io"
	"time"

	"bitbucket.org/ctessum/sparse"
	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// NetCDFSource reads frames from an ERA5-style NetCDF archive: a
// (time, latitude, longitude) variable with one-dimensional coordinate
// variables. Frames are read lazily, one timestamp per Next call.
type NetCDFSource struct {
	nc    api.Group
	spec  VarSpec
	axes  *Axes
	times []time.Time
	vg    api.VarGetter
	pos   int
}

// OpenNetCDF opens a NetCDF archive for reading.
func OpenNetCDF(path string, spec VarSpec) (*NetCDFSource, error) {
	spec = spec.withDefaults()
	if spec.Name == "" {
		return nil, fmt.Errorf("raster: no resource variable name given for %s", path)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: opening %s: %w", path, err)
	}
	s := &NetCDFSource{nc: nc, spec: spec}

	lat, err := coordValues(nc, spec.LatVar)
	if err != nil {
		nc.Close()
		return nil, err
	}
	lon, err := coordValues(nc, spec.LonVar)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.axes = &Axes{Lat: lat, Lon: lon}

	ticks, err := coordValues(nc, spec.TimeVar)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.times = make([]time.Time, len(ticks))
	for i, tk := range ticks {
		s.times[i] = spec.Epoch.Add(time.Duration(tk) * spec.TimeUnit)
	}

	s.vg, err = nc.GetVarGetter(spec.Name)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("raster: variable %s in %s: %w", spec.Name, path, err)
	}
	return s, nil
}

// coordValues reads a one-dimensional coordinate variable as float64.
func coordValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("raster: coordinate variable %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("raster: reading coordinate %s: %w", name, err)
	}
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, x := range vals {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(vals))
		for i, x := range vals {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vals))
		for i, x := range vals {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("raster: coordinate %s has unsupported type %T", name, v)
}

// Axes returns the grid axes of the archive.
func (s *NetCDFSource) Axes() *Axes { return s.axes }

// Next reads the field for the next timestamp.
func (s *NetCDFSource) Next() (*Frame, error) {
	if s.pos >= len(s.times) {
		return nil, io.EOF
	}
	v, err := s.vg.GetSlice(int64(s.pos), int64(s.pos)+1)
	if err != nil {
		return nil, fmt.Errorf("raster: reading %s at %v: %w", s.spec.Name, s.times[s.pos], err)
	}
	data := sparse.ZerosDense(len(s.axes.Lat), len(s.axes.Lon))
	if err := s.fill(data, v); err != nil {
		return nil, fmt.Errorf("raster: %s at %v: %w", s.spec.Name, s.times[s.pos], err)
	}
	f := &Frame{Time: s.times[s.pos], Data: data}
	s.pos++
	return f, nil
}

func (s *NetCDFSource) fill(data *sparse.DenseArray, v interface{}) error {
	set := func(i, j int, raw float64) {
		data.Set(raw*s.spec.Scale+s.spec.Offset, i, j)
	}
	switch field := v.(type) {
	case [][][]float64:
		for i, row := range field[0] {
			for j, x := range row {
				set(i, j, x)
			}
		}
	case [][][]float32:
		for i, row := range field[0] {
			for j, x := range row {
				set(i, j, float64(x))
			}
		}
	case [][][]int32:
		for i, row := range field[0] {
			for j, x := range row {
				set(i, j, float64(x))
			}
		}
	case [][][]int16:
		for i, row := range field[0] {
			for j, x := range row {
				set(i, j, float64(x))
			}
		}
	default:
		return fmt.Errorf("unsupported variable type %T", v)
	}
	return nil
}

// Close closes the underlying file.
func (s *NetCDFSource) Close() error {
	s.nc.Close()
	return nil
}
