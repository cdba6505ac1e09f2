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
	"os"
	"sort"
	"time"

	"bitbucket.org/ctessum/sparse"
	"github.com/nilsmagnus/grib/griblib"
)

// gribAngleUnit converts GRIB2 template 3.0 micro-degree coordinates to
// degrees.
const gribAngleUnit = 1.e-6

// GRIB2Source reads frames from a GRIB2 archive. Only regular
// latitude/longitude grids (grid definition template 3.0) are supported;
// every message in the archive must share one grid. GRIB2 is a
// message-per-field format, so the whole archive is decoded on open and
// frames are handed out in timestamp order.
type GRIB2Source struct {
	axes   *Axes
	frames []*Frame
	pos    int
}

// OpenGRIB2 opens and decodes a GRIB2 archive.
func OpenGRIB2(path string) (*GRIB2Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: opening %s: %w", path, err)
	}
	defer f.Close()
	messages, err := griblib.ReadMessages(f)
	if err != nil {
		return nil, fmt.Errorf("raster: parsing %s: %w", path, err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("raster: %s contains no GRIB messages", path)
	}

	s := new(GRIB2Source)
	for _, m := range messages {
		grid, ok := m.Section3.Definition.(*griblib.Grid0)
		if !ok {
			return nil, fmt.Errorf("raster: %s: unsupported grid definition template %d; only regular lat/lon grids are supported",
				path, m.Section3.TemplateNumber)
		}
		axes := gribAxes(grid)
		if s.axes == nil {
			s.axes = axes
		} else if !s.axes.Equal(axes) {
			return nil, fmt.Errorf("raster: %s: messages do not share a single grid", path)
		}

		ni, nj := len(axes.Lon), len(axes.Lat)
		if len(m.Section7.Data) != ni*nj {
			return nil, fmt.Errorf("raster: %s: message has %d values; grid requires %d",
				path, len(m.Section7.Data), ni*nj)
		}
		data := sparse.ZerosDense(nj, ni)
		// Template 3.0 scans rows of constant latitude.
		for i := 0; i < nj; i++ {
			for j := 0; j < ni; j++ {
				data.Set(m.Section7.Data[i*ni+j], i, j)
			}
		}
		s.frames = append(s.frames, &Frame{Time: gribTime(m.Section1.ReferenceTime), Data: data})
	}
	sort.Slice(s.frames, func(i, j int) bool {
		return s.frames[i].Time.Before(s.frames[j].Time)
	})
	return s, nil
}

func gribAxes(grid *griblib.Grid0) *Axes {
	nj := int(grid.Nj)
	ni := int(grid.Ni)
	lat := make([]float64, nj)
	lon := make([]float64, ni)
	la1 := float64(grid.La1) * gribAngleUnit
	lo1 := float64(grid.Lo1) * gribAngleUnit
	dj := float64(grid.Dj) * gribAngleUnit
	di := float64(grid.Di) * gribAngleUnit
	// Scanning mode flag 0x40: points scan south to north.
	if grid.ScanningMode&0x40 == 0 {
		dj = -dj
	}
	for i := range lat {
		lat[i] = la1 + float64(i)*dj
	}
	for j := range lon {
		lon[j] = lo1 + float64(j)*di
	}
	return &Axes{Lat: lat, Lon: lon}
}

func gribTime(t griblib.Time) time.Time {
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), 0, time.UTC)
}

// Axes returns the shared grid axes.
func (s *GRIB2Source) Axes() *Axes { return s.axes }

// Next returns the next frame in timestamp order.
func (s *GRIB2Source) Next() (*Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Close is a no-op; the file is fully decoded on open.
func (s *GRIB2Source) Close() error { return nil }
