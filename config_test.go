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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleConfig = `
CRS = ""

[Raster]
Path = "wind.nc"
Format = "netcdf"
Variable = "wnd100m"
Epoch = "1900-01-01T00:00:00Z"
TimeUnitHours = 1.0
Scale = 0.001

[Assets]
Path = "plants.csv"
Model = "power-curve"
Curve = [[3.0, 0.0], [7.0, 40.0], [12.0, 100.0]]

[Mapping]
Mode = "inverse-distance"
Neighbors = 4
MaxSearchRadius = 1.5

[Temporal]
Start = "2016-01-01T00:00:00Z"
Steps = 24
StepHours = 1.0
Extrapolation = "reject"
ToleranceHours = 1.0

[Output]
Kind = "csv"
Path = "profiles.csv"
`

func TestReadConfig(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(exampleConfig))
	require.NoError(t, err)

	spec := c.VarSpec()
	assert.Equal(t, "wnd100m", spec.Name)
	assert.Equal(t, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), spec.Epoch)
	assert.Equal(t, time.Hour, spec.TimeUnit)
	assert.Equal(t, 0.001, spec.Scale)

	idx := c.TimeIndex()
	assert.Equal(t, 24, idx.N)
	assert.Equal(t, time.Hour, idx.Step)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), idx.Start)

	model := c.Model()(&Asset{ID: "x"})
	require.NoError(t, model.Validate())
	assert.InDelta(t, 20, model.At(5), 1e-12)
}

func TestReadConfigInvalid(t *testing.T) {
	_, err := ReadConfig(strings.NewReader(`
[Raster]
Format = "hdf5"
[Assets]
Model = "magic"
[Mapping]
Mode = "voronoi"
[Temporal]
Extrapolation = "wrap"
[Output]
Kind = "parquet"
`))
	require.Error(t, err)
	// Every problem is reported at once.
	for _, want := range []string{
		"raster path", "hdf5", "variable", "inventory path",
		"magic", "voronoi", "steps", "wrap", "parquet", "output path",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestNewPipelineFromConfig(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(exampleConfig))
	require.NoError(t, err)
	p, err := NewPipeline(c)
	require.NoError(t, err)
	assert.Equal(t, ModeInverseDistance, p.Mapper.Mode)
	assert.Equal(t, 4, p.Mapper.K)
	assert.Equal(t, 1.5, p.Mapper.MaxSearchRadius)
	assert.Equal(t, ExtrapReject, p.Aligner.Policy)
	assert.Equal(t, time.Hour, p.Aligner.Tolerance)
	assert.Equal(t, WGS84Proj, p.Reconciler.Proj4())
}
