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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearModel(a *Asset) ConversionModel { return &CappedLinear{Slope: 1} }

func TestLoadAssetsCSV(t *testing.T) {
	in := `id,lon,lat,capacity_mw
# comment lines are skipped
w1,-100.0,40.0,2.5
w2, -99.0, 41.0, 100
`
	assets, err := LoadAssetsCSV(strings.NewReader(in), linearModel)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "w1", assets[0].ID)
	assert.Equal(t, -100., assets[0].Point.X)
	assert.Equal(t, 40., assets[0].Point.Y)
	assert.Equal(t, 2.5, assets[0].Capacity)
	assert.Equal(t, 100., assets[1].Capacity)
	assert.NotNil(t, assets[1].Model)
}

func TestLoadAssetsCSVColumnOrder(t *testing.T) {
	// Column order does not matter; the header decides.
	in := "capacity_mw,id,lat,lon\n5,w1,40,-100\n"
	assets, err := LoadAssetsCSV(strings.NewReader(in), linearModel)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, 5., assets[0].Capacity)
	assert.Equal(t, -100., assets[0].Point.X)
}

func TestLoadAssetsCSVMissingColumn(t *testing.T) {
	in := "id,lon,lat\nw1,-100,40\n"
	_, err := LoadAssetsCSV(strings.NewReader(in), linearModel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity_mw")
}

func TestLoadAssetsCSVBadValue(t *testing.T) {
	in := "id,lon,lat,capacity_mw\nw1,-100,40,lots\n"
	_, err := LoadAssetsCSV(strings.NewReader(in), linearModel)
	assert.Error(t, err)
}

func TestLoadAssetsCSVInvalidAsset(t *testing.T) {
	in := "id,lon,lat,capacity_mw\nw1,-100,40,-3\n"
	_, err := LoadAssetsCSV(strings.NewReader(in), linearModel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not positive")
}
