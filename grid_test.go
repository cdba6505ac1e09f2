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
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isond/prereise/raster"
)

func testGrid(t *testing.T) *Grid {
	t.Helper()
	sr, err := proj.Parse(WGS84Proj)
	require.NoError(t, err)
	g, err := NewGrid(&raster.Axes{
		Lat: []float64{40, 41},
		Lon: []float64{-100, -99},
	}, sr)
	require.NoError(t, err)
	return g
}

func TestNewGrid(t *testing.T) {
	g := testGrid(t)
	assert.Equal(t, 2, g.Nx)
	assert.Equal(t, 2, g.Ny)
	assert.Len(t, g.Cells, 4)
	// Cell IDs are row-major so they can index raster frames directly.
	assert.Equal(t, geom.Point{X: -100, Y: 40}, g.Cells[0].Center)
	assert.Equal(t, geom.Point{X: -99, Y: 40}, g.Cells[1].Center)
	assert.Equal(t, geom.Point{X: -100, Y: 41}, g.Cells[2].Center)
	assert.Equal(t, 1, g.Cells[3].Row)
	assert.Equal(t, 1, g.Cells[3].Col)
	// Extent spans half a cell beyond the outermost centers.
	assert.InDelta(t, -100.5, g.Extent.Min.X, 1e-12)
	assert.InDelta(t, 41.5, g.Extent.Max.Y, 1e-12)
}

func TestGridDescendingLatitude(t *testing.T) {
	sr, err := proj.Parse(WGS84Proj)
	require.NoError(t, err)
	g, err := NewGrid(&raster.Axes{
		Lat: []float64{41, 40}, // north-to-south archive
		Lon: []float64{-100, -99},
	}, sr)
	require.NoError(t, err)
	id, err := g.CellAt(geom.Point{X: -99.9, Y: 40.9})
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	id, err = g.CellAt(geom.Point{X: -99.1, Y: 40.1})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestCellAt(t *testing.T) {
	g := testGrid(t)
	cases := []struct {
		p    geom.Point
		want int
	}{
		{geom.Point{X: -99.9, Y: 40.1}, 0},
		{geom.Point{X: -99.1, Y: 40.1}, 1},
		{geom.Point{X: -99.9, Y: 40.9}, 2},
		{geom.Point{X: -99, Y: 41}, 3},    // exactly on a center
		{geom.Point{X: -98.5, Y: 41.5}, 3}, // on the far edge
	}
	for _, c := range cases {
		id, err := g.CellAt(c.p)
		require.NoError(t, err)
		assert.Equalf(t, c.want, id, "point %+v", c.p)
	}

	_, err := g.CellAt(geom.Point{X: -90, Y: 40})
	var oob *OutOfBoundsError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, -90., oob.X)
}

func TestNearestDeterministicTieBreak(t *testing.T) {
	g := testGrid(t)
	// The grid midpoint is equidistant from all four centers; ties
	// resolve by lowest cell ID, every time.
	mid := geom.Point{X: -99.5, Y: 40.5}
	for i := 0; i < 10; i++ {
		near, err := g.Nearest(mid, 2, 0)
		require.NoError(t, err)
		require.Len(t, near, 2)
		assert.Equal(t, 0, near[0].ID)
		assert.Equal(t, 1, near[1].ID)
		assert.Equal(t, near[0].Distance, near[1].Distance)
	}
}

func TestNearestRadius(t *testing.T) {
	g := testGrid(t)
	p := geom.Point{X: -100, Y: 40.1}
	near, err := g.Nearest(p, 4, 0.5)
	require.NoError(t, err)
	// Only the cell 0.1 degrees away is inside the radius.
	require.Len(t, near, 1)
	assert.Equal(t, 0, near[0].ID)

	// Outside the extent with no fallback radius the query fails; with a
	// radius it degrades to a bounded search.
	outside := geom.Point{X: -101, Y: 40}
	_, err = g.Nearest(outside, 1, 0)
	var oob *OutOfBoundsError
	require.ErrorAs(t, err, &oob)
	near, err = g.Nearest(outside, 1, 2)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, 0, near[0].ID)
}

func TestNearestEmptyGrid(t *testing.T) {
	g := &Grid{}
	_, err := g.Nearest(geom.Point{}, 1, 0)
	var empty *EmptyIndexError
	assert.ErrorAs(t, err, &empty)
}

func TestQueryWithin(t *testing.T) {
	g := testGrid(t)
	// A polygon covering the western half of the grid.
	west := geom.Polygon{{
		{X: -100.5, Y: 39.5}, {X: -99.5, Y: 39.5},
		{X: -99.5, Y: 41.5}, {X: -100.5, Y: 41.5}, {X: -100.5, Y: 39.5}}}
	ids, err := g.QueryWithin(west)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, ids)
}
