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
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"

	"github.com/isond/prereise/raster"
)

// Cell is one resource-grid cell. The ID is the row-major position of
// the cell in its raster frame, so Frame.Data.Get(Row, Col) is the
// resource value for the cell; it doubles as the deterministic
// tie-break key for equidistant queries.
type Cell struct {
	geom.Polygonal
	ID       int
	Row, Col int
	Center   geom.Point
}

// CellDistance is a query result: a cell ID and its center's distance
// from the query point, in the units of the grid's CRS.
type CellDistance struct {
	ID       int
	Distance float64
}

// Grid indexes the cells of a regular raster grid for nearest-neighbor
// and containment queries. Cell centers sit on the raster axis values.
type Grid struct {
	Nx, Ny int
	Dx, Dy float64 // axis spacing; Dy is negative for north-to-south archives
	X0, Y0 float64 // center of cell (0, 0)
	SR     *proj.SR
	Cells  []*Cell
	Extent *geom.Bounds

	index *rtree.Rtree
}

// NewGrid builds the queryable cell set for the given raster axes.
// The axes are assumed to already be in the grid's CRS.
func NewGrid(axes *raster.Axes, sr *proj.SR) (*Grid, error) {
	if err := axes.Validate(); err != nil {
		return nil, err
	}
	g := &Grid{
		Nx: len(axes.Lon),
		Ny: len(axes.Lat),
		Dx: axes.Dlon(),
		Dy: axes.Dlat(),
		X0: axes.Lon[0],
		Y0: axes.Lat[0],
		SR: sr,
	}
	g.index = rtree.NewTree(25, 50)
	g.Cells = make([]*Cell, 0, g.Nx*g.Ny)
	g.Extent = geom.NewBounds()
	for iy, lat := range axes.Lat {
		for ix, lon := range axes.Lon {
			cell := &Cell{
				ID:     iy*g.Nx + ix,
				Row:    iy,
				Col:    ix,
				Center: geom.Point{X: lon, Y: lat},
			}
			x0, x1 := lon-g.Dx/2, lon+g.Dx/2
			y0, y1 := lat-g.Dy/2, lat+g.Dy/2
			if x0 > x1 {
				x0, x1 = x1, x0
			}
			if y0 > y1 {
				y0, y1 = y1, y0
			}
			cell.Polygonal = geom.Polygon{{
				{X: x0, Y: y0}, {X: x1, Y: y0},
				{X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
			g.index.Insert(cell)
			g.Cells = append(g.Cells, cell)
			g.Extent.Extend(cell.Bounds())
		}
	}
	return g, nil
}

// Descriptor identifies the grid geometry for cache keying.
func (g *Grid) Descriptor() string {
	return fmt.Sprintf("%dx%d dx=%g dy=%g x0=%g y0=%g", g.Nx, g.Ny, g.Dx, g.Dy, g.X0, g.Y0)
}

// contains reports whether the point is inside the grid extent.
func (g *Grid) contains(p geom.Point) bool {
	return p.X >= g.Extent.Min.X && p.X <= g.Extent.Max.X &&
		p.Y >= g.Extent.Min.Y && p.Y <= g.Extent.Max.Y
}

// CellAt returns the ID of the cell containing the point. Containment
// is arithmetic; the regular grid makes the row/col directly computable.
func (g *Grid) CellAt(p geom.Point) (int, error) {
	if len(g.Cells) == 0 {
		return 0, &EmptyIndexError{}
	}
	if !g.contains(p) {
		return 0, &OutOfBoundsError{X: p.X, Y: p.Y}
	}
	col := int(math.Floor((p.X - (g.X0 - g.Dx/2)) / g.Dx))
	row := int(math.Floor((p.Y - (g.Y0 - g.Dy/2)) / g.Dy))
	// points on the far edge belong to the last cell
	if col == g.Nx {
		col = g.Nx - 1
	}
	if row == g.Ny {
		row = g.Ny - 1
	}
	if col < 0 || col >= g.Nx || row < 0 || row >= g.Ny {
		return 0, &OutOfBoundsError{X: p.X, Y: p.Y}
	}
	return row*g.Nx + col, nil
}

// Nearest returns the k cells whose centers are nearest to p, ordered
// by ascending distance with ties broken by lowest cell ID. When p lies
// outside the grid extent, maxRadius > 0 acts as the fallback search
// policy; with no fallback configured the query fails. A positive
// maxRadius also drops candidates farther away than the radius, so
// fewer than k results may be returned.
func (g *Grid) Nearest(p geom.Point, k int, maxRadius float64) ([]CellDistance, error) {
	if len(g.Cells) == 0 {
		return nil, &EmptyIndexError{}
	}
	if !g.contains(p) && maxRadius <= 0 {
		return nil, &OutOfBoundsError{X: p.X, Y: p.Y}
	}
	if k < 1 {
		k = 1
	}
	// The rtree ranks by distance to the cell polygon; over-fetch and
	// re-rank by center distance so equidistant centers resolve
	// deterministically.
	nFetch := k*4 + 8
	if nFetch > len(g.Cells) {
		nFetch = len(g.Cells)
	}
	candidates := g.index.NearestNeighbors(nFetch, p)
	result := make([]CellDistance, 0, len(candidates))
	for _, c := range candidates {
		cell := c.(*Cell)
		d := math.Hypot(cell.Center.X-p.X, cell.Center.Y-p.Y)
		if maxRadius > 0 && d > maxRadius {
			continue
		}
		result = append(result, CellDistance{ID: cell.ID, Distance: d})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

// QueryWithin returns the IDs of all cells intersecting the polygon.
func (g *Grid) QueryWithin(poly geom.Polygonal) ([]int, error) {
	if len(g.Cells) == 0 {
		return nil, &EmptyIndexError{}
	}
	var ids []int
	for _, c := range g.index.SearchIntersect(poly.Bounds()) {
		cell := c.(*Cell)
		if isect := cell.Intersection(poly); isect != nil && isect.Area() > 0 {
			ids = append(ids, cell.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}
