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
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"golang.org/x/sync/errgroup"

	"github.com/isond/prereise/raster"
)

// Pipeline holds the configured components of a profile-generation run.
// The mapper's cache survives across runs, so repeated runs over the
// same grid and inventory skip the neighbor searches.
type Pipeline struct {
	Reconciler *Reconciler
	Mapper     *Mapper
	Aligner    Aligner
	Index      TimeIndex

	// MappingShapefile, if set, receives the resolved asset-to-cell
	// weights as a point shapefile for inspection.
	MappingShapefile string
}

// NewPipeline assembles a pipeline from a validated configuration.
func NewPipeline(c *Config) (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	crs := c.CRS
	if crs == "" {
		crs = WGS84Proj
	}
	rec, err := NewReconciler(crs)
	if err != nil {
		return nil, err
	}
	mode, err := ParseInterpolationMode(c.Mapping.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := ParseExtrapPolicy(c.Temporal.Extrapolation)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Reconciler: rec,
		Mapper:     NewMapper(mode, c.Mapping.Neighbors, c.Mapping.MaxSearchRadius),
		Aligner: Aligner{
			Policy:    policy,
			Tolerance: time.Duration(c.Temporal.ToleranceHours * float64(time.Hour)),
		},
		Index:            c.TimeIndex(),
		MappingShapefile: c.Output.MappingShapefile,
	}, nil
}

// Run executes a full file-based run: open the archive, load the
// inventory, and generate the profile table.
func Run(ctx context.Context, c *Config) (*ProfileTable, error) {
	p, err := NewPipeline(c)
	if err != nil {
		return nil, err
	}
	src, err := raster.Open(c.Raster.Path, mustFormat(c.Raster.Format), c.VarSpec())
	if err != nil {
		return nil, err
	}
	defer src.Close()
	assets, err := p.loadAssets(c)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, src, assets)
}

func mustFormat(s string) raster.Format {
	f, _ := raster.ParseFormat(s) // validated with the configuration
	return f
}

// loadAssets reads the inventory and reprojects its coordinates into
// the run's canonical CRS.
func (p *Pipeline) loadAssets(c *Config) ([]*Asset, error) {
	var (
		assets []*Asset
		srcSR  *proj.SR
		name   string
		err    error
	)
	if strings.HasSuffix(c.Assets.Path, ".shp") {
		assets, srcSR, err = LoadAssetsShapefile(c.Assets.Path,
			c.Assets.IDColumn, c.Assets.CapacityColumn, c.Model())
		name = c.Assets.Path
	} else {
		var f *os.File
		if f, err = os.Open(c.Assets.Path); err != nil {
			return nil, err
		}
		defer f.Close()
		if assets, err = LoadAssetsCSV(f, c.Model()); err != nil {
			return nil, err
		}
		name = c.Assets.CRS
		if name == "" {
			name = WGS84Proj
		}
		if srcSR, err = proj.Parse(name); err != nil {
			return nil, &ProjectionError{CRS: name, Err: err}
		}
	}
	if err != nil {
		return nil, err
	}
	Log(fmt.Sprintf("Loaded %d assets from %s", len(assets), c.Assets.Path), 1)

	pts := make([]geom.Point, len(assets))
	for i, a := range assets {
		pts[i] = a.Point
	}
	pts, err = p.Reconciler.PointsSR(pts, srcSR, name)
	if err != nil {
		return nil, err
	}
	out := make([]*Asset, len(assets))
	for i, a := range assets {
		b := *a
		b.Point = pts[i]
		out[i] = &b
	}
	return out, nil
}

// Generate runs the pipeline over an already-open frame source: build
// the grid, resolve the mapping, stream the frames into per-asset
// resource series, then align, convert and aggregate. The result is
// all or nothing; any failing asset fails the run.
func (p *Pipeline) Generate(ctx context.Context, src raster.FrameSource, assets []*Asset) (*ProfileTable, error) {
	if err := ValidateAssets(assets); err != nil {
		return nil, err
	}
	grid, err := NewGrid(src.Axes(), p.Reconciler.SR())
	if err != nil {
		return nil, err
	}
	Log(fmt.Sprintf("Built grid %s", grid.Descriptor()), 2)

	mapping, err := p.Mapper.Map(ctx, assets, grid)
	if err != nil {
		return nil, err
	}
	Log(fmt.Sprintf("Mapped %d assets to grid cells", len(mapping.Entries)), 1)
	if p.MappingShapefile != "" {
		if err := WriteMappingShapefile(p.MappingShapefile, mapping, grid); err != nil {
			return nil, err
		}
	}

	series, err := p.extract(ctx, src, grid, mapping)
	if err != nil {
		return nil, err
	}

	// Align and convert each asset in parallel. The mapping and series
	// are read-only from here on.
	profiles := make([]*AssetProfile, len(assets))
	times := p.Index.Times()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(-1))
	for i, a := range assets {
		i, a := i, a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resource, err := p.Aligner.Align(series[a.ID], p.Index)
			if err != nil {
				return err
			}
			power := make([]float64, len(resource))
			for j, r := range resource {
				power[j] = Convert(r, a)
			}
			profiles[i] = &AssetProfile{AssetID: a.ID, Times: times, Values: power}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Aggregate(profiles)
}

// extract streams frames from the source, reducing each one to a
// weighted resource value per asset. Frames arrive in timestamp order;
// a single reader goroutine owns the source, so the per-asset series
// need no locking.
func (p *Pipeline) extract(ctx context.Context, src raster.FrameSource, grid *Grid, mapping *Mapping) (map[string]*ResourceSeries, error) {
	series := make(map[string]*ResourceSeries, len(mapping.Entries))
	for _, e := range mapping.Entries {
		series[e.AssetID] = &ResourceSeries{AssetID: e.AssetID}
	}
	nframes := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, e := range mapping.Entries {
			var v float64
			for _, cw := range e.Cells {
				cell := grid.Cells[cw.Cell]
				v += cw.Weight * f.Data.Get(cell.Row, cell.Col)
			}
			if err := series[e.AssetID].Append(f.Time, v); err != nil {
				return nil, err
			}
		}
		nframes++
	}
	if nframes == 0 {
		return nil, fmt.Errorf("prereise: raster source contains no frames")
	}
	Log(fmt.Sprintf("Extracted %d frames", nframes), 2)
	return series, nil
}
