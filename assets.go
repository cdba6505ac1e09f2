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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// Asset is one power-generation unit: a location, a rated capacity in
// MW, and the model that converts resource values to power output.
// Assets are immutable once loaded for a run.
type Asset struct {
	ID       string
	Point    geom.Point // in the CRS the inventory was loaded with
	Capacity float64    // MW
	Model    ConversionModel
}

// Validate checks the asset's capacity and model parameters. It is
// called once at load time, not per conversion call.
func (a *Asset) Validate() error {
	if a.Capacity <= 0 {
		return &InvalidModelParametersError{AssetID: a.ID,
			Reason: fmt.Sprintf("rated capacity %g MW is not positive", a.Capacity)}
	}
	if a.Model == nil {
		return &InvalidModelParametersError{AssetID: a.ID, Reason: "no conversion model"}
	}
	if err := a.Model.Validate(); err != nil {
		return &InvalidModelParametersError{AssetID: a.ID, Reason: err.Error()}
	}
	return nil
}

// ValidateAssets validates every asset and checks for duplicate IDs,
// accumulating all problems before failing.
func ValidateAssets(assets []*Asset) error {
	e := new(ErrCat)
	seen := make(map[string]int)
	for _, a := range assets {
		seen[a.ID]++
		e.Add(a.Validate())
	}
	for id, n := range seen {
		if n > 1 {
			e.Add(fmt.Errorf("prereise: asset ID %s appears %d times", id, n))
		}
	}
	return e.Err()
}

// LoadAssetsCSV reads an asset inventory with a header row and columns
// id, lon, lat, capacity_mw. The model is attached per asset by the
// caller-supplied constructor.
func LoadAssetsCSV(r io.Reader, model func(a *Asset) ConversionModel) ([]*Asset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("prereise: reading asset inventory header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, need := range []string{"id", "lon", "lat", "capacity_mw"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("prereise: asset inventory is missing column %q", need)
		}
	}
	var assets []*Asset
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("prereise: reading asset inventory: %w", err)
		}
		a := &Asset{ID: strings.TrimSpace(rec[cols["id"]])}
		if a.Point.X, err = strconv.ParseFloat(strings.TrimSpace(rec[cols["lon"]]), 64); err != nil {
			return nil, fmt.Errorf("prereise: asset %s: parsing lon: %w", a.ID, err)
		}
		if a.Point.Y, err = strconv.ParseFloat(strings.TrimSpace(rec[cols["lat"]]), 64); err != nil {
			return nil, fmt.Errorf("prereise: asset %s: parsing lat: %w", a.ID, err)
		}
		if a.Capacity, err = strconv.ParseFloat(strings.TrimSpace(rec[cols["capacity_mw"]]), 64); err != nil {
			return nil, fmt.Errorf("prereise: asset %s: parsing capacity_mw: %w", a.ID, err)
		}
		a.Model = model(a)
		assets = append(assets, a)
	}
	if err := ValidateAssets(assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// LoadAssetsShapefile reads a point-feature asset inventory. idColumn
// and capacityColumn name the attribute fields to use. The returned SR
// is the inventory's CRS read from the sidecar .prj file.
func LoadAssetsShapefile(path, idColumn, capacityColumn string,
	model func(a *Asset) ConversionModel) ([]*Asset, *proj.SR, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, nil, fmt.Errorf("prereise: opening asset shapefile %s: %w", path, err)
	}
	defer d.Close()
	prjf, err := os.Open(strings.TrimSuffix(path, ".shp") + ".prj")
	if err != nil {
		return nil, nil, fmt.Errorf("prereise: asset shapefile projection: %w", err)
	}
	defer prjf.Close()
	sr, err := proj.ReadPrj(prjf)
	if err != nil {
		return nil, nil, &ProjectionError{CRS: path, Err: err}
	}
	var assets []*Asset
	for {
		g, fields, more := d.DecodeRowFields(idColumn, capacityColumn)
		if !more {
			break
		}
		p, ok := g.(geom.Point)
		if !ok {
			return nil, nil, fmt.Errorf("prereise: asset shapefile %s: geometry type %T; want point", path, g)
		}
		a := &Asset{ID: fields[idColumn], Point: p}
		if a.Capacity, err = strconv.ParseFloat(strings.TrimSpace(fields[capacityColumn]), 64); err != nil {
			return nil, nil, fmt.Errorf("prereise: asset %s: parsing %s: %w", a.ID, capacityColumn, err)
		}
		a.Model = model(a)
		assets = append(assets, a)
	}
	if err := d.Error(); err != nil {
		return nil, nil, fmt.Errorf("prereise: reading asset shapefile %s: %w", path, err)
	}
	if err := ValidateAssets(assets); err != nil {
		return nil, nil, err
	}
	return assets, sr, nil
}
