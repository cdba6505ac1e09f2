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
	"io"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/isond/prereise/raster"
)

var (
	// DebugLevel is the amount of output to print to the screen. A higher
	// number means more messages.
	DebugLevel = 3
)

// Log prints msg if its debug level is at or below DebugLevel.
func Log(msg string, debug int) {
	if debug <= DebugLevel {
		log.Println(msg)
	}
}

// Config holds a full profile-generation run read from a TOML file.
type Config struct {
	// Raster configures the weather archive to read.
	Raster RasterConfig

	// Assets configures the generation asset inventory.
	Assets AssetConfig

	// CRS is the proj4 string of the canonical projection for the run.
	// Empty means geographic WGS84.
	CRS string

	// Mapping configures how assets draw from grid cells.
	Mapping MappingConfig

	// Temporal configures the unified time index and extrapolation.
	Temporal TemporalConfig

	// Output configures where the profile table goes.
	Output OutputConfig
}

// RasterConfig locates the resource variable inside a weather archive.
type RasterConfig struct {
	// Path of the archive file.
	Path string
	// Format is "netcdf", "grib" or "grib2".
	Format string
	// Variable is the resource variable name (e.g. "wnd100m").
	Variable string
	// TimeVar, LatVar and LonVar override the coordinate variable names.
	TimeVar, LatVar, LonVar string
	// Epoch is the zero point of the archive's time variable, RFC 3339.
	Epoch string
	// TimeUnitHours is the length of one tick of the time variable.
	// Zero means one hour.
	TimeUnitHours float64
	// Scale and Offset unpack integer-packed variables.
	Scale, Offset float64
}

// AssetConfig locates the generation asset inventory.
type AssetConfig struct {
	// Path of a CSV inventory (columns id, lon, lat, capacity_mw) or a
	// point shapefile.
	Path string
	// IDColumn and CapacityColumn name the shapefile attribute fields.
	IDColumn, CapacityColumn string
	// CRS is the proj4 string of the inventory coordinates. Ignored for
	// shapefiles, which carry their CRS in the sidecar .prj file. Empty
	// means geographic WGS84.
	CRS string
	// Model selects the conversion model: "capped-linear" or "power-curve".
	Model string
	// Slope and Intercept parameterize the capped-linear model. Slope is
	// MW per resource unit, Intercept MW.
	Slope, Intercept float64
	// Curve holds the knots of the power-curve model as
	// [resource, powerMW] pairs.
	Curve [][2]float64
}

// MappingConfig configures asset-to-cell resolution.
type MappingConfig struct {
	// Mode is "nearest" or "inverse-distance".
	Mode string
	// Neighbors is the cell count for inverse-distance weighting.
	// Zero means 4.
	Neighbors int
	// MaxSearchRadius bounds the neighbor search, in the units of the
	// run's CRS. Zero means assets must lie inside the grid extent.
	MaxSearchRadius float64
}

// TemporalConfig configures the unified time index.
type TemporalConfig struct {
	// Start of the index, RFC 3339.
	Start string
	// Steps is the number of index points.
	Steps int
	// StepHours is the index step length.
	StepHours float64
	// Extrapolation is "reject", "hold-last" or "zero".
	Extrapolation string
	// ToleranceHours is the window within which the reject policy still
	// holds the boundary value.
	ToleranceHours float64
}

// OutputConfig selects the profile destination.
type OutputConfig struct {
	// Kind is "csv", "sqlite" or "postgres".
	Kind string
	// Path is the output file for csv and sqlite, or the connection
	// string for postgres.
	Path string
	// Table is the table name for database outputs. Empty means
	// "profiles".
	Table string
	// MappingShapefile, if set, writes the asset-to-cell weights as a
	// point shapefile for inspection.
	MappingShapefile string
}

// ReadConfig decodes and validates a TOML run configuration.
func ReadConfig(r io.Reader) (*Config, error) {
	c := new(Config)
	if _, err := toml.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("prereise: decoding configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadConfigFile reads a run configuration from a file.
func ReadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadConfig(f)
}

// Validate checks the whole configuration, accumulating all problems
// before failing.
func (c *Config) Validate() error {
	e := new(ErrCat)
	if c.Raster.Path == "" {
		e.Add(fmt.Errorf("prereise: raster path is not set"))
	}
	if _, err := raster.ParseFormat(c.Raster.Format); err != nil {
		e.Add(err)
	}
	if c.Raster.Variable == "" {
		e.Add(fmt.Errorf("prereise: raster variable is not set"))
	}
	if c.Raster.Epoch != "" {
		if _, err := time.Parse(time.RFC3339, c.Raster.Epoch); err != nil {
			e.Add(fmt.Errorf("prereise: parsing raster epoch: %w", err))
		}
	}
	if c.Assets.Path == "" {
		e.Add(fmt.Errorf("prereise: asset inventory path is not set"))
	}
	switch c.Assets.Model {
	case "capped-linear":
		e.Add((&CappedLinear{Slope: c.Assets.Slope, Intercept: c.Assets.Intercept}).Validate())
	case "power-curve":
		e.Add(c.powerCurve().Validate())
	default:
		e.Add(fmt.Errorf("prereise: unknown conversion model %q; want capped-linear or power-curve",
			c.Assets.Model))
	}
	if _, err := ParseInterpolationMode(c.Mapping.Mode); err != nil {
		e.Add(err)
	}
	if c.Mapping.Neighbors < 0 {
		e.Add(fmt.Errorf("prereise: mapping neighbor count %d is negative", c.Mapping.Neighbors))
	}
	if _, err := time.Parse(time.RFC3339, c.Temporal.Start); err != nil {
		e.Add(fmt.Errorf("prereise: parsing temporal start: %w", err))
	}
	if c.Temporal.Steps <= 0 {
		e.Add(fmt.Errorf("prereise: temporal steps %d is not positive", c.Temporal.Steps))
	}
	if c.Temporal.StepHours <= 0 {
		e.Add(fmt.Errorf("prereise: temporal step %g hours is not positive", c.Temporal.StepHours))
	}
	if _, err := ParseExtrapPolicy(c.Temporal.Extrapolation); err != nil {
		e.Add(err)
	}
	switch c.Output.Kind {
	case "csv", "sqlite", "postgres":
	default:
		e.Add(fmt.Errorf("prereise: unknown output kind %q; want csv, sqlite or postgres", c.Output.Kind))
	}
	if c.Output.Path == "" {
		e.Add(fmt.Errorf("prereise: output path is not set"))
	}
	return e.Err()
}

func (c *Config) powerCurve() *PowerCurve {
	pts := make([]CurvePoint, len(c.Assets.Curve))
	for i, kv := range c.Assets.Curve {
		pts[i] = CurvePoint{Resource: kv[0], Power: kv[1]}
	}
	return &PowerCurve{Points: pts}
}

// VarSpec converts the raster section to the decoder's variable spec.
func (c *Config) VarSpec() raster.VarSpec {
	spec := raster.VarSpec{
		Name:     c.Raster.Variable,
		TimeVar:  c.Raster.TimeVar,
		LatVar:   c.Raster.LatVar,
		LonVar:   c.Raster.LonVar,
		TimeUnit: time.Duration(c.Raster.TimeUnitHours * float64(time.Hour)),
		Scale:    c.Raster.Scale,
		Offset:   c.Raster.Offset,
	}
	if c.Raster.Epoch != "" {
		spec.Epoch, _ = time.Parse(time.RFC3339, c.Raster.Epoch)
	}
	return spec
}

// TimeIndex converts the temporal section to the run's unified index.
func (c *Config) TimeIndex() TimeIndex {
	start, _ := time.Parse(time.RFC3339, c.Temporal.Start)
	return TimeIndex{
		Start: start,
		N:     c.Temporal.Steps,
		Step:  time.Duration(c.Temporal.StepHours * float64(time.Hour)),
	}
}

// Model builds the conversion model constructor for the inventory
// loader. Every asset shares the configured model parameters.
func (c *Config) Model() func(a *Asset) ConversionModel {
	switch c.Assets.Model {
	case "power-curve":
		curve := c.powerCurve()
		return func(a *Asset) ConversionModel { return curve }
	default:
		m := &CappedLinear{Slope: c.Assets.Slope, Intercept: c.Assets.Intercept}
		return func(a *Asset) ConversionModel { return m }
	}
}
