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
	"sort"
	"strings"
	"time"
)

// ProjectionError is returned when coordinate reference system metadata
// cannot be parsed, or when a coordinate transform fails.
type ProjectionError struct {
	CRS string
	Err error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("prereise: projection %q: %v", e.CRS, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// EmptyIndexError is returned when a spatial index is queried before any
// cells have been built into it.
type EmptyIndexError struct{}

func (e *EmptyIndexError) Error() string {
	return "prereise: spatial index is empty"
}

// OutOfBoundsError is returned when a query point lies outside the
// coordinate domain of the spatial index and no fallback search radius
// is configured.
type OutOfBoundsError struct {
	X, Y float64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("prereise: point (%g, %g) is outside the grid extent", e.X, e.Y)
}

// UnresolvedAssetError lists every asset for which no contributing grid
// cell could be found within the maximum search radius. Assets are never
// silently dropped.
type UnresolvedAssetError struct {
	AssetIDs []string
}

func (e *UnresolvedAssetError) Error() string {
	ids := make([]string, len(e.AssetIDs))
	copy(ids, e.AssetIDs)
	sort.Strings(ids)
	return fmt.Sprintf("prereise: no contributing grid cell within the search radius for assets: %s",
		strings.Join(ids, ", "))
}

// TemporalRangeError is returned when the target time index requires
// extrapolation beyond the configured tolerance window.
type TemporalRangeError struct {
	AssetID    string
	Want       time.Time
	Have       time.Time
	Tolerance  time.Duration
	BeforeData bool // whether the target precedes rather than follows the data
}

func (e *TemporalRangeError) Error() string {
	side := "after"
	if e.BeforeData {
		side = "before"
	}
	return fmt.Sprintf("prereise: asset %s: target time %v is %v %s the covered range ending %v (tolerance %v)",
		e.AssetID, e.Want, e.Want.Sub(e.Have), side, e.Have, e.Tolerance)
}

// InvalidModelParametersError is returned during model validation for
// non-monotonic power curves or non-positive capacities. Validation
// happens once at load time, not per conversion call.
type InvalidModelParametersError struct {
	AssetID string
	Reason  string
}

func (e *InvalidModelParametersError) Error() string {
	return fmt.Sprintf("prereise: asset %s: invalid model parameters: %s", e.AssetID, e.Reason)
}

// InconsistentIndexError is returned by the profile aggregator when one or
// more asset series do not share the unified time index.
type InconsistentIndexError struct {
	AssetIDs []string
}

func (e *InconsistentIndexError) Error() string {
	ids := make([]string, len(e.AssetIDs))
	copy(ids, e.AssetIDs)
	sort.Strings(ids)
	return fmt.Sprintf("prereise: series index mismatch for assets: %s", strings.Join(ids, ", "))
}

// ErrCat is a concatenator for errors; it accumulates validation problems
// so that a whole configuration can be checked in one pass.
type ErrCat struct {
	str string
}

// Add adds an error to the concatenation.
func (e *ErrCat) Add(err error) {
	if err == nil {
		return
	}
	if !strings.Contains(e.str, err.Error()) {
		e.str += err.Error() + "\n"
	}
}

// Err returns the accumulated errors, or nil if there were none.
func (e *ErrCat) Err() error {
	if e.str == "" {
		return nil
	}
	return fmt.Errorf("%s", strings.TrimSuffix(e.str, "\n"))
}
