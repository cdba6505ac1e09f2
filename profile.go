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
	"time"

	"github.com/ctessum/unit"
)

// AssetProfile is the generation time series for one asset, in MW, on
// its own time index.
type AssetProfile struct {
	AssetID string
	Times   []time.Time
	Values  []float64
}

// ProfileTable is the final assets-by-time output: every series is on
// the unified time index and has the same length.
type ProfileTable struct {
	Index  []time.Time
	Assets []string // sorted
	Values map[string][]float64
}

// Aggregate merges per-asset profiles into a ProfileTable. It is a pure
// reshape with no unit conversion. Every profile must share the same
// time index; mismatches fail with an InconsistentIndexError naming the
// offending assets.
func Aggregate(profiles []*AssetProfile) (*ProfileTable, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("prereise: no profiles to aggregate")
	}
	ref := profiles[0]
	var bad []string
	for _, p := range profiles[1:] {
		if !sameIndex(ref.Times, p.Times) {
			bad = append(bad, p.AssetID)
		}
	}
	if len(bad) > 0 {
		return nil, &InconsistentIndexError{AssetIDs: bad}
	}
	pt := &ProfileTable{
		Index:  ref.Times,
		Assets: make([]string, 0, len(profiles)),
		Values: make(map[string][]float64, len(profiles)),
	}
	for _, p := range profiles {
		if len(p.Values) != len(pt.Index) {
			return nil, &InconsistentIndexError{AssetIDs: []string{p.AssetID}}
		}
		if _, ok := pt.Values[p.AssetID]; ok {
			return nil, fmt.Errorf("prereise: duplicate profile for asset %s", p.AssetID)
		}
		pt.Assets = append(pt.Assets, p.AssetID)
		pt.Values[p.AssetID] = p.Values
	}
	sort.Strings(pt.Assets)
	return pt, nil
}

func sameIndex(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Step returns the index step.
func (pt *ProfileTable) Step() time.Duration {
	if len(pt.Index) < 2 {
		return 0
	}
	return pt.Index[1].Sub(pt.Index[0])
}

// EnergyTotals returns the energy generated by each asset over the run.
func (pt *ProfileTable) EnergyTotals() map[string]*unit.Unit {
	step := pt.Step().Seconds()
	if step == 0 {
		step = 1
	}
	totals := make(map[string]*unit.Unit, len(pt.Assets))
	for _, id := range pt.Assets {
		var sumMW float64
		for _, v := range pt.Values[id] {
			sumMW += v
		}
		e := unit.New(sumMW*1.e6, unit.Watt)
		e.Mul(unit.New(step, unit.Second))
		totals[id] = e
	}
	return totals
}
