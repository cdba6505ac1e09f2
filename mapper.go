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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"sort"
	"sync"

	cache "github.com/patrickmn/go-cache"
)

// InterpolationMode selects how an asset draws from neighboring cells.
type InterpolationMode int

const (
	// ModeNearest assigns the single nearest cell with weight 1.
	ModeNearest InterpolationMode = iota
	// ModeInverseDistance spreads weight over the k nearest cells in
	// proportion to 1/distance, renormalized to sum to 1.
	ModeInverseDistance
)

// ParseInterpolationMode converts a configuration string to a mode.
// There is deliberately no default; the mode must be chosen explicitly.
func ParseInterpolationMode(s string) (InterpolationMode, error) {
	switch s {
	case "nearest":
		return ModeNearest, nil
	case "inverse-distance":
		return ModeInverseDistance, nil
	}
	return 0, fmt.Errorf("prereise: unknown interpolation mode %q; want nearest or inverse-distance", s)
}

// DefaultNeighbors is the neighbor count used by inverse-distance
// weighting when none is configured.
const DefaultNeighbors = 4

// coincidenceTol is the center-distance below which an asset is treated
// as sitting exactly on a cell center.
const coincidenceTol = 1.e-12

// CellWeight is one contribution to an asset's resource value.
type CellWeight struct {
	Cell   int
	Weight float64
}

// MappingEntry holds the contributing cells for one asset, ordered by
// ascending distance with ties broken by cell ID.
type MappingEntry struct {
	AssetID string
	Cells   []CellWeight
}

// Mapping relates every asset to its weighted contributing cells. The
// entries are sorted by asset ID so that identical inputs always encode
// to identical bytes. A Mapping is read-only after construction and
// safe to share across workers without locking.
type Mapping struct {
	Entries []MappingEntry

	once sync.Once
	byID map[string]int
}

// Cells returns the contributing cells for the asset, or nil if the
// asset is not in the mapping.
func (m *Mapping) Cells(assetID string) []CellWeight {
	m.once.Do(func() {
		m.byID = make(map[string]int, len(m.Entries))
		for i, e := range m.Entries {
			m.byID[e.AssetID] = i
		}
	})
	i, ok := m.byID[assetID]
	if !ok {
		return nil
	}
	return m.Entries[i].Cells
}

// Mapper resolves asset locations to contributing raster cells.
type Mapper struct {
	Mode InterpolationMode
	// K is the neighbor count for inverse-distance weighting.
	K int
	// MaxSearchRadius bounds the neighbor search, in the units of the
	// run's CRS. Zero means assets must lie inside the grid extent.
	MaxSearchRadius float64

	cache *cache.Cache
}

// NewMapper returns a Mapper with an empty mapping cache.
func NewMapper(mode InterpolationMode, k int, maxSearchRadius float64) *Mapper {
	if k < 1 {
		k = DefaultNeighbors
	}
	return &Mapper{
		Mode:            mode,
		K:               k,
		MaxSearchRadius: maxSearchRadius,
		cache:           cache.New(cache.NoExpiration, 0),
	}
}

// cacheKey hashes everything the mapping depends on: the grid geometry,
// the mapper settings, and the full asset coordinate set. A changed
// input produces a different key, so stale entries are never served.
func (m *Mapper) cacheKey(assets []*Asset, grid *Grid) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|mode=%d k=%d r=%g", grid.Descriptor(), m.Mode, m.K, m.MaxSearchRadius)
	for _, a := range assets {
		fmt.Fprintf(h, "|%s:%.12g,%.12g", a.ID, a.Point.X, a.Point.Y)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Map resolves the contributing cells for every asset. Asset points
// must already be in the grid's CRS. Assets with no contributing cell
// within the search radius are all reported together in a single
// UnresolvedAssetError. Identical inputs always produce an identical
// Mapping.
func (m *Mapper) Map(ctx context.Context, assets []*Asset, grid *Grid) (*Mapping, error) {
	key := m.cacheKey(assets, grid)
	if cached, found := m.cache.Get(key); found {
		return cached.(*Mapping), nil
	}

	entries := make([]MappingEntry, len(assets))
	var (
		lock       sync.Mutex
		unresolved []string
	)
	nprocs := runtime.GOMAXPROCS(-1)
	errChan := make(chan error)
	for proc := 0; proc < nprocs; proc++ {
		go func(proc int) {
			for i := proc; i < len(assets); i += nprocs {
				if err := ctx.Err(); err != nil {
					errChan <- err
					return
				}
				a := assets[i]
				cells, err := m.mapOne(a, grid)
				if err != nil {
					errChan <- err
					return
				}
				if cells == nil {
					lock.Lock()
					unresolved = append(unresolved, a.ID)
					lock.Unlock()
					continue
				}
				entries[i] = MappingEntry{AssetID: a.ID, Cells: cells}
			}
			errChan <- nil
		}(proc)
	}
	var err error
	for proc := 0; proc < nprocs; proc++ {
		if err2 := <-errChan; err2 != nil && err == nil {
			err = err2
		}
	}
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return nil, &UnresolvedAssetError{AssetIDs: unresolved}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].AssetID < entries[j].AssetID })
	mapping := &Mapping{Entries: entries}
	m.cache.Set(key, mapping, cache.NoExpiration)
	return mapping, nil
}

// mapOne resolves one asset. A nil, nil return means no cell was found
// within the search radius.
func (m *Mapper) mapOne(a *Asset, grid *Grid) ([]CellWeight, error) {
	k := 1
	if m.Mode == ModeInverseDistance {
		k = m.K
	}
	near, err := grid.Nearest(a.Point, k, m.MaxSearchRadius)
	if err != nil {
		if _, ok := err.(*OutOfBoundsError); ok {
			// No fallback radius configured; report with the other
			// unresolvable assets instead of aborting one by one.
			return nil, nil
		}
		return nil, err
	}
	if len(near) == 0 {
		return nil, nil
	}

	// An asset sitting exactly on a cell center takes that cell alone,
	// regardless of mode.
	if m.Mode == ModeNearest || near[0].Distance <= coincidenceTol {
		return []CellWeight{{Cell: near[0].ID, Weight: 1}}, nil
	}

	// Inverse-distance: weight proportional to 1/d, renormalized so the
	// weights sum to exactly 1. Neighbors beyond the search radius were
	// already dropped; losing some of the k neighbors is fine, losing
	// all of them is not.
	weights := make([]CellWeight, len(near))
	var total float64
	for i, n := range near {
		w := 1 / n.Distance
		weights[i] = CellWeight{Cell: n.ID, Weight: w}
		total += w
	}
	for i := range weights {
		weights[i].Weight /= total
	}
	return weights, nil
}
