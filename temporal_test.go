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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

func hourlySeries(t *testing.T, id string, values ...float64) *ResourceSeries {
	t.Helper()
	s := &ResourceSeries{AssetID: id}
	for i, v := range values {
		require.NoError(t, s.Append(t0.Add(time.Duration(i)*time.Hour), v))
	}
	return s
}

func TestResourceSeriesOrder(t *testing.T) {
	s := &ResourceSeries{AssetID: "a"}
	require.NoError(t, s.Append(t0, 1))
	assert.Error(t, s.Append(t0, 2))                    // duplicate
	assert.Error(t, s.Append(t0.Add(-time.Hour), 2))    // backwards
	require.NoError(t, s.Append(t0.Add(time.Hour), 2))
}

func TestAlignExact(t *testing.T) {
	s := hourlySeries(t, "a", 0, 1, 2, 3)
	al := Aligner{Policy: ExtrapReject}
	out, err := al.Align(s, TimeIndex{Start: t0, N: 4, Step: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, out)
}

func TestAlignInterpolates(t *testing.T) {
	s := hourlySeries(t, "a", 0, 1, 2, 3)
	al := Aligner{Policy: ExtrapReject}
	out, err := al.Align(s, TimeIndex{
		Start: t0.Add(30 * time.Minute), N: 3, Step: time.Hour})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.InDelta(t, 1.5, out[1], 1e-12)
	assert.InDelta(t, 2.5, out[2], 1e-12)
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}
}

func TestAlignRejectBeyondTolerance(t *testing.T) {
	// Source covers 4 hours; the target runs 2 hours past the end with a
	// 1-hour tolerance.
	s := hourlySeries(t, "turbine-7", 0, 1, 2, 3)
	al := Aligner{Policy: ExtrapReject, Tolerance: time.Hour}
	_, err := al.Align(s, TimeIndex{Start: t0, N: 6, Step: time.Hour})
	var terr *TemporalRangeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "turbine-7", terr.AssetID)
	assert.Equal(t, t0.Add(5*time.Hour), terr.Want)
	assert.Equal(t, t0.Add(3*time.Hour), terr.Have)
	assert.False(t, terr.BeforeData)
}

func TestAlignRejectWithinTolerance(t *testing.T) {
	s := hourlySeries(t, "a", 0, 1, 2, 3)
	al := Aligner{Policy: ExtrapReject, Tolerance: time.Hour}
	out, err := al.Align(s, TimeIndex{Start: t0, N: 5, Step: time.Hour})
	require.NoError(t, err)
	// The boundary value is held inside the tolerance window.
	assert.Equal(t, 3., out[4])
}

func TestAlignRejectBeforeData(t *testing.T) {
	s := hourlySeries(t, "a", 0, 1, 2, 3)
	al := Aligner{Policy: ExtrapReject}
	_, err := al.Align(s, TimeIndex{Start: t0.Add(-2 * time.Hour), N: 4, Step: time.Hour})
	var terr *TemporalRangeError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.BeforeData)
}

func TestAlignHoldLast(t *testing.T) {
	s := hourlySeries(t, "a", 5, 6)
	al := Aligner{Policy: ExtrapHoldLast}
	out, err := al.Align(s, TimeIndex{Start: t0.Add(-time.Hour), N: 5, Step: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 6, 6, 6}, out)
}

func TestAlignZero(t *testing.T) {
	s := hourlySeries(t, "a", 5, 6)
	al := Aligner{Policy: ExtrapZero}
	out, err := al.Align(s, TimeIndex{Start: t0.Add(-time.Hour), N: 5, Step: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 6, 0, 0}, out)
}

func TestAlignEmptySeries(t *testing.T) {
	al := Aligner{Policy: ExtrapHoldLast}
	_, err := al.Align(&ResourceSeries{AssetID: "a"}, TimeIndex{Start: t0, N: 1, Step: time.Hour})
	assert.Error(t, err)
}

func TestParseExtrapPolicy(t *testing.T) {
	for s, want := range map[string]ExtrapPolicy{
		"reject": ExtrapReject, "hold-last": ExtrapHoldLast, "zero": ExtrapZero} {
		got, err := ParseExtrapPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseExtrapPolicy("")
	assert.Error(t, err)
}

func TestTimeIndex(t *testing.T) {
	idx := TimeIndex{Start: t0, N: 3, Step: time.Hour}
	times := idx.Times()
	require.Len(t, times, 3)
	assert.Equal(t, t0, times[0])
	assert.Equal(t, t0.Add(2*time.Hour), times[2])
	assert.Equal(t, times[2], idx.End())
}
