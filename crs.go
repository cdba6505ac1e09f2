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
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Common coordinate reference systems for a run. All spatial operations
// happen in one of these; geographic WGS84 is the default, and the
// equal-area projection should be preferred when inverse-distance
// weighting is used so that distances are meaningful in meters.
const (
	WGS84Proj     = "+proj=longlat +datum=WGS84 +no_defs"
	EqualAreaProj = "+proj=cea +lon_0=0 +lat_ts=37.5 +datum=WGS84 +units=m +no_defs"
)

// Reconciler normalizes coordinates to the canonical projection chosen
// for a run. It is deterministic and side-effect free; the CRS travels
// with every coordinate set rather than living in ambient state.
type Reconciler struct {
	proj4 string
	sr    *proj.SR
}

// NewReconciler parses the canonical projection for a run.
func NewReconciler(proj4 string) (*Reconciler, error) {
	sr, err := proj.Parse(proj4)
	if err != nil {
		return nil, &ProjectionError{CRS: proj4, Err: err}
	}
	return &Reconciler{proj4: proj4, sr: sr}, nil
}

// SR returns the canonical spatial reference.
func (r *Reconciler) SR() *proj.SR { return r.sr }

// Proj4 returns the canonical projection string.
func (r *Reconciler) Proj4() string { return r.proj4 }

// Points reprojects points from the given source CRS into the canonical
// CRS. The input slice is not modified.
func (r *Reconciler) Points(pts []geom.Point, sourceProj4 string) ([]geom.Point, error) {
	srcSR, err := proj.Parse(sourceProj4)
	if err != nil {
		return nil, &ProjectionError{CRS: sourceProj4, Err: err}
	}
	return r.PointsSR(pts, srcSR, sourceProj4)
}

// PointsSR is Points for an already-parsed source spatial reference
// (e.g. one read from a shapefile's .prj). name labels the source CRS
// in errors.
func (r *Reconciler) PointsSR(pts []geom.Point, srcSR *proj.SR, name string) ([]geom.Point, error) {
	ct, err := srcSR.NewTransform(r.sr)
	if err != nil {
		return nil, &ProjectionError{CRS: name, Err: err}
	}
	return transformPoints(pts, ct, name)
}

// Inverse reprojects points from the canonical CRS back to the given
// CRS. Round-tripping through Points and Inverse recovers the original
// coordinates to within floating-point noise.
func (r *Reconciler) Inverse(pts []geom.Point, destProj4 string) ([]geom.Point, error) {
	dstSR, err := proj.Parse(destProj4)
	if err != nil {
		return nil, &ProjectionError{CRS: destProj4, Err: err}
	}
	ct, err := r.sr.NewTransform(dstSR)
	if err != nil {
		return nil, &ProjectionError{CRS: r.proj4, Err: err}
	}
	return transformPoints(pts, ct, r.proj4)
}

func transformPoints(pts []geom.Point, ct proj.Transformer, crs string) ([]geom.Point, error) {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		g, err := p.Transform(ct)
		if err != nil {
			return nil, &ProjectionError{CRS: crs, Err: err}
		}
		out[i] = g.(geom.Point)
	}
	return out, nil
}
