/*
Copyright © 2024 the IceTherm authors.
This file is part of IceTherm.

IceTherm is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

IceTherm is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with IceTherm.  If not, see <http://www.gnu.org/licenses/>.
*/

package colinterp

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func roundTrip(t *testing.T, ci *Interpolation, v []float64) []float64 {
	t.Helper()
	fine := make([]float64, ci.MzFine())
	ci.CoarseToFine(v, ci.MzFine()-1, fine)
	out := make([]float64, ci.Mz())
	ci.FineToCoarse(fine, out)
	return out
}

func TestUniformExact(t *testing.T) {
	z := make([]float64, 11)
	v := make([]float64, 11)
	for k := range z {
		z[k] = 10 * float64(k)
		v[k] = float64(k * k)
	}
	ci, err := New(z)
	if err != nil {
		t.Fatal(err)
	}
	if !ci.UseLinear() {
		t.Fatal("uniform grid should use linear interpolation")
	}
	if ci.MzFine() != 11 || ci.DzFine() != 10 {
		t.Fatalf("fine grid: have %d levels, dz=%g", ci.MzFine(), ci.DzFine())
	}
	if diff := cmp.Diff(v, roundTrip(t, ci, v)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestQuadraticAligned(t *testing.T) {
	z := []float64{0, 10, 20, 40, 70, 110, 160}
	v := make([]float64, len(z))
	for k := range z {
		v[k] = z[k] * z[k] / 1000
	}
	ci, err := New(z)
	if err != nil {
		t.Fatal(err)
	}
	if ci.UseLinear() {
		t.Fatal("non-uniform grid should use quadratic interpolation")
	}
	fine := make([]float64, ci.MzFine())
	// The last storage interval is linear, so only check below it.
	ci.CoarseToFine(v, ci.MzFine()-1, fine)
	for k, zf := range ci.Fine() {
		if zf >= 110 {
			break
		}
		if want := zf * zf / 1000; math.Abs(fine[k]-want) > 1e-9 {
			t.Errorf("fine level %d (z=%g): have %g, want %g", k, zf, fine[k], want)
		}
	}
	if diff := cmp.Diff(v, roundTrip(t, ci, v), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSmoothIdempotence(t *testing.T) {
	// f = sin(z/100), so |f''| <= 1e-4.
	f := func(z float64) float64 { return math.Sin(z / 100) }
	const maxCurvature = 1e-4
	for _, z := range [][]float64{
		{0, 7, 19, 33, 50, 75, 103, 140},
		{0, 20, 40, 60, 80, 100, 120, 140},
	} {
		v := make([]float64, len(z))
		dzMax := 0.0
		for k := range z {
			v[k] = f(z[k])
			if k > 0 {
				dzMax = math.Max(dzMax, z[k]-z[k-1])
			}
		}
		ci, err := New(z)
		if err != nil {
			t.Fatal(err)
		}
		// Linear interpolation error bound over the widest interval.
		tol := dzMax * dzMax * maxCurvature / 8
		if diff := cmp.Diff(v, roundTrip(t, ci, v), cmpopts.EquateApprox(0, tol)); diff != "" {
			t.Errorf("linear=%v: round trip mismatch (-want +got):\n%s", ci.UseLinear(), diff)
		}
	}
}

func TestAboveSurface(t *testing.T) {
	z := []float64{0, 10, 20, 30, 40}
	v := []float64{5, 4, 3, 2, 1}
	ci, err := New(z)
	if err != nil {
		t.Fatal(err)
	}
	fine := make([]float64, ci.MzFine())
	ci.CoarseToFine(v, 2, fine)
	// Above ks each fine level takes the value of its lower bracket.
	want := []float64{5, 4, 3, 3, 1}
	if diff := cmp.Diff(want, fine); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	zq := []float64{0, 10, 30, 40}
	vq := []float64{5, 4, 3, 2}
	ciq, err := New(zq)
	if err != nil {
		t.Fatal(err)
	}
	fine = make([]float64, ciq.MzFine())
	ciq.CoarseToFine(vq, 1, fine)
	if fine[2] != 4 || fine[3] != 4 || fine[4] != 2 {
		t.Errorf("constant extrapolation: have %v", fine)
	}
}

func TestBadGrid(t *testing.T) {
	for _, z := range [][]float64{nil, {0}, {0, 10, 10}, {0, 20, 10}} {
		if _, err := New(z); !errors.Is(err, ErrBadGrid) {
			t.Errorf("%v: have %v, want ErrBadGrid", z, err)
		}
	}
}
