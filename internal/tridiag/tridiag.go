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

// Package tridiag solves tridiagonal linear systems with the Thomas
// algorithm.
package tridiag

// System holds the coefficients of a tridiagonal system of up to
// Max rows, along with the work space used to solve it. Row i reads
//
//	L[i]*x[i-1] + D[i]*x[i] + U[i]*x[i+1] = RHS[i]
//
// L[0] and U[n-1] are ignored. A System can be reused for any
// n <= Max; it is not safe for concurrent use.
type System struct {
	L, D, U, RHS []float64
	work         []float64
}

// NewSystem allocates a system with room for max rows.
func NewSystem(max int) *System {
	return &System{
		L:    make([]float64, max),
		D:    make([]float64, max),
		U:    make([]float64, max),
		RHS:  make([]float64, max),
		work: make([]float64, max),
	}
}

// Max returns the largest number of rows s can hold.
func (s *System) Max() int { return len(s.D) }

// Solve solves the first n rows of s and writes the solution to x.
// It returns zero on success. If a diagonal pivot is exactly zero
// during elimination, Solve stops and returns the one-based index of
// the row where that happened; the contents of x are then undefined.
func (s *System) Solve(n int, x []float64) int {
	return Solve(s.L[:n], s.D[:n], s.U[:n], s.RHS[:n], x[:n], s.work[:n])
}

// Solve solves the n-row system described by L, D, U and rhs, where
// n = len(D), writing the result to x. work must have length at least
// n. The return value is zero on success and otherwise the one-based
// row index of the first exactly-zero pivot.
func Solve(L, D, U, rhs, x, work []float64) int {
	n := len(D)
	if n == 0 {
		return 0
	}
	b := D[0]
	if b == 0 {
		return 1
	}
	x[0] = rhs[0] / b
	for i := 1; i < n; i++ {
		work[i] = U[i-1] / b
		b = D[i] - L[i]*work[i]
		if b == 0 {
			return i + 1
		}
		x[i] = (rhs[i] - L[i]*x[i-1]) / b
	}
	for i := n - 2; i >= 0; i-- {
		x[i] -= work[i+1] * x[i+1]
	}
	return 0
}
