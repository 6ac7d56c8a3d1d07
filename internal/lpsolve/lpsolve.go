// Package lpsolve wraps the gonum simplex solver for general-form linear
// programs: minimize cᵀx subject to Gx <= h and Ax = b.
package lpsolve

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// ErrInfeasible indicates the program has no feasible solution. Unbounded
// and numerically singular programs are folded into the same class: callers
// treat every failure as a cue to relax the formulation.
var ErrInfeasible = errors.New("lp infeasible")

// Solve converts the general-form program to standard form and runs the
// simplex algorithm. The returned vector has the dimension of c; the split
// x = x⁺ - x⁻ introduced by the conversion is folded back.
func Solve(c []float64, g mat.Matrix, h []float64, a mat.Matrix, b []float64) ([]float64, error) {
	n := len(c)
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, ErrInfeasible
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, nil
}
