package allocation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/evfleet/fleetplan/core/model"
	"github.com/evfleet/fleetplan/internal/lpsolve"
)

// SolveAssignment finds the maximum-cost matching of routes to vehicle
// slots: every route gets exactly one vehicle, every vehicle at most one
// route. Empty inputs yield an empty result; callers read "no rows" as
// "nothing to assign this shift".
//
// The assignment polytope has integral vertices, so the simplex solution of
// the relaxation is already a 0/1 matching.
func SolveAssignment(table CostTable, shift int) ([]model.Assignment, error) {
	nRoutes := len(table.RouteIDs)
	nVehicles := len(table.Vehicles)
	if nRoutes == 0 || nVehicles == 0 {
		return nil, nil
	}

	nVars := nRoutes * nVehicles
	// Maximize total cost: minimize its negation.
	c := make([]float64, nVars)
	for i := 0; i < nRoutes; i++ {
		for j := 0; j < nVehicles; j++ {
			c[i*nVehicles+j] = -table.Cost.At(i, j)
		}
	}

	// Inequalities: each vehicle takes at most one route, and every
	// variable stays nonnegative.
	g := mat.NewDense(nVehicles+nVars, nVars, nil)
	h := make([]float64, nVehicles+nVars)
	for j := 0; j < nVehicles; j++ {
		for i := 0; i < nRoutes; i++ {
			g.Set(j, i*nVehicles+j, 1)
		}
		h[j] = 1
	}
	for v := 0; v < nVars; v++ {
		g.Set(nVehicles+v, v, -1)
	}

	// Equalities: each route is assigned exactly once.
	a := mat.NewDense(nRoutes, nVars, nil)
	b := make([]float64, nRoutes)
	for i := 0; i < nRoutes; i++ {
		for j := 0; j < nVehicles; j++ {
			a.Set(i, i*nVehicles+j, 1)
		}
		b[i] = 1
	}

	x, err := solveLP(c, g, h, a, b)
	if err != nil {
		return nil, err
	}

	asn := make([]model.Assignment, 0, nRoutes)
	for i := 0; i < nRoutes; i++ {
		for j := 0; j < nVehicles; j++ {
			if x[i*nVehicles+j] > 0.5 {
				asn = append(asn, model.Assignment{
					RouteID:   table.RouteIDs[i],
					VehicleID: table.Vehicles[j],
					Shift:     shift,
					Cost:      table.Cost.At(i, j),
				})
				break
			}
		}
	}
	return asn, nil
}

// solveLP points to the solver. It can be overridden in tests to simulate
// solver failures.
var solveLP = lpsolve.Solve
