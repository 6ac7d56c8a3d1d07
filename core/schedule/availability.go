package schedule

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/evfleet/fleetplan/core/model"
)

// ErrSessionIntegrity reports an availability session spanning more than one
// vehicle column. It indicates corrupted route data and aborts the run.
var ErrSessionIntegrity = errors.New("schedule: charging session spans multiple vehicles")

// Session is one contiguous plug-in window for a single vehicle, expressed as
// a half-open period range [Start, End) on the shared grid.
type Session struct {
	ID      int
	Vehicle int // column index into the matrices
	Start   int
	End     int
}

// Periods returns the number of grid periods the session covers.
func (s Session) Periods() int { return s.End - s.Start }

// BuildAvailability derives the [period, vehicle] availability matrix from
// the allocated routes. A vehicle is available once the plug-in lead time
// after its return has passed, until its next departure; a route with a
// bounded depot dwell releases the charger RechargeHours after arrival
// instead.
func BuildAvailability(times []time.Time, vehicles []int, routes []model.Route, connect time.Duration) *mat.Dense {
	idx := vehicleIndex(vehicles)
	t, n := len(times), len(vehicles)
	avail := mat.NewDense(t, n, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < n; j++ {
			avail.Set(i, j, 1)
		}
	}
	for _, r := range routes {
		col, ok := idx[r.VehicleID]
		if !ok {
			continue
		}
		from := periodIndex(times, r.Departure)
		until := periodIndex(times, r.Arrival.Add(connect))
		for p := from; p <= until && p < t; p++ {
			avail.Set(p, col, 0)
		}
		if r.RechargeHours > 0 {
			release := r.Arrival.Add(time.Duration(r.RechargeHours * float64(time.Hour)))
			for p := periodIndex(times, release) + 1; p < t; p++ {
				if !times[p].Before(nextDeparture(routes, r, times[t-1])) {
					break
				}
				avail.Set(p, col, 0)
			}
		}
	}
	return avail
}

// nextDeparture finds the first departure of the same vehicle after the given
// route's arrival, or the horizon end when the vehicle stays at base.
func nextDeparture(routes []model.Route, after model.Route, horizon time.Time) time.Time {
	next := horizon.Add(time.Hour)
	for _, r := range routes {
		if r.VehicleID != after.VehicleID || !r.Departure.After(after.Arrival) {
			continue
		}
		if r.Departure.Before(next) {
			next = r.Departure
		}
	}
	return next
}

// BuildEnergyUse derives the [period, vehicle] consumption matrix. The whole
// energy drawn by a leg lands, negated, on the period the vehicle returns to
// base, which keeps state-of-charge accounting exact at plug-in time.
func BuildEnergyUse(times []time.Time, vehicles []int, routes []model.Route) *mat.Dense {
	idx := vehicleIndex(vehicles)
	t, n := len(times), len(vehicles)
	use := mat.NewDense(t, n, nil)
	for _, r := range routes {
		col, ok := idx[r.VehicleID]
		if !ok {
			continue
		}
		p := periodIndex(times, r.Arrival)
		if p < t {
			use.Set(p, col, use.At(p, col)-r.EnergyKWh)
		}
	}
	return use
}

// BuildSessions partitions the availability matrix into contiguous plug-in
// sessions. Walking each column, a 0 to 1 transition opens a new session under
// a running identifier, so every available cell belongs to exactly one
// session. Cells that end up sharing an identifier across vehicle columns can
// only come from corrupted inputs and abort the run.
func BuildSessions(avail *mat.Dense) ([]Session, error) {
	t, n := avail.Dims()
	// Column-major running count of plug-in events labels each available cell.
	ids := make([]int, t*n)
	id := 0
	for j := 0; j < n; j++ {
		prev := 0.0
		for i := 0; i < t; i++ {
			cur := avail.At(i, j)
			if cur > 0 && prev == 0 {
				id++
			}
			if cur > 0 {
				ids[j*t+i] = id
			}
			prev = cur
		}
	}

	byID := make(map[int]*Session, id)
	order := make([]int, 0, id)
	for j := 0; j < n; j++ {
		for i := 0; i < t; i++ {
			sid := ids[j*t+i]
			if sid == 0 {
				continue
			}
			s, ok := byID[sid]
			if !ok {
				byID[sid] = &Session{ID: sid, Vehicle: j, Start: i, End: i + 1}
				order = append(order, sid)
				continue
			}
			if s.Vehicle != j {
				return nil, fmt.Errorf("schedule: session %d touches vehicles %d and %d: %w",
					sid, s.Vehicle, j, ErrSessionIntegrity)
			}
			if i < s.Start {
				s.Start = i
			}
			if i+1 > s.End {
				s.End = i + 1
			}
		}
	}

	sessions := make([]Session, 0, len(order))
	for _, sid := range order {
		sessions = append(sessions, *byID[sid])
	}
	return sessions, nil
}

// clipSessions restricts sessions to the half-open period window [lo, hi),
// re-basing their bounds to the window origin. Sessions fully outside the
// window are dropped.
func clipSessions(sessions []Session, lo, hi int) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		start, end := s.Start, s.End
		if start < lo {
			start = lo
		}
		if end > hi {
			end = hi
		}
		if end <= start {
			continue
		}
		out = append(out, Session{ID: s.ID, Vehicle: s.Vehicle, Start: start - lo, End: end - lo})
	}
	return out
}

func vehicleIndex(vehicles []int) map[int]int {
	idx := make(map[int]int, len(vehicles))
	for i, v := range vehicles {
		idx[v] = i
	}
	return idx
}
