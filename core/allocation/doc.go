// Package allocation assigns delivery routes to a minimal set of vehicles.
//
// For every calendar day the engine solves one bipartite assignment per
// shift: first-shift routes seed the vehicle slots, each later shift is
// matched against the merged duties of the shifts before it, and a
// feasibility cost steers the solver towards pairings that need the least
// intershift charging. Whenever a day ends with an infeasible pairing the
// fleet grows by one vehicle and the day is re-solved, until every pairing
// is feasible or the fleet is capped.
package allocation
