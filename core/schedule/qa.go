package schedule

const qaEps = 1e-6

// countBreachPeriods returns how many periods of the day draw more than the
// contracted net capacity. Normal-tier days report zero by construction;
// breach and magic days report where the headroom was actually spent.
func countBreachPeriods(day DayProblem, res *DayResult) int {
	p := day.Problem
	h := p.Planner.PeriodHours()
	P, N := day.Periods(), len(p.Vehicles)
	breaches := 0
	for i := 0; i < P; i++ {
		total := 0.0
		for j := 0; j < N; j++ {
			total += res.Output.At(i, j)
		}
		if total > p.CapacityKW[day.Lo+i]*h+0.01 {
			breaches++
		}
	}
	return breaches
}

// countFastViolations counts the periods where more vehicles draw above
// their slow rate than the site has fast chargers. Nonzero values flag a
// greedy fast-charger placement that the continuous solve then contradicted,
// or a magic profile.
func countFastViolations(day DayProblem, res *DayResult) int {
	p := day.Problem
	h := p.Planner.PeriodHours()
	P, N := day.Periods(), len(p.Vehicles)
	violations := 0
	for i := 0; i < P; i++ {
		fast := 0
		for j := 0; j < N; j++ {
			if res.Output.At(i, j)/h > p.RateACKW[j]+qaEps {
				fast++
			}
		}
		if fast > p.NumFast {
			violations++
		}
	}
	return violations
}

// countSoCViolations audits the trace against the profile: every period's
// state-of-charge gain must be covered by the energy delivered in it. A
// nonzero count means the accounting drifted and the day needs review.
func countSoCViolations(day DayProblem, res *DayResult) int {
	p := day.Problem
	eff := p.Planner.ChargerEfficiency
	P, N := day.Periods(), len(p.Vehicles)
	violations := 0
	for j := 0; j < N; j++ {
		prev := p.BatteryKWh[j] + day.Rel[j]
		for i := 0; i < P; i++ {
			delta := res.SoC.At(i, j) - prev - day.Use.At(i, j)
			if eff*res.Output.At(i, j) < delta-qaEps {
				violations++
			}
			prev = res.SoC.At(i, j)
		}
	}
	return violations
}

// excessCost prices the energy drawn above the contracted capacity at the
// distributor's exceeded-capacity charge, amortized through the power factor
// into billable kVA.
func excessCost(day DayProblem, res *DayResult, chargePerKVA float64) float64 {
	p := day.Problem
	h := p.Planner.PeriodHours()
	P, N := day.Periods(), len(p.Vehicles)
	excess := 0.0
	for i := 0; i < P; i++ {
		total := 0.0
		for j := 0; j < N; j++ {
			total += res.Output.At(i, j)
		}
		if over := total - p.CapacityKW[day.Lo+i]*h; over > 0 {
			excess += over
		}
	}
	return excess / p.Planner.PowerFactor * chargePerKVA
}
