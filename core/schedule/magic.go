package schedule

// solveMagic restores every vehicle to a full pack by spreading its missing
// energy uniformly over its available periods. It ignores rates and the site
// feed, so it always produces a profile; the orchestrator's audit counters
// surface whatever it violated.
func solveMagic(day DayProblem, res *DayResult) {
	p := day.Problem
	eff := p.Planner.ChargerEfficiency
	P, N := day.Periods(), len(p.Vehicles)

	for j := 0; j < N; j++ {
		required := -day.Rel[j]
		avail := 0
		for i := 0; i < P; i++ {
			required -= day.Use.At(i, j)
			if day.Avail.At(i, j) > 0 {
				avail++
			}
		}
		if required <= 0 || avail == 0 {
			continue
		}
		per := required / (float64(avail) * eff)
		for i := 0; i < P; i++ {
			if day.Avail.At(i, j) > 0 {
				res.Output.Set(i, j, per)
			}
		}
	}
	deriveSoC(day, res)
}
