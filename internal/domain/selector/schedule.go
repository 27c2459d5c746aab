package selector

import "time"

// Spin defaults: thirty churn picks, paced from 30ms with the pause growing
// by half a millisecond per step already taken.
const (
	DefaultSpinSteps    = 30
	DefaultSpinInitial  = 30 * time.Millisecond
	DefaultSpinIncrease = 500 * time.Microsecond
)

// Schedule returns the pause before each churn pick of a spin. The first
// pick is immediate; the pause before pick k+1 is initial + increase*(1+..+k),
// so the cadence slows towards the end. Non-positive steps yield nil.
func Schedule(steps int, initial, increase time.Duration) []time.Duration {
	if steps <= 0 {
		return nil
	}
	initial = max(initial, 0)
	increase = max(increase, 0)

	out := make([]time.Duration, steps)
	d := initial
	for k := 1; k < steps; k++ {
		d += time.Duration(k) * increase
		out[k] = d
	}
	return out
}

// Total sums a schedule.
func Total(schedule []time.Duration) time.Duration {
	var t time.Duration
	for _, d := range schedule {
		t += d
	}
	return t
}
