package simulation

import (
	"math"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
)

const (
	minBaseCycleSeconds = 25
	maxBaseCycleSeconds = 41 // exclusive

	minCycleSeconds = 10.0
	maxCycleSeconds = 120.0
	cycleNoise      = 0.10

	stoppedFinishChance = 0.1
	maxRunningIncrement = 5
)

// transition is one row of the status Markov chain: stay below stay,
// move to next below next, otherwise move to last.
type transition struct {
	stay, next float64
	toNext     domain.Status
	toLast     domain.Status
}

var transitions = map[domain.Status]transition{
	domain.StatusRunning: {stay: 0.80, next: 0.95, toNext: domain.StatusStopped, toLast: domain.StatusAlarm},
	domain.StatusStopped: {stay: 0.80, next: 0.95, toNext: domain.StatusRunning, toLast: domain.StatusAlarm},
	domain.StatusAlarm:   {stay: 0.70, next: 0.85, toNext: domain.StatusStopped, toLast: domain.StatusRunning},
}

// nextStatus draws the successor of current. Unknown statuses fall back to Stopped.
func nextStatus(current domain.Status, r float64) domain.Status {
	t, ok := transitions[current]
	if !ok {
		return domain.StatusStopped
	}
	switch {
	case r < t.stay:
		return current
	case r < t.next:
		return t.toNext
	default:
		return t.toLast
	}
}

func nextProductionCount(rng Rand, count int64, status domain.Status) int64 {
	switch status {
	case domain.StatusRunning:
		return count + int64(rng.IntN(maxRunningIncrement)+1)
	case domain.StatusStopped:
		if rng.Float64() < stoppedFinishChance {
			return count + 1
		}
	}
	return count
}

func nextCycleTime(rng Rand, base float64, status domain.Status) float64 {
	if status != domain.StatusRunning {
		return 0
	}
	noise := (rng.Float64() - 0.5) * 2 * cycleNoise
	v := math.Round(base*(1+noise)*10) / 10
	return math.Max(minCycleSeconds, math.Min(maxCycleSeconds, v))
}
