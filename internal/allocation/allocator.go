package allocation

import (
	"math"
	"sort"
)

// DefaultEpsilon is the tolerance used when comparing remainders, normalized
// ratios and capacities. It decides who receives a leftover unit on an exact
// tie, so changing it changes results.
const DefaultEpsilon = 1e-9

// atCapacity marks a task that could not take anything in the floor pass
const atCapacity = -1.0

// Result is the allocation computed for one task
type Result struct {
	TaskID           string  `json:"task_id"`
	Ratio            float64 `json:"ratio"`
	AllocatedMinutes int     `json:"allocated_minutes"`
	MinMinutes       *int    `json:"min_minutes,omitempty"`
	MaxMinutes       *int    `json:"max_minutes,omitempty"`
}

// Allocator runs the bounded largest-remainder apportionment. It holds no
// state between calls and is safe for concurrent use.
type Allocator struct {
	Epsilon float64
}

// New returns an Allocator using DefaultEpsilon
func New() *Allocator {
	return &Allocator{Epsilon: DefaultEpsilon}
}

var defaultAllocator = New()

// Allocate runs the default Allocator
func Allocate(req Request) ([]Result, error) {
	return defaultAllocator.Allocate(req)
}

type taskState struct {
	id         string
	ratio      float64
	min        int
	max        int
	bounded    bool
	allocation int
	remainder  float64
	normalized float64
	index      int
}

// room is what the task can still receive; ok is false when unbounded
func (s *taskState) room() (n int, ok bool) {
	if !s.bounded {
		return 0, false
	}
	if s.allocation >= s.max {
		return 0, true
	}
	return s.max - s.allocation, true
}

func (s *taskState) eligible(eps float64) bool {
	return !s.bounded || float64(s.allocation)+eps < float64(s.max)
}

func (s *taskState) result() Result {
	r := Result{
		TaskID:           s.id,
		Ratio:            s.ratio,
		AllocatedMinutes: s.allocation,
	}
	if s.min > 0 {
		v := s.min
		r.MinMinutes = &v
	}
	if s.bounded {
		v := s.max
		r.MaxMinutes = &v
	}
	return r
}

// Allocate distributes req.TotalMinutes across req.Tasks. It returns one
// Result per task in input order, or an *Error of kind KindInvalidInput or
// KindInfeasible. No partial result is ever returned.
func (a *Allocator) Allocate(req Request) ([]Result, error) {
	if len(req.Tasks) == 0 {
		return nil, invalidInput("at least one task is required", "")
	}
	if req.TotalMinutes <= 0 {
		return nil, invalidInput("total_minutes must be positive", "")
	}

	ratioSum := 0.0
	for _, t := range req.Tasks {
		ratioSum += t.Ratio
	}
	if !(ratioSum > 0) || math.IsInf(ratioSum, 0) {
		return nil, invalidInput("sum of ratios must be a positive finite number", "")
	}

	states := make([]taskState, len(req.Tasks))
	floorSum := 0
	maxSum := 0
	allBounded := true
	for i, t := range req.Tasks {
		if !(t.Ratio > 0) || math.IsInf(t.Ratio, 0) {
			return nil, invalidInput("ratio must be positive", t.ID)
		}
		s := taskState{
			id:         t.ID,
			ratio:      t.Ratio,
			normalized: t.Ratio / ratioSum,
			index:      i,
		}
		if t.MinMinutes != nil {
			s.min = *t.MinMinutes
		}
		if s.min < 0 {
			return nil, invalidInput("min_minutes cannot be negative", t.ID)
		}
		if t.MaxMinutes != nil {
			s.max = *t.MaxMinutes
			s.bounded = true
			if s.min > s.max {
				return nil, invalidInput("min_minutes cannot exceed max_minutes", t.ID)
			}
			maxSum += s.max
		} else {
			allBounded = false
		}
		s.allocation = s.min
		floorSum += s.min
		states[i] = s
	}

	if floorSum > req.TotalMinutes {
		return nil, infeasible(ReasonMinimumsExceedTotal)
	}
	if allBounded && maxSum < req.TotalMinutes {
		return nil, infeasible(ReasonTotalExceedsMaximum)
	}

	pool := req.TotalMinutes - floorSum
	if pool == 0 {
		return collect(states), nil
	}

	carried := a.floorPass(states, pool)

	if err := a.repair(states, req.TotalMinutes-(floorSum+carried)); err != nil {
		return nil, err
	}

	return collect(states), nil
}

// floorPass hands out the truncated proportional share of pool and records
// what truncation lost in each task's remainder. It returns the units given.
func (a *Allocator) floorPass(states []taskState, pool int) int {
	carried := 0
	for i := range states {
		s := &states[i]
		desired := float64(pool) * s.normalized

		capacity := pool
		if room, bounded := s.room(); bounded {
			capacity = room
		}
		if capacity <= 0 {
			s.remainder = atCapacity
			continue
		}

		base := int(math.Floor(desired))
		if base > capacity {
			base = capacity
		}
		// float rounding must never push the floor pass past the pool
		if base > pool-carried {
			base = pool - carried
		}
		s.allocation += base
		carried += base
		s.remainder = desired - float64(base)
	}
	return carried
}

// repair distributes unitsLeft one unit per eligible task per pass, in
// priority order, until nothing is left. Allocate checks feasibility first,
// so the infeasible returns here only guard a broken caller.
func (a *Allocator) repair(states []taskState, unitsLeft int) error {
	eps := a.epsilon()
	eligible := make([]*taskState, 0, len(states))

	for unitsLeft > 0 {
		eligible = eligible[:0]
		for i := range states {
			if states[i].eligible(eps) {
				eligible = append(eligible, &states[i])
			}
		}
		if len(eligible) == 0 {
			return infeasible(ReasonMaximumsUnsatisfied)
		}

		sort.Slice(eligible, func(i, j int) bool {
			return a.before(eligible[i], eligible[j])
		})

		if len(eligible) == 1 {
			s := eligible[0]
			grant := unitsLeft
			if room, bounded := s.room(); bounded && room < grant {
				grant = room
			}
			if grant <= 0 {
				return infeasible(ReasonMaximumsUnsatisfied)
			}
			s.allocation += grant
			unitsLeft -= grant
			continue
		}

		// Full passes in which nobody reaches its maximum give every eligible
		// task one unit in the same order, so they can be applied in bulk.
		if rounds := fullRounds(eligible, unitsLeft); rounds > 0 {
			for _, s := range eligible {
				s.allocation += rounds
			}
			unitsLeft -= rounds * len(eligible)
			continue
		}

		granted := 0
		for _, s := range eligible {
			if unitsLeft == 0 {
				break
			}
			if !s.eligible(eps) {
				continue
			}
			s.allocation++
			unitsLeft--
			granted++
		}
		if granted == 0 {
			return infeasible(ReasonNoCapacityLeft)
		}
	}
	return nil
}

// fullRounds is the number of complete one-unit passes over eligible that
// fit in unitsLeft without any task exceeding its maximum
func fullRounds(eligible []*taskState, unitsLeft int) int {
	rounds := unitsLeft / len(eligible)
	for _, s := range eligible {
		if room, bounded := s.room(); bounded && room < rounds {
			rounds = room
		}
	}
	if rounds < 1 {
		return 0
	}
	return rounds
}

// before is the tie-break contract: larger remainder, then larger normalized
// ratio, then smaller input index.
func (a *Allocator) before(x, y *taskState) bool {
	eps := a.epsilon()
	if math.Abs(x.remainder-y.remainder) > eps {
		return x.remainder > y.remainder
	}
	if math.Abs(x.normalized-y.normalized) > eps {
		return x.normalized > y.normalized
	}
	return x.index < y.index
}

func (a *Allocator) epsilon() float64 {
	if a == nil || a.Epsilon <= 0 {
		return DefaultEpsilon
	}
	return a.Epsilon
}

func collect(states []taskState) []Result {
	results := make([]Result, len(states))
	for i := range states {
		results[i] = states[i].result()
	}
	return results
}

// TotalAllocated sums the allocated minutes of results
func TotalAllocated(results []Result) int {
	total := 0
	for _, r := range results {
		total += r.AllocatedMinutes
	}
	return total
}
