package allocation

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func minutesOf(results []Result) map[string]int {
	out := make(map[string]int, len(results))
	for _, r := range results {
		out[r.TaskID] = r.AllocatedMinutes
	}
	return out
}

func TestAllocateScenarios(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want map[string]int
	}{
		{
			name: "equal ratios give the extra unit to the first task",
			req: Request{TotalMinutes: 100, Tasks: []Task{
				{ID: "A", Ratio: 1}, {ID: "B", Ratio: 1}, {ID: "C", Ratio: 1},
			}},
			want: map[string]int{"A": 34, "B": 33, "C": 33},
		},
		{
			name: "capped task leaves the rest to the unbounded one",
			req: Request{TotalMinutes: 10, Tasks: []Task{
				{ID: "A", Ratio: 1, MaxMinutes: intPtr(3)}, {ID: "B", Ratio: 1},
			}},
			want: map[string]int{"A": 3, "B": 7},
		},
		{
			name: "total equal to sum of minimums",
			req: Request{TotalMinutes: 30, Tasks: []Task{
				{ID: "A", Ratio: 5, MinMinutes: intPtr(10)}, {ID: "B", Ratio: 1, MinMinutes: intPtr(20)},
			}},
			want: map[string]int{"A": 10, "B": 20},
		},
		{
			name: "total equal to sum of maximums",
			req: Request{TotalMinutes: 20, Tasks: []Task{
				{ID: "A", Ratio: 1, MaxMinutes: intPtr(10)}, {ID: "B", Ratio: 3, MaxMinutes: intPtr(10)},
			}},
			want: map[string]int{"A": 10, "B": 10},
		},
		{
			name: "pool is shared after minimums are granted",
			req: Request{TotalMinutes: 60, Tasks: []Task{
				{ID: "A", Ratio: 1, MinMinutes: intPtr(20)}, {ID: "B", Ratio: 1},
			}},
			want: map[string]int{"A": 40, "B": 20},
		},
		{
			name: "larger remainder wins before larger ratio",
			req: Request{TotalMinutes: 10, Tasks: []Task{
				{ID: "A", Ratio: 2}, {ID: "B", Ratio: 1},
			}},
			want: map[string]int{"A": 7, "B": 3},
		},
		{
			name: "single task takes everything",
			req:  Request{TotalMinutes: 42, Tasks: []Task{{ID: "solo", Ratio: 0.25}}},
			want: map[string]int{"solo": 42},
		},
		{
			name: "task already at its maximum is skipped",
			req: Request{TotalMinutes: 9, Tasks: []Task{
				{ID: "A", Ratio: 10, MinMinutes: intPtr(4), MaxMinutes: intPtr(4)},
				{ID: "B", Ratio: 1}, {ID: "C", Ratio: 1},
			}},
			want: map[string]int{"A": 4, "B": 3, "C": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := Allocate(tt.req)
			require.NoError(t, err)
			require.Len(t, results, len(tt.req.Tasks))
			assert.Equal(t, tt.want, minutesOf(results))
			assert.Equal(t, tt.req.TotalMinutes, TotalAllocated(results))
			for i, r := range results {
				assert.Equal(t, tt.req.Tasks[i].ID, r.TaskID, "results keep input order")
			}
		})
	}
}

func TestAllocateErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		kind   error
		reason string
		taskID string
	}{
		{
			name:   "minimums exceed total",
			req:    Request{TotalMinutes: 5, Tasks: []Task{{ID: "A", Ratio: 1, MinMinutes: intPtr(10)}}},
			kind:   ErrInfeasible,
			reason: ReasonMinimumsExceedTotal,
		},
		{
			name: "total exceeds maximums",
			req: Request{TotalMinutes: 50, Tasks: []Task{
				{ID: "A", Ratio: 1, MaxMinutes: intPtr(10)}, {ID: "B", Ratio: 1, MaxMinutes: intPtr(10)},
			}},
			kind:   ErrInfeasible,
			reason: ReasonTotalExceedsMaximum,
		},
		{
			name:   "min above max",
			req:    Request{TotalMinutes: 5, Tasks: []Task{{ID: "A", Ratio: 1, MinMinutes: intPtr(8), MaxMinutes: intPtr(3)}}},
			kind:   ErrInvalidInput,
			reason: "min_minutes cannot exceed max_minutes",
			taskID: "A",
		},
		{
			name:   "no tasks",
			req:    Request{TotalMinutes: 5},
			kind:   ErrInvalidInput,
			reason: "at least one task is required",
		},
		{
			name:   "zero ratio sum",
			req:    Request{TotalMinutes: 5, Tasks: []Task{{ID: "A", Ratio: 0}}},
			kind:   ErrInvalidInput,
			reason: "sum of ratios must be a positive finite number",
		},
		{
			name:   "overflowing ratio sum",
			req:    Request{TotalMinutes: 5, Tasks: []Task{{ID: "A", Ratio: math.MaxFloat64}, {ID: "B", Ratio: math.MaxFloat64}}},
			kind:   ErrInvalidInput,
			reason: "sum of ratios must be a positive finite number",
		},
		{
			name:   "negative ratio hidden by positive sum",
			req:    Request{TotalMinutes: 5, Tasks: []Task{{ID: "A", Ratio: 3}, {ID: "B", Ratio: -1}}},
			kind:   ErrInvalidInput,
			reason: "ratio must be positive",
			taskID: "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := Allocate(tt.req)
			require.Error(t, err)
			assert.Nil(t, results)
			assert.True(t, errors.Is(err, tt.kind), "unexpected kind: %v", err)

			allocErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, allocErr.Reason)
			assert.Equal(t, tt.taskID, allocErr.TaskID)
		})
	}
}

func TestAllocateEpsilonDecidesNearTies(t *testing.T) {
	req := Request{TotalMinutes: 1, Tasks: []Task{
		{ID: "A", Ratio: 1},
		{ID: "B", Ratio: 1 + 1e-10},
	}}

	results, err := New().Allocate(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1, "B": 0}, minutesOf(results))

	strict := &Allocator{Epsilon: 1e-12}
	results, err = strict.Allocate(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, minutesOf(results))
}

func TestRepairReportsExhaustedMaximums(t *testing.T) {
	tests := []struct {
		name   string
		states []taskState
		left   int
	}{
		{
			name: "every task already at its maximum",
			states: []taskState{
				{id: "A", bounded: true, max: 4, allocation: 4, index: 0},
				{id: "B", bounded: true, max: 2, allocation: 2, index: 1},
			},
			left: 3,
		},
		{
			name: "single task fills up before the units run out",
			states: []taskState{
				{id: "A", bounded: true, max: 5, allocation: 3, index: 0},
				{id: "B", bounded: true, max: 1, allocation: 1, index: 1},
			},
			left: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().repair(tt.states, tt.left)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInfeasible))

			allocErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, ReasonMaximumsUnsatisfied, allocErr.Reason)
		})
	}
}

func TestAllocateLargeTotalWithCappedTask(t *testing.T) {
	req := Request{TotalMinutes: 1_000_000_000, Tasks: []Task{
		{ID: "A", Ratio: 1, MaxMinutes: intPtr(3)},
		{ID: "B", Ratio: 1},
		{ID: "C", Ratio: 1},
	}}

	results, err := Allocate(req)
	require.NoError(t, err)

	got := minutesOf(results)
	assert.Equal(t, 3, got["A"])
	assert.Equal(t, 499_999_999, got["B"])
	assert.Equal(t, 499_999_998, got["C"])
	assert.Equal(t, req.TotalMinutes, TotalAllocated(results))
}

func TestAllocateEchoesBounds(t *testing.T) {
	req := Request{TotalMinutes: 10, Tasks: []Task{
		{ID: "A", Ratio: 1, MinMinutes: intPtr(2), MaxMinutes: intPtr(6)},
		{ID: "B", Ratio: 1, MinMinutes: intPtr(0)},
	}}

	results, err := Allocate(req)
	require.NoError(t, err)

	require.NotNil(t, results[0].MinMinutes)
	require.NotNil(t, results[0].MaxMinutes)
	assert.Equal(t, 2, *results[0].MinMinutes)
	assert.Equal(t, 6, *results[0].MaxMinutes)
	assert.Nil(t, results[1].MinMinutes)
	assert.Nil(t, results[1].MaxMinutes)
}

func TestAllocateDoesNotMutateRequest(t *testing.T) {
	req := Request{TotalMinutes: 17, Tasks: []Task{
		{ID: "A", Ratio: 2, MinMinutes: intPtr(1)},
		{ID: "B", Ratio: 1, MaxMinutes: intPtr(5)},
	}}
	before := Request{TotalMinutes: req.TotalMinutes, Tasks: append([]Task(nil), req.Tasks...)}

	_, err := Allocate(req)
	require.NoError(t, err)
	assert.Equal(t, before, req)
	assert.Equal(t, 1, *req.Tasks[0].MinMinutes)
	assert.Equal(t, 5, *req.Tasks[1].MaxMinutes)
}

// Property tests

type taskSpec struct {
	Ratio  float64
	Min    int
	Extra  int
	HasMin bool
	HasMax bool
}

type allocationCase struct {
	Request Request
}

func genTaskSpec() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0.01, 100),
		gen.IntRange(0, 50),
		gen.IntRange(0, 200),
		gen.Bool(),
		gen.Bool(),
	).Map(func(values []interface{}) taskSpec {
		return taskSpec{
			Ratio:  values[0].(float64),
			Min:    values[1].(int),
			Extra:  values[2].(int),
			HasMin: values[3].(bool),
			HasMax: values[4].(bool),
		}
	})
}

func genAllocationCase(bounded bool) gopter.Gen {
	return gen.IntRange(1, 8).FlatMap(func(n interface{}) gopter.Gen {
		count := n.(int)
		return gopter.CombineGens(
			gen.IntRange(1, 5000),
			gen.SliceOfN(count, genTaskSpec()),
		).Map(func(values []interface{}) allocationCase {
			specs := values[1].([]taskSpec)
			tasks := make([]Task, len(specs))
			for i, s := range specs {
				task := Task{ID: string(rune('A' + i)), Ratio: s.Ratio}
				if bounded && s.HasMin {
					task.MinMinutes = intPtr(s.Min)
				}
				if bounded && s.HasMax {
					max := s.Extra
					if s.HasMin {
						max += s.Min
					}
					if max < 1 {
						max = 1
					}
					task.MaxMinutes = intPtr(max)
				}
				tasks[i] = task
			}
			return allocationCase{Request: Request{TotalMinutes: values[0].(int), Tasks: tasks}}
		})
	}, reflect.TypeOf(allocationCase{}))
}

func bounds(task Task) (min, max int, bounded bool) {
	if task.MinMinutes != nil {
		min = *task.MinMinutes
	}
	if task.MaxMinutes != nil {
		return min, *task.MaxMinutes, true
	}
	return min, 0, false
}

// TestAllocationInvariants checks sum preservation, bound respect and
// infeasibility detection over generated requests
func TestAllocationInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("feasible requests are fully allocated within bounds", prop.ForAll(
		func(c allocationCase) bool {
			req := c.Request
			minSum, maxSum, allBounded := 0, 0, true
			for _, task := range req.Tasks {
				min, max, bounded := bounds(task)
				minSum += min
				if bounded {
					maxSum += max
				} else {
					allBounded = false
				}
			}

			results, err := Allocate(req)

			switch {
			case minSum > req.TotalMinutes:
				allocErr, ok := AsError(err)
				return ok && allocErr.Kind == KindInfeasible && allocErr.Reason == ReasonMinimumsExceedTotal
			case allBounded && maxSum < req.TotalMinutes:
				allocErr, ok := AsError(err)
				return ok && allocErr.Kind == KindInfeasible && allocErr.Reason == ReasonTotalExceedsMaximum
			}

			if err != nil {
				t.Logf("unexpected error for %+v: %v", req, err)
				return false
			}
			if TotalAllocated(results) != req.TotalMinutes {
				return false
			}
			for i, r := range results {
				min, max, bounded := bounds(req.Tasks[i])
				if r.AllocatedMinutes < min || (bounded && r.AllocatedMinutes > max) {
					return false
				}
			}
			return true
		},
		genAllocationCase(true),
	))

	properties.Property("unbounded allocations stay within one unit of the exact share", prop.ForAll(
		func(c allocationCase) bool {
			req := c.Request
			results, err := Allocate(req)
			if err != nil {
				return false
			}
			ratioSum := 0.0
			for _, task := range req.Tasks {
				ratioSum += task.Ratio
			}
			for i, r := range results {
				exact := float64(req.TotalMinutes) * req.Tasks[i].Ratio / ratioSum
				if math.Abs(float64(r.AllocatedMinutes)-exact) >= 1 {
					return false
				}
			}
			return true
		},
		genAllocationCase(false),
	))

	properties.Property("identical requests yield identical results", prop.ForAll(
		func(c allocationCase) bool {
			first, err1 := Allocate(c.Request)
			second, err2 := Allocate(c.Request)
			if (err1 == nil) != (err2 == nil) {
				return false
			}
			if err1 != nil {
				return err1.Error() == err2.Error()
			}
			return reflect.DeepEqual(first, second)
		},
		genAllocationCase(true),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
