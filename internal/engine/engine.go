// Package engine defines the shared vocabulary the greedy and CSO
// solvers, the evaluator, and the orchestrator all speak: the
// Assignment type and the Strategy interface each solver implements.
package engine

import (
	"context"

	"github.com/nlevy/classrooms-go/internal/roster"
)

// Assignment is a total function from student index to class index in
// [0,K). It is produced by a Strategy and consumed by the evaluator.
type Assignment []int

// ClassOf returns the class a named student was assigned to.
func (a Assignment) ClassOf(r *roster.Roster, name string) (int, bool) {
	i, ok := r.IndexOf(name)
	if !ok {
		return 0, false
	}
	return a[i], true
}

// Classes groups student indices by class, for k classes labeled
// 0..k-1. Every label appears even if empty, so callers can rely on
// len(result) == k.
func (a Assignment) Classes(k int) [][]int {
	out := make([][]int, k)
	for i, c := range a {
		out[c] = append(out[c], i)
	}
	return out
}

// Weights are the objective weights, configuration-only and never
// tuned at runtime.
type Weights struct {
	Friendship float64 // w_f
	Gender     float64 // w_g
	Academic   float64 // w_a
	Behavior   float64 // w_b
	Cluster    float64 // w_c
}

// DefaultWeights returns the default objective weights.
func DefaultWeights() Weights {
	return Weights{Friendship: 10, Gender: 3, Academic: 3, Behavior: 2, Cluster: 20}
}

// SolveConfig carries the parameters a Strategy needs beyond the
// roster, K and the deadline on ctx: currently only the objective
// weights.
type SolveConfig struct {
	Weights Weights
}

// Diagnostics carries solver-internal counters useful for logging and
// for the orchestrator's fallback-reason reporting; it is not part of
// the public wire contract.
type Diagnostics struct {
	Strategy           string
	Iterations         int
	ClusterSplits      int
	SeparationsForced  int
	SoftCapRelaxations int
}

// Strategy is the capability every solver implements: produce an
// Assignment for a roster and class count within a deadline, or fail
// with one of the closed error codes. Greedy and CSO are two
// interchangeable implementations, selected by tag, never by type
// hierarchy.
type Strategy interface {
	Name() string
	Solve(ctx context.Context, r *roster.Roster, k int, cfg SolveConfig) (Assignment, Diagnostics, error)
}
