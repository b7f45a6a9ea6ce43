// Package greedy implements a fast, best-effort graph-driven
// assignment heuristic: place fixed clusters first, then process
// remaining students by ascending neighborhood availability, forming
// small move-groups of friends and placing each group where a
// weighted placement cost is lowest.
package greedy

import (
	"context"
	"slices"
	"sort"

	"github.com/nlevy/classrooms-go/internal/apperrors"
	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/roster"
)

// placement-cost weights. These are the greedy heuristic's own fixed
// weights, shaped like gopatchy-rooms/solver.go's size/friend/balance
// cost terms -- distinct from the CSO objective's configurable
// engine.Weights, which this solver does not consume.
const (
	wSize     = 2.0
	wFriend   = 4.0
	wGender   = 1.0
	wAcademic = 1.0
	wBehavior = 1.0

	localImprovementIterations = 50
)

// Solver is the greedy strategy. It carries no state between calls.
type Solver struct{}

// New constructs a Greedy Solver.
func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return "greedy" }

type classStats struct {
	size       int
	male       int
	female     int
	academic   int // sum of scores
	behavior   int // sum of scores
}

func (c *classStats) maleRatio() float64 {
	if c.size == 0 {
		return 0.5
	}
	return float64(c.male) / float64(c.size)
}

func (c *classStats) avgAcademic() float64 {
	if c.size == 0 {
		return 2.0
	}
	return float64(c.academic) / float64(c.size)
}

func (c *classStats) avgBehavior() float64 {
	if c.size == 0 {
		return 2.0
	}
	return float64(c.behavior) / float64(c.size)
}

func (c *classStats) add(r *roster.Roster, i int) {
	c.size++
	if r.Students[i].Gender == roster.Male {
		c.male++
	} else {
		c.female++
	}
	c.academic += r.Students[i].Academic.Score()
	c.behavior += r.Students[i].Behavior.Score()
}

func (c *classStats) remove(r *roster.Roster, i int) {
	c.size--
	if r.Students[i].Gender == roster.Male {
		c.male--
	} else {
		c.female--
	}
	c.academic -= r.Students[i].Academic.Score()
	c.behavior -= r.Students[i].Behavior.Score()
}

func (s *Solver) Solve(ctx context.Context, r *roster.Roster, k int, cfg engine.SolveConfig) (engine.Assignment, engine.Diagnostics, error) {
	n := r.Len()
	diag := engine.Diagnostics{Strategy: s.Name()}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	stats := make([]classStats, k)
	unassigned := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		unassigned[i] = true
	}

	softCap := (n + k - 1) / k
	softCap++ // ceil(n/k) + 1, relaxed as a last resort
	capRelaxed := false

	violatesNotWith := func(i, class int) bool {
		for j := 0; j < n; j++ {
			if assignment[j] != class {
				continue
			}
			if r.Separated(i, j) {
				return true
			}
		}
		return false
	}

	place := func(members []int, class int) {
		for _, m := range members {
			assignment[m] = class
			stats[class].add(r, m)
			delete(unassigned, m)
		}
	}

	placementCost := func(members []int, class int) (float64, bool) {
		for _, m := range members {
			if violatesNotWith(m, class) {
				return 0, false
			}
		}
		if stats[class].size+len(members) > softCap && !capRelaxed {
			return 0, false
		}

		friendsPresent := 0
		memberSet := map[int]bool{}
		for _, m := range members {
			memberSet[m] = true
		}
		for _, m := range members {
			for _, nb := range r.Graph[m] {
				if memberSet[nb] {
					continue
				}
				if assignment[nb] == class {
					friendsPresent++
				}
			}
		}

		hypMale, hypAcademic, hypBehavior, hypSize := stats[class].male, stats[class].academic, stats[class].behavior, stats[class].size
		for _, m := range members {
			if r.Students[m].Gender == roster.Male {
				hypMale++
			}
			hypAcademic += r.Students[m].Academic.Score()
			hypBehavior += r.Students[m].Behavior.Score()
			hypSize++
		}
		genderDev := 0.5
		academicDev := 0.0
		behaviorDev := 0.0
		if hypSize > 0 {
			genderDev = abs(0.5 - float64(hypMale)/float64(hypSize))
			academicDev = abs(2.0 - float64(hypAcademic)/float64(hypSize))
			behaviorDev = abs(2.0 - float64(hypBehavior)/float64(hypSize))
		}

		cost := wSize*float64(stats[class].size) - wFriend*float64(friendsPresent) +
			wGender*genderDev + wAcademic*academicDev + wBehavior*behaviorDev
		return cost, true
	}

	bestClassFor := func(members []int) (int, bool) {
		bestCost := 0.0
		bestClass := -1
		found := false
		for c := 0; c < k; c++ {
			cost, ok := placementCost(members, c)
			if !ok {
				continue
			}
			if !found || cost < bestCost {
				bestCost = cost
				bestClass = c
				found = true
			}
		}
		return bestClass, found
	}

	// Step 3: place fixed clusters first.
	clusterIDs := r.ClusterIDs()
	pinned := make([]bool, n)
	for _, cid := range clusterIDs {
		members := r.Clusters[cid]
		if len(members) <= 1 {
			continue
		}
		// If the cluster contains a separation pair, split it: record
		// the violation and leave its members for the regular pass.
		split := false
		for i := 0; i < len(members) && !split; i++ {
			for j := i + 1; j < len(members); j++ {
				if r.Separated(members[i], members[j]) {
					split = true
					break
				}
			}
		}
		if split {
			diag.ClusterSplits++
			continue
		}
		class, ok := bestClassFor(members)
		if !ok {
			capRelaxed = true
			diag.SoftCapRelaxations++
			class, ok = bestClassFor(members)
			if !ok {
				return nil, diag, apperrors.New(apperrors.ErrAssignmentFailed, map[string]any{"stage": "cluster-placement"}, "no feasible class for cluster")
			}
		}
		place(members, class)
		for _, m := range members {
			pinned[m] = true
		}
	}

	// Step 4-6: process remaining students by ascending neighborhood
	// availability, forming move groups of up to two friends.
	for len(unassigned) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, diag, apperrors.New(apperrors.ErrAssignmentFailed, map[string]any{"stage": "greedy-loop"}, err.Error())
		}

		student := pickNextStudent(r, unassigned)

		unassignedFriends := make([]int, 0, len(r.Graph[student]))
		for _, f := range r.Graph[student] {
			if unassigned[f] {
				unassignedFriends = append(unassignedFriends, f)
			}
		}
		sort.Slice(unassignedFriends, func(a, b int) bool {
			na, nb := neighborhoodAvailability(r, unassigned, unassignedFriends[a]), neighborhoodAvailability(r, unassigned, unassignedFriends[b])
			if na != nb {
				return na < nb
			}
			return r.Students[unassignedFriends[a]].Name < r.Students[unassignedFriends[b]].Name
		})

		group := []int{student}
		for _, f := range unassignedFriends {
			if len(group) >= 3 {
				break
			}
			group = append(group, f)
		}

		class, ok := bestClassFor(group)
		if !ok {
			capRelaxed = true
			diag.SoftCapRelaxations++
			class, ok = bestClassFor(group)
		}
		if !ok {
			// Fall back to placing just the student. Relaxing the
			// not-with check is never permitted -- only the size cap
			// is a last resort.
			class, ok = bestClassFor([]int{student})
			group = []int{student}
		}
		if !ok {
			return nil, diag, apperrors.New(apperrors.ErrAssignmentFailed, map[string]any{"studentName": r.Students[student].Name}, "no feasible class for student")
		}
		place(group, class)
		diag.Iterations++
	}

	localImprove(r, assignment, stats, k, pinned, &diag)

	return engine.Assignment(assignment), diag, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func neighborhoodAvailability(r *roster.Roster, unassigned map[int]bool, i int) int {
	count := 0
	for _, nb := range r.Graph[i] {
		if unassigned[nb] {
			count++
		}
	}
	return count
}

// pickNextStudent selects the unassigned student with the fewest
// still-unassigned friends, breaking ties by descending degree then by
// name for determinism.
func pickNextStudent(r *roster.Roster, unassigned map[int]bool) int {
	best := -1
	bestAvail := 0
	bestDegree := 0
	for i := range unassigned {
		avail := neighborhoodAvailability(r, unassigned, i)
		degree := r.Degree(i)
		if best == -1 ||
			avail < bestAvail ||
			(avail == bestAvail && degree > bestDegree) ||
			(avail == bestAvail && degree == bestDegree && r.Students[i].Name < r.Students[best].Name) {
			best = i
			bestAvail = avail
			bestDegree = degree
		}
	}
	return best
}

// localImprove runs a fixed number of iterations attempting to fix
// zero-same-class-friend students via a swap. Students marked in
// pinned (members of a cluster placed whole in step 3) are never moved
// or swapped.
func localImprove(r *roster.Roster, assignment []int, stats []classStats, k int, pinned []bool, diag *engine.Diagnostics) {
	n := len(assignment)
	sameClassFriends := func(i int) int {
		count := 0
		for _, nb := range r.Graph[i] {
			if assignment[nb] == assignment[i] {
				count++
			}
		}
		return count
	}

	totalSatisfaction := func() int {
		total := 0
		for i := 0; i < n; i++ {
			total += sameClassFriends(i)
		}
		return total
	}

	for iter := 0; iter < localImprovementIterations; iter++ {
		var isolated []int
		for i := 0; i < n; i++ {
			if sameClassFriends(i) == 0 {
				isolated = append(isolated, i)
			}
		}
		if len(isolated) == 0 {
			break
		}
		slices.Sort(isolated)

		improved := false
		for _, i := range isolated {
			if pinned[i] {
				continue
			}
			fromClass := assignment[i]
			for toClass := 0; toClass < k; toClass++ {
				if toClass == fromClass {
					continue
				}
				hasFriendThere := false
				for _, nb := range r.Graph[i] {
					if assignment[nb] == toClass {
						hasFriendThere = true
						break
					}
				}
				if !hasFriendThere {
					continue
				}

				beforeSat := totalSatisfaction()
				var swapPartner = -1
				for j := 0; j < n; j++ {
					if assignment[j] != toClass || pinned[j] {
						continue
					}
					if r.Separated(i, j) {
						continue
					}
					swapPartner = j
					break
				}
				if swapPartner == -1 {
					// No swap partner in the target class; try a plain
					// move instead (class size is not checked here).
					if movesSeparationFree(r, assignment, i, toClass) {
						stats[fromClass].remove(r, i)
						assignment[i] = toClass
						stats[toClass].add(r, i)
						afterSat := totalSatisfaction()
						if afterSat < beforeSat {
							assignment[i] = fromClass
							stats[toClass].remove(r, i)
							stats[fromClass].add(r, i)
							continue
						}
						improved = true
						diag.Iterations++
						break
					}
					continue
				}

				if r.Separated(swapPartner, i) || movesSeparationViolated(r, assignment, swapPartner, fromClass) ||
					movesSeparationViolated(r, assignment, i, toClass) {
					continue
				}

				stats[fromClass].remove(r, i)
				stats[toClass].remove(r, swapPartner)
				assignment[i], assignment[swapPartner] = toClass, fromClass
				stats[toClass].add(r, i)
				stats[fromClass].add(r, swapPartner)

				afterSat := totalSatisfaction()
				if afterSat < beforeSat || sameClassFriends(i) == 0 {
					// revert: swap did not remove the isolation or
					// reduced total satisfaction.
					stats[toClass].remove(r, i)
					stats[fromClass].remove(r, swapPartner)
					assignment[i], assignment[swapPartner] = fromClass, toClass
					stats[fromClass].add(r, i)
					stats[toClass].add(r, swapPartner)
					continue
				}
				improved = true
				diag.Iterations++
				break
			}
			if improved {
				break
			}
		}
		if !improved {
			break
		}
	}
}

func movesSeparationFree(r *roster.Roster, assignment []int, i, toClass int) bool {
	for j := range assignment {
		if assignment[j] == toClass && r.Separated(i, j) {
			return false
		}
	}
	return true
}

func movesSeparationViolated(r *roster.Roster, assignment []int, i, toClass int) bool {
	return !movesSeparationFree(r, assignment, i, toClass)
}
