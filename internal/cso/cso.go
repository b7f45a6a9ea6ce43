// Package cso implements the Constraint-Satisfaction Optimizer: a
// weighted local-search solver that holds the hard constraints
// (exactly-one-class, separation, friend-present, class-size band,
// cluster cohesion) invariant throughout search, and minimizes the
// weighted soft objective (friendship shortfall, gender/academic/
// behavior imbalance, cluster violations) within a wall-clock budget.
//
// Rather than anneal over pairwise must/prefer constraints directly,
// this solver anneals over friend-present-closed "groups" -- connected
// components of the friendship graph merged with any cluster forced to
// cohere -- and always moves or swaps a whole group at once. Because
// every member of a group has at least one friend inside the same
// group, friend-present holds automatically for as long as the group
// itself is never split across classes; the search therefore never has
// to re-derive feasibility after a move, only check the class-size
// band and separation set.
package cso

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sort"

	"github.com/nlevy/classrooms-go/internal/apperrors"
	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/roster"
)

// Params are the solver's own simulated-annealing parameters. They are
// solver-internal tuning, not part of the caller-facing configuration
// surface.
type Params struct {
	Restarts        int
	StepsPerRestart int
	TempHigh        float64
	TempLow         float64
	Seed            int64
}

// DefaultParams mirrors the scale of gopatchy-rooms/solver.go's
// DefaultSAParams, sized down since this solver must also respect a
// caller-supplied wall-clock deadline.
func DefaultParams() Params {
	return Params{Restarts: 30, StepsPerRestart: 3000, TempHigh: 6.0, TempLow: 0.05, Seed: 42}
}

// Solver is the CSO strategy.
type Solver struct {
	Params Params
}

// New constructs a CSO Solver with default annealing parameters.
func New() *Solver { return &Solver{Params: DefaultParams()} }

func (s *Solver) Name() string { return "cso" }

type group struct {
	members    []int
	clusterIDs []int // non-absent cluster ids represented in this group, for violation scoring
}

func (s *Solver) Solve(ctx context.Context, r *roster.Roster, k int, cfg engine.SolveConfig) (engine.Assignment, engine.Diagnostics, error) {
	n := r.Len()
	diag := engine.Diagnostics{Strategy: s.Name()}
	weights := cfg.Weights
	if weights == (engine.Weights{}) {
		weights = engine.DefaultWeights()
	}

	// A class-size band with ceil==1 forces every class to hold exactly
	// one student (since ceil==1 implies n==k, given the validator
	// already rejected k>n). A singleton class can never contain a
	// second, friend-present-satisfying occupant, so this is a proven
	// infeasibility.
	floorSize := n / k
	ceilSize := (n + k - 1) / k
	if ceilSize == 1 && n > 1 {
		return nil, diag, apperrors.New(apperrors.ErrNoSolutionFound,
			map[string]any{"studentCount": n, "classCount": k},
			"class size band forces singleton classes, which cannot satisfy friend-present")
	}

	groups, splitClusters, adj := buildGroups(r)
	diag.ClusterSplits = len(splitClusters)

	groups = splitOversizedGroups(adj, groups, ceilSize)

	assignment, groupOfStudent, feasible := packGroups(r, groups, k, ceilSize)
	if !feasible {
		return nil, diag, apperrors.New(apperrors.ErrNoSolutionFound,
			map[string]any{"classCount": k}, "no feasible initial packing satisfies separation and class-size constraints")
	}

	rng := rand.New(rand.NewSource(s.Params.Seed))

	best := slices.Clone(assignment)
	bestScore := objective(r, best, k, weights, splitClusters)

	current := slices.Clone(assignment)
	currentScore := bestScore

	groupClass := make([]int, len(groups))
	for gi, g := range groups {
		groupClass[gi] = current[g.members[0]]
	}

restarts:
	for restart := 0; restart < s.Params.Restarts; restart++ {
		// With a single class there is no move or swap to try.
		if ctx.Err() != nil || k < 2 {
			break restarts
		}
		if restart > 0 {
			copy(current, best)
			currentScore = bestScore
			for gi, g := range groups {
				groupClass[gi] = current[g.members[0]]
			}
		}

		for step := 0; step < s.Params.StepsPerRestart; step++ {
			if step%256 == 0 && ctx.Err() != nil {
				break restarts
			}

			t := s.Params.TempHigh * math.Pow(s.Params.TempLow/s.Params.TempHigh, float64(step)/float64(s.Params.StepsPerRestart-1))

			gi := rng.Intn(len(groups))
			fromClass := groupClass[gi]

			var toClass int
			swapGi := -1
			if rng.Intn(3) == 0 && len(groups) > 1 {
				swapGi = rng.Intn(len(groups) - 1)
				if swapGi >= gi {
					swapGi++
				}
				toClass = groupClass[swapGi]
				if toClass == fromClass {
					continue
				}
			} else {
				toClass = rng.Intn(k - 1)
				if toClass >= fromClass {
					toClass++
				}
			}

			if swapGi >= 0 {
				diff := len(groups[swapGi].members) - len(groups[gi].members)
				grown, shrunk := fromClass, toClass
				if diff < 0 {
					diff, grown, shrunk = -diff, toClass, fromClass
				}
				if diff > 0 && (classSize(current, grown)+diff > ceilSize || classSize(current, shrunk)-diff < floorSize) {
					continue
				}
				if !canSwap(r, groups[gi], groups[swapGi], current) {
					continue
				}
				applyMove(current, groups[gi].members, toClass)
				applyMove(current, groups[swapGi].members, fromClass)
				newScore := objective(r, current, k, weights, splitClusters)
				delta := currentScore - newScore
				if delta >= 0 || rng.Float64() < math.Exp(delta/t) {
					currentScore = newScore
					groupClass[gi], groupClass[swapGi] = toClass, fromClass
					if currentScore < bestScore {
						bestScore = currentScore
						copy(best, current)
					}
				} else {
					applyMove(current, groups[gi].members, fromClass)
					applyMove(current, groups[swapGi].members, toClass)
				}
				continue
			}

			newSizeFrom := classSize(current, fromClass) - len(groups[gi].members)
			newSizeTo := classSize(current, toClass) + len(groups[gi].members)
			if newSizeFrom < floorSize || newSizeTo > ceilSize {
				continue
			}
			if !canPlace(r, groups[gi], toClass, current) {
				continue
			}

			applyMove(current, groups[gi].members, toClass)
			newScore := objective(r, current, k, weights, splitClusters)
			delta := currentScore - newScore
			if delta >= 0 || rng.Float64() < math.Exp(delta/t) {
				currentScore = newScore
				groupClass[gi] = toClass
				if currentScore < bestScore {
					bestScore = currentScore
					copy(best, current)
				}
			} else {
				applyMove(current, groups[gi].members, fromClass)
			}
			diag.Iterations++
		}
	}

	if err := verifyHardConstraints(r, best, k, floorSize, ceilSize); err != nil {
		if ctx.Err() != nil {
			return nil, diag, apperrors.New(apperrors.ErrOptimizationTimeout,
				map[string]any{}, "deadline reached with no feasible solution")
		}
		return nil, diag, apperrors.New(apperrors.ErrOptimizationTimeout,
			map[string]any{}, "search budget exhausted with no feasible solution: "+err.Error())
	}

	_ = groupOfStudent
	return engine.Assignment(best), diag, nil
}

// buildGroups computes the atomic move units: connected components of
// the friendship graph, extended with chain edges linking any cluster
// that is separation-free (hard cohesion). Clusters with an internal
// separation pair are demoted to soft and returned in splitClusters.
// The cluster-extended adjacency used to find those components is
// also returned, since any later operation that must preserve a
// group's internal connectivity (e.g. splitting an oversized group)
// needs the same edges buildGroups used to form it, not the bare
// friendship graph.
func buildGroups(r *roster.Roster) ([]group, map[int][]int, [][]int) {
	n := r.Len()
	adj := make([][]int, n)
	for i := range adj {
		adj[i] = append(adj[i], r.Graph[i]...)
	}

	splitClusters := map[int][]int{}
	clusterOf := make([]int, n)
	for i := range clusterOf {
		clusterOf[i] = -1
	}

	for _, cid := range r.ClusterIDs() {
		members := r.Clusters[cid]
		if len(members) <= 1 {
			continue
		}
		separated := false
		for i := 0; i < len(members) && !separated; i++ {
			for j := i + 1; j < len(members); j++ {
				if r.Separated(members[i], members[j]) {
					separated = true
					break
				}
			}
		}
		if separated {
			splitClusters[cid] = members
			continue
		}
		for i := 1; i < len(members); i++ {
			adj[members[i-1]] = append(adj[members[i-1]], members[i])
			adj[members[i]] = append(adj[members[i]], members[i-1])
		}
		for _, m := range members {
			clusterOf[m] = cid
		}
	}

	seen := make([]bool, n)
	var groups []group
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		var members []int
		clusterSet := map[int]bool{}
		queue := []int{start}
		seen[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, cur)
			if clusterOf[cur] >= 0 {
				clusterSet[clusterOf[cur]] = true
			}
			for _, nb := range adj[cur] {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		var clusterIDs []int
		for cid := range clusterSet {
			clusterIDs = append(clusterIDs, cid)
		}
		slices.Sort(members)
		slices.Sort(clusterIDs)
		groups = append(groups, group{members: members, clusterIDs: clusterIDs})
	}
	return groups, splitClusters, adj
}

// splitOversizedGroups breaks any connected group larger than the
// class capacity into connected sub-pieces via spanning-tree subtree
// extraction: each non-root member of a piece keeps its tree edge to
// another member of the same piece. A tree edge is either a friendship
// or a cluster-chain edge, so a piece held together only by a
// cluster-chain edge is not friend-present on its own; such a state is
// caught by the final verifyHardConstraints check.
func splitOversizedGroups(adj [][]int, groups []group, cap int) []group {
	var out []group
	for _, g := range groups {
		if len(g.members) <= cap {
			out = append(out, g)
			continue
		}
		out = append(out, splitOneGroup(adj, g, cap)...)
	}
	return out
}

// splitOneGroup walks adj, the same cluster-extended adjacency
// buildGroups used to form g, so that every member reachable only
// through a cluster-chain edge is still visited and placed in a
// piece instead of being silently dropped.
func splitOneGroup(adj [][]int, g group, cap int) []group {
	memberSet := make(map[int]bool, len(g.members))
	for _, m := range g.members {
		memberSet[m] = true
	}
	root := g.members[0]
	parent := map[int]int{root: -1}
	var order []int
	queue := []int{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, nb := range adj[cur] {
			if memberSet[nb] {
				if _, visited := parent[nb]; !visited {
					parent[nb] = cur
					queue = append(queue, nb)
				}
			}
		}
	}

	children := map[int][]int{}
	for _, m := range order {
		if p := parent[m]; p >= 0 {
			children[p] = append(children[p], m)
		}
	}

	alive := make(map[int]bool, len(order))
	for _, m := range order {
		alive[m] = true
	}

	subtreeSize := func(root int) int {
		count := 0
		var walk func(int)
		walk = func(node int) {
			if !alive[node] {
				return
			}
			count++
			for _, c := range children[node] {
				walk(c)
			}
		}
		walk(root)
		return count
	}

	collectSubtree := func(root int) []int {
		var out []int
		var walk func(int)
		walk = func(node int) {
			if !alive[node] {
				return
			}
			out = append(out, node)
			alive[node] = false
			for _, c := range children[node] {
				walk(c)
			}
		}
		walk(root)
		return out
	}

	var pieces [][]int
	for {
		total := subtreeSize(root)
		if total <= cap {
			break
		}

		// Prefer a cut that leaves the root side with 0 or >=2 members:
		// a remainder of exactly 1 strands that member with no friend
		// of its own in its piece until mergeSingletonPieces patches
		// it up, which exceeds cap whenever no adjacent piece has room.
		bestNode, bestSize := -1, 0
		for _, m := range order {
			if !alive[m] || m == root {
				continue
			}
			sz := subtreeSize(m)
			if sz < 2 || sz > cap || total-sz == 1 {
				continue
			}
			if sz > bestSize {
				bestSize, bestNode = sz, m
			}
		}
		if bestNode == -1 {
			// No cut avoids a singleton remainder (e.g. the component
			// is star-shaped around a single hub): fall back to the
			// largest valid subtree regardless, and let
			// mergeSingletonPieces absorb whatever remainder is left.
			for _, m := range order {
				if !alive[m] || m == root {
					continue
				}
				sz := subtreeSize(m)
				if sz >= 2 && sz <= cap && sz > bestSize {
					bestSize, bestNode = sz, m
				}
			}
		}
		if bestNode == -1 {
			break
		}
		pieces = append(pieces, collectSubtree(bestNode))
	}
	pieces = append(pieces, collectSubtree(root))

	pieces = mergeSingletonPieces(pieces, adj, cap)

	out := make([]group, 0, len(pieces))
	for _, p := range pieces {
		if len(p) == 0 {
			continue
		}
		slices.Sort(p)
		out = append(out, group{members: p})
	}
	return out
}

// mergeSingletonPieces folds any size-1 piece into an adjacent piece
// that still has room under cap. A singleton piece has no friend of
// its own inside it, so unless it is later moved atomically into the
// same class as whichever piece holds its friend -- something the
// search gives no special preference to -- it loses friend-present
// for good; folding it into a neighbor as soon as the split is made
// keeps the invariant splitOneGroup is supposed to hold: every
// produced piece is friend-present-self-sufficient, not merely
// friendship-graph-reachable at split time.
func mergeSingletonPieces(pieces [][]int, adj [][]int, cap int) [][]int {
	pieceOf := make(map[int]int)
	for pi, p := range pieces {
		for _, m := range p {
			pieceOf[m] = pi
		}
	}

	for {
		progressed := false
		for pi, p := range pieces {
			if len(p) != 1 {
				continue
			}
			node := p[0]

			// Prefer the smallest adjacent piece that still has room
			// under cap; fall back to the smallest adjacent piece at
			// all (even over cap) rather than leave the singleton.
			target, targetHasRoom := -1, false
			for _, nb := range adj[node] {
				npi, ok := pieceOf[nb]
				if !ok || npi == pi || len(pieces[npi]) == 0 {
					continue
				}
				hasRoom := len(pieces[npi]) < cap
				switch {
				case target == -1:
					target, targetHasRoom = npi, hasRoom
				case hasRoom && !targetHasRoom:
					target, targetHasRoom = npi, hasRoom
				case hasRoom == targetHasRoom && len(pieces[npi]) < len(pieces[target]):
					target, targetHasRoom = npi, hasRoom
				}
			}
			if target == -1 {
				continue
			}

			pieces[target] = append(pieces[target], node)
			pieces[pi] = nil
			pieceOf[node] = target
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return pieces
}

func canPlace(r *roster.Roster, g group, class int, assignment []int) bool {
	for _, m := range g.members {
		for j, c := range assignment {
			if c == class && r.Separated(m, j) {
				return false
			}
		}
	}
	return true
}

func canSwap(r *roster.Roster, a, b group, assignment []int) bool {
	bClass := assignment[b.members[0]]
	aClass := assignment[a.members[0]]
	for _, m := range a.members {
		for j, c := range assignment {
			if c == bClass && j != m && !inGroup(b, j) && r.Separated(m, j) {
				return false
			}
		}
	}
	for _, m := range b.members {
		for j, c := range assignment {
			if c == aClass && j != m && !inGroup(a, j) && r.Separated(m, j) {
				return false
			}
		}
	}
	return true
}

func inGroup(g group, i int) bool {
	for _, m := range g.members {
		if m == i {
			return true
		}
	}
	return false
}

func applyMove(assignment []int, members []int, class int) {
	for _, m := range members {
		assignment[m] = class
	}
}

func classSize(assignment []int, class int) int {
	n := 0
	for _, c := range assignment {
		if c == class {
			n++
		}
	}
	return n
}

// packGroups performs an initial bin-packing of groups into k classes
// respecting separation and, best-effort, the class-size upper bound.
func packGroups(r *roster.Roster, groups []group, k int, ceilSize int) ([]int, []int, bool) {
	n := r.Len()
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	groupOfStudent := make([]int, n)

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return len(groups[order[a]].members) > len(groups[order[b]].members) })

	sizes := make([]int, k)
	for _, gi := range order {
		g := groups[gi]
		bestClass := -1
		bestAfter := 0
		for c := 0; c < k; c++ {
			if sizes[c]+len(g.members) > ceilSize {
				continue
			}
			if !canPlace(r, g, c, assignment) {
				continue
			}
			after := sizes[c] + len(g.members)
			if bestClass == -1 || after < bestAfter {
				bestClass = c
				bestAfter = after
			}
		}
		if bestClass == -1 {
			// relax the upper bound as a last resort, but never the
			// separation constraint.
			for c := 0; c < k; c++ {
				if !canPlace(r, g, c, assignment) {
					continue
				}
				if bestClass == -1 || sizes[c] < sizes[bestClass] {
					bestClass = c
				}
			}
		}
		if bestClass == -1 {
			return nil, nil, false
		}
		for _, m := range g.members {
			assignment[m] = bestClass
			groupOfStudent[m] = gi
		}
		sizes[bestClass] += len(g.members)
	}
	return assignment, groupOfStudent, true
}

// objective scores an assignment's weighted soft objective: friendship
// shortfall, gender/academic/behavior imbalance (sum of squared
// deviations from the per-class mean), and cluster violations for
// clusters demoted to soft.
func objective(r *roster.Roster, assignment []int, k int, w engine.Weights, splitClusters map[int][]int) float64 {
	n := len(assignment)

	shortfall := 0
	for i := 0; i < n; i++ {
		for _, nb := range r.Graph[i] {
			if nb <= i {
				continue
			}
			if assignment[i] != assignment[nb] {
				shortfall += 2
			}
		}
	}

	maleCount := make([]int, k)
	size := make([]int, k)
	academicCount := make([][3]int, k)
	behaviorCount := make([][3]int, k)
	for i := 0; i < n; i++ {
		c := assignment[i]
		size[c]++
		if r.Students[i].Gender == roster.Male {
			maleCount[c]++
		}
		academicCount[c][r.Students[i].Academic.Score()-1]++
		behaviorCount[c][r.Students[i].Behavior.Score()-1]++
	}

	genderDev := sumSquaredDeviation(maleCount, size)
	academicDev := sumSquaredDeviationByLevel(academicCount, size)
	behaviorDev := sumSquaredDeviationByLevel(behaviorCount, size)

	clusterViolations := 0
	for _, members := range splitClusters {
		cls := assignment[members[0]]
		for _, m := range members[1:] {
			if assignment[m] != cls {
				clusterViolations++
			}
		}
	}

	return w.Friendship*float64(shortfall) +
		w.Gender*genderDev +
		w.Academic*academicDev +
		w.Behavior*behaviorDev +
		w.Cluster*float64(clusterViolations)
}

func sumSquaredDeviation(counts, sizes []int) float64 {
	total, totalSize := 0, 0
	for i := range counts {
		total += counts[i]
		totalSize += sizes[i]
	}
	if totalSize == 0 || len(counts) == 0 {
		return 0
	}
	mean := float64(total) / float64(len(counts))
	sum := 0.0
	for _, c := range counts {
		d := float64(c) - mean
		sum += d * d
	}
	return sum
}

func sumSquaredDeviationByLevel(counts [][3]int, sizes []int) float64 {
	var totals [3]float64
	for _, c := range counts {
		for lvl := 0; lvl < 3; lvl++ {
			totals[lvl] += float64(c[lvl])
		}
	}
	k := float64(len(counts))
	if k == 0 {
		return 0
	}
	means := [3]float64{totals[0] / k, totals[1] / k, totals[2] / k}
	sum := 0.0
	for _, c := range counts {
		for lvl := 0; lvl < 3; lvl++ {
			d := float64(c[lvl]) - means[lvl]
			sum += d * d
		}
	}
	return sum
}

func verifyHardConstraints(r *roster.Roster, assignment []int, k int, floorSize, ceilSize int) error {
	n := len(assignment)
	sizes := make([]int, k)
	for _, c := range assignment {
		sizes[c]++
	}
	for c, sz := range sizes {
		if sz < floorSize || sz > ceilSize {
			return apperrors.New(apperrors.ErrAssignmentFailed, map[string]any{"class": c, "size": sz}, "class size outside band")
		}
	}
	for i := 0; i < n; i++ {
		satisfied := false
		for _, nb := range r.Graph[i] {
			if assignment[nb] == assignment[i] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return apperrors.New(apperrors.ErrAssignmentFailed, map[string]any{"studentIndex": i}, "friend-present violated")
		}
	}
	for pair := range r.Seps {
		if assignment[pair[0]] == assignment[pair[1]] {
			return apperrors.New(apperrors.ErrAssignmentFailed, map[string]any{}, "separation violated")
		}
	}
	return nil
}
