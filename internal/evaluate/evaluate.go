// Package evaluate scores a finished Assignment against the hard
// constraints and soft objective, producing the Record attached to
// every successful response. Hard-constraint checking, friendship
// scoring, and balance scoring are each a pure function of (Roster,
// Assignment, K), composed by Evaluate.
package evaluate

import (
	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/roster"
)

// HardViolation records one broken hard constraint, named by kind so
// callers can render a human-readable report without re-deriving it.
type HardViolation struct {
	Kind        string // "separation", "friend_present", "class_size", "cluster_cohesion"
	StudentName string
	OtherName   string
	Class       int
}

// ClassSummary is a per-class rollup surfaced in the HTTP response's
// classes[] field.
type ClassSummary struct {
	Class                        int
	StudentsCount                int
	MalesCount                   int
	AverageAcademicPerformance   float64
	AverageBehaviouralPerformance float64
	WithoutFriends               int // students with zero same-class friends
	UnwantedMatches               int // separation pairs landing in this class
}

// Record is the full evaluation of one assignment.
type Record struct {
	Feasible           bool
	HardViolations      []HardViolation
	FriendshipScore     float64 // fraction of friendships satisfied, 0..1
	GenderBalanceScore  float64
	AcademicBalanceScore float64
	BehaviorBalanceScore float64
	ClusterScore        float64
	OverallScore        float64
	Classes             []ClassSummary
}

// Evaluate computes the full Record for an assignment. It never
// mutates its inputs and never returns an error: an infeasible
// assignment is a valid Record with Feasible=false and a non-empty
// HardViolations. The evaluator reports, it does not reject.
func Evaluate(r *roster.Roster, a engine.Assignment, k int, w engine.Weights) Record {
	violations := hardViolations(r, a, k)

	friendSat, totalFriendships := friendshipSatisfaction(r, a)
	genderDev := balanceDeviation(r, a, k, genderMetric)
	academicDev := balanceDeviation(r, a, k, academicMetric)
	behaviorDev := balanceDeviation(r, a, k, behaviorMetric)
	clusterScore := clusterCohesionScore(r, a)

	friendshipScore := 1.0
	if totalFriendships > 0 {
		friendshipScore = friendSat / float64(totalFriendships)
	}

	overall := 100.0
	if hasViolationKind(violations, "friend_present") {
		overall -= 20
	}
	if hasViolationKind(violations, "separation") {
		overall -= 20
	}
	if hasViolationKind(violations, "cluster_cohesion") {
		overall -= 20
	}
	overall -= softPenalty(w, 1-friendshipScore, genderDev, academicDev, behaviorDev, 1-clusterScore)
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return Record{
		Feasible:             len(violations) == 0,
		HardViolations:       violations,
		FriendshipScore:      friendshipScore,
		GenderBalanceScore:   1 - genderDev,
		AcademicBalanceScore: 1 - academicDev,
		BehaviorBalanceScore: 1 - behaviorDev,
		ClusterScore:         clusterScore,
		OverallScore:         overall,
		Classes:              Summarize(r, a, k),
	}
}

func hasViolationKind(violations []HardViolation, kind string) bool {
	for _, v := range violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// softPenalty weights each deviation (already normalized to [0,1],
// where 0 is ideal) by w, averages by total weight, and scales the
// result onto the same 0..100 range as the composite score so it can
// be subtracted directly.
func softPenalty(w engine.Weights, friendshipShortfall, genderDev, academicDev, behaviorDev, clusterShortfall float64) float64 {
	total := w.Friendship + w.Gender + w.Academic + w.Behavior + w.Cluster
	if total == 0 {
		return 0
	}
	weighted := w.Friendship*friendshipShortfall +
		w.Gender*genderDev +
		w.Academic*academicDev +
		w.Behavior*behaviorDev +
		w.Cluster*clusterShortfall
	return weighted / total * 100
}

func hardViolations(r *roster.Roster, a engine.Assignment, k int) []HardViolation {
	var out []HardViolation
	n := r.Len()

	for pair := range r.Seps {
		i, j := pair[0], pair[1]
		if a[i] == a[j] {
			out = append(out, HardViolation{Kind: "separation", StudentName: r.Students[i].Name, OtherName: r.Students[j].Name, Class: a[i]})
		}
	}

	for i := 0; i < n; i++ {
		satisfied := len(r.Graph[i]) == 0
		for _, nb := range r.Graph[i] {
			if a[nb] == a[i] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			out = append(out, HardViolation{Kind: "friend_present", StudentName: r.Students[i].Name, Class: a[i]})
		}
	}

	sizes := make([]int, k)
	for _, c := range a {
		sizes[c]++
	}
	floor, ceil := n/k, (n+k-1)/k
	for c, sz := range sizes {
		if sz < floor || sz > ceil {
			out = append(out, HardViolation{Kind: "class_size", Class: c})
		}
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
				}
			}
		}
		if separated {
			continue // a cluster with an internal separation pair is soft, not hard
		}
		first := a[members[0]]
		for _, m := range members[1:] {
			if a[m] != first {
				out = append(out, HardViolation{Kind: "cluster_cohesion", StudentName: r.Students[m].Name, Class: a[m]})
			}
		}
	}

	return out
}

func friendshipSatisfaction(r *roster.Roster, a engine.Assignment) (satisfied float64, total int) {
	for i := range r.Students {
		for _, nb := range r.Graph[i] {
			if nb <= i {
				continue
			}
			total++
			if a[nb] == a[i] {
				satisfied++
			}
		}
	}
	return satisfied, total
}

type metricFn func(s roster.Student) float64

func genderMetric(s roster.Student) float64 {
	if s.Gender == roster.Male {
		return 1
	}
	return 0
}

func academicMetric(s roster.Student) float64 { return float64(s.Academic.Score()) }
func behaviorMetric(s roster.Student) float64 { return float64(s.Behavior.Score()) }

// balanceDeviation returns the normalized spread of a per-student
// metric's class means around the roster-wide mean, in [0,1], where 0
// is perfectly balanced. It mirrors the Python evaluator's
// coefficient-of-variation style balance score, simplified to the
// average absolute deviation of the non-empty classes' means divided
// by the roster-wide mean, capped at 1.
func balanceDeviation(r *roster.Roster, a engine.Assignment, k int, metric metricFn) float64 {
	sums := make([]float64, k)
	counts := make([]int, k)
	var total float64
	for i, s := range r.Students {
		v := metric(s)
		sums[a[i]] += v
		counts[a[i]]++
		total += v
	}
	n := float64(r.Len())
	if n == 0 {
		return 0
	}
	overallMean := total / n

	var spread float64
	active := 0
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		active++
		classMean := sums[c] / float64(counts[c])
		d := classMean - overallMean
		if d < 0 {
			d = -d
		}
		spread += d
	}
	if active == 0 || overallMean == 0 {
		return 0
	}
	dev := spread / float64(active) / overallMean
	if dev > 1 {
		dev = 1
	}
	return dev
}

// clusterCohesionScore is 1.0 when every cluster of two or more
// students ended up entirely in one class, degrading toward 0 as more
// clusters are split across classes. Clusters with an internal
// separation pair are counted like any other.
func clusterCohesionScore(r *roster.Roster, a engine.Assignment) float64 {
	total, intact := 0, 0
	for _, cid := range r.ClusterIDs() {
		members := r.Clusters[cid]
		if len(members) <= 1 {
			continue
		}
		total++
		first := a[members[0]]
		ok := true
		for _, m := range members[1:] {
			if a[m] != first {
				ok = false
				break
			}
		}
		if ok {
			intact++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(intact) / float64(total)
}

// Summarize builds the per-class rollup: size, gender/academic/
// behavioral composition, students with no same-class friend, and
// separation pairs that still landed in the same class.
func Summarize(r *roster.Roster, a engine.Assignment, k int) []ClassSummary {
	classes := a.Classes(k)
	out := make([]ClassSummary, k)
	for c := 0; c < k; c++ {
		members := classes[c]
		summary := ClassSummary{Class: c, StudentsCount: len(members)}
		var academicSum, behaviorSum int
		for _, i := range members {
			s := r.Students[i]
			if s.Gender == roster.Male {
				summary.MalesCount++
			}
			academicSum += s.Academic.Score()
			behaviorSum += s.Behavior.Score()

			hasFriendHere := false
			for _, nb := range r.Graph[i] {
				if a[nb] == c {
					hasFriendHere = true
					break
				}
			}
			if !hasFriendHere {
				summary.WithoutFriends++
			}

			for _, j := range members {
				if j > i && r.Separated(i, j) {
					summary.UnwantedMatches++
				}
			}
		}
		if summary.StudentsCount > 0 {
			summary.AverageAcademicPerformance = float64(academicSum) / float64(summary.StudentsCount)
			summary.AverageBehaviouralPerformance = float64(behaviorSum) / float64(summary.StudentsCount)
		}
		out[c] = summary
	}
	return out
}
