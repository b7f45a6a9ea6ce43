// Package roster holds the typed, immutable representation of an
// assignment request's input students and the indexes derived from
// them: the friendship graph, the separation set, and the cluster
// partition.
package roster

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Gender is one of the two values a student may carry.
type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
)

func (g Gender) Valid() bool { return g == Male || g == Female }

// Level is a three-point scale used for both academic and behavioral
// performance.
type Level string

const (
	High   Level = "HIGH"
	Medium Level = "MEDIUM"
	Low    Level = "LOW"
)

func (l Level) Valid() bool { return l == High || l == Medium || l == Low }

// Score returns the 1..3 numeric value of a level, used by balance
// calculations in the greedy and CSO solvers.
func (l Level) Score() int {
	switch l {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	default:
		return 0
	}
}

// RawStudent is the as-received shape of one roster row, before
// normalization (deduplication of friends, self-reference removal).
// This is what ingest/httpapi decode the wire payload into.
type RawStudent struct {
	Name      string
	School    string
	Gender    Gender
	Academic  Level
	Behavior  Level
	Friends   []string
	NotWith   *string
	ClusterID *int
	Comments  string
}

// Student is the normalized, immutable record held by a Roster. Friend
// lists have had duplicates and self-references removed and are
// capped at four entries.
type Student struct {
	Name      string
	School    string
	Gender    Gender
	Academic  Level
	Behavior  Level
	Friends   []string
	NotWith   *string
	ClusterID *int
	Comments  string
}

const maxFriends = 4

// normalize strips self-references and duplicates from friends and
// not-with, and caps the friend list at maxFriends entries. The
// second return value reports whether any entries beyond the cap were
// dropped, so the caller can record it as a Warning rather than let it
// pass silently.
func normalize(raw RawStudent) (Student, bool) {
	seen := make(map[string]bool, len(raw.Friends))
	friends := make([]string, 0, len(raw.Friends))
	truncated := false
	for _, f := range raw.Friends {
		if f == "" || f == raw.Name || seen[f] {
			continue
		}
		if len(friends) >= maxFriends {
			truncated = true
			continue
		}
		seen[f] = true
		friends = append(friends, f)
	}

	notWith := raw.NotWith
	if notWith != nil && (*notWith == "" || *notWith == raw.Name) {
		notWith = nil
	}

	return Student{
		Name:      raw.Name,
		School:    raw.School,
		Gender:    raw.Gender,
		Academic:  raw.Academic,
		Behavior:  raw.Behavior,
		Friends:   friends,
		NotWith:   notWith,
		ClusterID: raw.ClusterID,
		Comments:  raw.Comments,
	}, truncated
}

// Warning records a non-fatal anomaly found while building a Roster --
// a dangling friend or not-with reference dropped during symmetric
// closure rather than silently accepted.
type Warning struct {
	Code        string
	StudentName string
	FriendName  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s -> %s", w.Code, w.StudentName, w.FriendName)
}

// Roster is the validated, immutable set of students for one
// assignment call, plus the indexes the solvers and evaluator need:
// the friendship graph, the separation set, and the cluster partition.
type Roster struct {
	Students []Student

	indexOf map[string]int
	Graph   [][]int         // adjacency list, indexed like Students
	Seps    map[[2]int]bool // separation pairs, indices ordered low,high
	Clusters map[int][]int  // clusterID -> student indices, absent IDs excluded
}

// IndexOf returns the dense index of a student name, built once at
// construction per the design note on string->index mapping.
func (r *Roster) IndexOf(name string) (int, bool) {
	i, ok := r.indexOf[name]
	return i, ok
}

// Len returns the number of students in the roster.
func (r *Roster) Len() int { return len(r.Students) }

// NewRoster builds a Roster from raw input, normalizing each student
// and then computing the friendship graph's symmetric closure, the
// separation set, and the cluster partition. Dangling friend/not-with names are dropped with a
// recorded Warning rather than causing construction to fail -- that is
// the validator's job, upstream of this call.
func NewRoster(raw []RawStudent) (*Roster, []Warning) {
	students := make([]Student, len(raw))
	var warnings []Warning
	for i, rs := range raw {
		s, truncated := normalize(rs)
		students[i] = s
		if truncated {
			warnings = append(warnings, Warning{Code: "TOO_MANY_FRIENDS", StudentName: s.Name})
		}
	}

	indexOf := make(map[string]int, len(students))
	for i, s := range students {
		indexOf[s.Name] = i
	}

	graph := make([][]int, len(students))
	hasEdge := make([]map[int]bool, len(students))
	for i := range hasEdge {
		hasEdge[i] = map[int]bool{}
	}

	addEdge := func(a, b int) {
		if a == b || hasEdge[a][b] {
			return
		}
		hasEdge[a][b] = true
		hasEdge[b][a] = true
		graph[a] = append(graph[a], b)
		graph[b] = append(graph[b], a)
	}

	for i, s := range students {
		for _, fname := range s.Friends {
			j, ok := indexOf[fname]
			if !ok {
				warnings = append(warnings, Warning{Code: "UNKNOWN_FRIEND", StudentName: s.Name, FriendName: fname})
				continue
			}
			addEdge(i, j)
		}
	}

	for i := range graph {
		slices.Sort(graph[i])
	}

	seps := map[[2]int]bool{}
	for i, s := range students {
		if s.NotWith == nil {
			continue
		}
		j, ok := indexOf[*s.NotWith]
		if !ok {
			warnings = append(warnings, Warning{Code: "UNKNOWN_FRIEND", StudentName: s.Name, FriendName: *s.NotWith})
			continue
		}
		seps[sepKey(i, j)] = true
	}

	clusters := map[int][]int{}
	for i, s := range students {
		if s.ClusterID == nil {
			continue
		}
		clusters[*s.ClusterID] = append(clusters[*s.ClusterID], i)
	}

	return &Roster{
		Students: students,
		indexOf:  indexOf,
		Graph:    graph,
		Seps:     seps,
		Clusters: clusters,
	}, warnings
}

// sepKey normalizes a pair of indices into the low,high order used as
// a map key for the separation set.
func sepKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Separated reports whether a and b form a separation pair.
func (r *Roster) Separated(a, b int) bool {
	return r.Seps[sepKey(a, b)]
}

// Degree returns the number of distinct friends a student has in the
// friendship graph after symmetric closure.
func (r *Roster) Degree(i int) int { return len(r.Graph[i]) }

// Names returns the roster's student names in index order, used to
// map an Assignment back to student names for output.
func (r *Roster) Names() []string {
	return lo.Map(r.Students, func(s Student, _ int) string { return s.Name })
}

// ClusterIDs returns the sorted set of non-absent cluster ids present
// in the roster.
func (r *Roster) ClusterIDs() []int {
	ids := lo.Keys(r.Clusters)
	slices.Sort(ids)
	return ids
}
