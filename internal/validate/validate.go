// Package validate runs the hard preconditions required before any
// solver is invoked. Checks are ordered; the first failure
// short-circuits the pipeline with a structured error.
package validate

import (
	"slices"
	"sort"

	"github.com/nlevy/classrooms-go/internal/apperrors"
	"github.com/nlevy/classrooms-go/internal/roster"
)

// Config carries the validator's configurable lower bound on class
// size.
type Config struct {
	MinClassSize int
}

// DefaultConfig returns a minimum class size of 2.
func DefaultConfig() Config {
	return Config{MinClassSize: 2}
}

// Validate runs the seven ordered checks and, if all pass, builds and
// returns the Roster. On failure it returns the first violated
// precondition as an *apperrors.Error; no partial roster is returned.
func Validate(raw []roster.RawStudent, k int, cfg Config) (*roster.Roster, []roster.Warning, error) {
	if len(raw) == 0 {
		return nil, nil, apperrors.New(apperrors.ErrEmptyStudentData, map[string]any{"count": 0}, "student data is empty")
	}

	if err := checkRequiredFields(raw); err != nil {
		return nil, nil, err
	}

	if err := checkDuplicateNames(raw); err != nil {
		return nil, nil, err
	}

	if err := checkClassCount(len(raw), k, cfg); err != nil {
		return nil, nil, err
	}

	if err := checkEveryoneHasFriends(raw); err != nil {
		return nil, nil, err
	}

	names := make(map[string]bool, len(raw))
	for _, s := range raw {
		names[s.Name] = true
	}
	if err := checkKnownFriends(raw, names); err != nil {
		return nil, nil, err
	}

	r, warnings := roster.NewRoster(raw)

	if err := checkNoIsolatedStudents(r); err != nil {
		return nil, warnings, err
	}

	return r, warnings, nil
}

func checkRequiredFields(raw []roster.RawStudent) error {
	var missing []string
	seen := map[string]bool{}
	for _, s := range raw {
		if s.Name == "" && !seen["name"] {
			missing = append(missing, "name")
			seen["name"] = true
		}
		if !s.Gender.Valid() && !seen["gender"] {
			missing = append(missing, "gender")
			seen["gender"] = true
		}
		if !s.Academic.Valid() && !seen["academic"] {
			missing = append(missing, "academic")
			seen["academic"] = true
		}
		if !s.Behavior.Valid() && !seen["behavior"] {
			missing = append(missing, "behavior")
			seen["behavior"] = true
		}
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.ErrMissingRequiredFields, map[string]any{"fields": missing}, "missing required student fields")
	}
	return nil
}

func checkDuplicateNames(raw []roster.RawStudent) error {
	counts := map[string]int{}
	for _, s := range raw {
		counts[s.Name]++
	}
	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return apperrors.New(apperrors.ErrDuplicateStudentNames, map[string]any{"duplicates": dups}, "duplicate student names")
	}
	return nil
}

func checkClassCount(n, k int, cfg Config) error {
	if k <= 0 {
		return apperrors.New(apperrors.ErrInvalidClassCount, map[string]any{"classCount": k}, "class count must be positive")
	}
	if k > n {
		return apperrors.New(apperrors.ErrTooManyClasses, map[string]any{"classCount": k, "studentCount": n}, "too many classes for student count")
	}
	minSize := cfg.MinClassSize
	if minSize <= 0 {
		minSize = DefaultConfig().MinClassSize
	}
	if n/k < minSize {
		return apperrors.New(apperrors.ErrClassSizeTooSmall, map[string]any{"minSize": n / k, "classCount": k, "studentCount": n}, "minimum class size too small")
	}
	return nil
}

// checkEveryoneHasFriends rejects only a raw Friends list that is
// empty outright. A list holding nothing but self-references or
// dangling names still passes here: a dangling name is then rejected
// by checkKnownFriends as UNKNOWN_FRIEND, and a self-reference-only
// list resolves to ISOLATED_STUDENTS once checkNoIsolatedStudents
// sees the resulting zero-degree node.
func checkEveryoneHasFriends(raw []roster.RawStudent) error {
	for _, s := range raw {
		if len(s.Friends) == 0 {
			return apperrors.New(apperrors.ErrStudentNoFriends, map[string]any{"studentName": s.Name}, "student has no friends listed")
		}
	}
	return nil
}

func checkKnownFriends(raw []roster.RawStudent, names map[string]bool) error {
	for _, s := range raw {
		for _, f := range s.Friends {
			if f == "" || f == s.Name {
				continue
			}
			if !names[f] {
				return apperrors.New(apperrors.ErrUnknownFriend, map[string]any{"studentName": s.Name, "friendName": f}, "unknown friend reference")
			}
		}
		if s.NotWith != nil && *s.NotWith != "" && *s.NotWith != s.Name && !names[*s.NotWith] {
			return apperrors.New(apperrors.ErrUnknownFriend, map[string]any{"studentName": s.Name, "friendName": *s.NotWith}, "unknown not-with reference")
		}
	}
	return nil
}

func checkNoIsolatedStudents(r *roster.Roster) error {
	var isolated []string
	for i, s := range r.Students {
		if r.Degree(i) == 0 {
			isolated = append(isolated, s.Name)
		}
	}
	if len(isolated) > 0 {
		slices.Sort(isolated)
		return apperrors.New(apperrors.ErrIsolatedStudents, map[string]any{"students": isolated}, "students with no valid friendships")
	}
	return nil
}
