package greedy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/roster"
)

// chain builds n students in a friendship chain 0-1-2-...-(n-1), which
// keeps everyone non-isolated with minimal fixture noise.
func chain(n int) []roster.RawStudent {
	names := make([]string, n)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	raw := make([]roster.RawStudent, n)
	for i, name := range names {
		var friends []string
		if i > 0 {
			friends = append(friends, names[i-1])
		}
		if i < n-1 {
			friends = append(friends, names[i+1])
		}
		gender := roster.Male
		if i%2 == 1 {
			gender = roster.Female
		}
		raw[i] = roster.RawStudent{
			Name: name, Gender: gender, Academic: roster.Medium, Behavior: roster.Medium, Friends: friends,
		}
	}
	return raw
}

func TestSolveProducesTotalAssignment(t *testing.T) {
	raw := chain(12)
	r, _ := roster.NewRoster(raw)
	s := New()

	a, _, err := s.Solve(context.Background(), r, 3, engine.SolveConfig{Weights: engine.DefaultWeights()})
	require.NoError(t, err)
	require.Len(t, a, 12)
	for _, c := range a {
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, 3)
	}
}

func TestSolveRespectsSeparation(t *testing.T) {
	raw := chain(10)
	notWith := "C"
	for i := range raw {
		if raw[i].Name == "A" {
			raw[i].NotWith = &notWith
		}
	}
	r, _ := roster.NewRoster(raw)
	s := New()

	a, _, err := s.Solve(context.Background(), r, 2, engine.SolveConfig{Weights: engine.DefaultWeights()})
	require.NoError(t, err)

	idxA, _ := r.IndexOf("A")
	idxC, _ := r.IndexOf("C")
	assert.NotEqual(t, a[idxA], a[idxC])
}

func TestSolveHonorsCohesiveCluster(t *testing.T) {
	raw := chain(12)
	cluster := 7
	for i := range raw {
		if raw[i].Name == "A" || raw[i].Name == "L" {
			raw[i].ClusterID = &cluster
		}
	}
	r, _ := roster.NewRoster(raw)
	s := New()

	a, _, err := s.Solve(context.Background(), r, 3, engine.SolveConfig{Weights: engine.DefaultWeights()})
	require.NoError(t, err)

	idxA, _ := r.IndexOf("A")
	idxL, _ := r.IndexOf("L")
	assert.Equal(t, a[idxA], a[idxL])
}

func TestSolveIsDeterministic(t *testing.T) {
	raw := chain(20)
	r, _ := roster.NewRoster(raw)

	a1, _, err1 := New().Solve(context.Background(), r, 4, engine.SolveConfig{Weights: engine.DefaultWeights()})
	require.NoError(t, err1)
	a2, _, err2 := New().Solve(context.Background(), r, 4, engine.SolveConfig{Weights: engine.DefaultWeights()})
	require.NoError(t, err2)

	assert.Equal(t, a1, a2)
}

func TestSolveRespectsContextCancellation(t *testing.T) {
	raw := chain(10)
	r, _ := roster.NewRoster(raw)
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, _, err := New().Solve(ctx, r, 2, engine.SolveConfig{Weights: engine.DefaultWeights()})
	assert.Error(t, err)
}
