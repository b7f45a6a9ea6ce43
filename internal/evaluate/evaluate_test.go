package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/roster"
)

func buildRoster(t *testing.T) *roster.Roster {
	t.Helper()
	notWith := "D"
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"B"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
		{Name: "C", Gender: roster.Male, Academic: roster.Low, Behavior: roster.High, Friends: []string{"D"}, NotWith: &notWith},
		{Name: "D", Gender: roster.Female, Academic: roster.Low, Behavior: roster.Low, Friends: []string{"C"}},
	}
	r, _ := roster.NewRoster(raw)
	require.Equal(t, 4, r.Len())
	return r
}

func TestEvaluateFeasibleAssignmentHasNoViolations(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"B"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
		{Name: "C", Gender: roster.Male, Academic: roster.Low, Behavior: roster.High, Friends: []string{"D"}},
		{Name: "D", Gender: roster.Female, Academic: roster.Low, Behavior: roster.Low, Friends: []string{"C"}},
	}
	r, _ := roster.NewRoster(raw)
	a := engine.Assignment{0, 0, 1, 1}
	rec := Evaluate(r, a, 2, engine.DefaultWeights())
	assert.True(t, rec.Feasible)
	assert.Empty(t, rec.HardViolations)
	assert.Equal(t, 1.0, rec.FriendshipScore)
	assert.GreaterOrEqual(t, rec.OverallScore, 0.0)
	assert.LessOrEqual(t, rec.OverallScore, 100.0)
}

func TestEvaluatePerfectlyBalancedAssignmentScoresMaximum(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"B"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
		{Name: "C", Gender: roster.Male, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"D"}},
		{Name: "D", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"C"}},
	}
	r, _ := roster.NewRoster(raw)
	a := engine.Assignment{0, 0, 1, 1}
	rec := Evaluate(r, a, 2, engine.DefaultWeights())
	assert.True(t, rec.Feasible)
	assert.Equal(t, 100.0, rec.OverallScore)
}

func TestEvaluateDetectsSeparationViolation(t *testing.T) {
	r := buildRoster(t)
	a := engine.Assignment{0, 0, 1, 1} // C,D together violates their separation pair
	rec := Evaluate(r, a, 2, engine.DefaultWeights())
	assert.False(t, rec.Feasible)
	found := false
	for _, v := range rec.HardViolations {
		if v.Kind == "separation" {
			found = true
		}
	}
	assert.True(t, found)
	assert.LessOrEqual(t, rec.OverallScore, 80.0) // a separation violation costs at least 20 points
}

func TestEvaluateDetectsFriendPresentViolation(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"B"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
	}
	r, _ := roster.NewRoster(raw)
	a := engine.Assignment{0, 1}
	rec := Evaluate(r, a, 2, engine.DefaultWeights())
	assert.False(t, rec.Feasible)
	require.Len(t, rec.HardViolations, 2) // both A and B report friend_present missing
	for _, v := range rec.HardViolations {
		assert.Equal(t, "friend_present", v.Kind)
	}
}

func TestSummarizeComputesPerClassRollup(t *testing.T) {
	r := buildRoster(t)
	a := engine.Assignment{0, 0, 1, 1}
	summaries := Summarize(r, a, 2)
	require.Len(t, summaries, 2)

	class0 := summaries[0]
	assert.Equal(t, 2, class0.StudentsCount)
	assert.Equal(t, 1, class0.MalesCount)
	assert.Equal(t, 0, class0.WithoutFriends)
	assert.Equal(t, 0, class0.UnwantedMatches)

	class1 := summaries[1]
	assert.Equal(t, 2, class1.StudentsCount)
	assert.Equal(t, 1, class1.UnwantedMatches) // C,D separated but co-assigned
}

func TestSoftPenaltyIsZeroForIdealDeviations(t *testing.T) {
	assert.Equal(t, 0.0, softPenalty(engine.DefaultWeights(), 0, 0, 0, 0, 0))
}

func TestSoftPenaltyScalesToAtMost100ForWorstDeviations(t *testing.T) {
	assert.Equal(t, 100.0, softPenalty(engine.DefaultWeights(), 1, 1, 1, 1, 1))
}

func TestClusterCohesionScoreRewardsIntactClusters(t *testing.T) {
	cluster := 5
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"B"}, ClusterID: &cluster},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}, ClusterID: &cluster},
	}
	r, _ := roster.NewRoster(raw)
	assert.Equal(t, 1.0, clusterCohesionScore(r, engine.Assignment{0, 0}))
	assert.Equal(t, 0.0, clusterCohesionScore(r, engine.Assignment{0, 1}))
}
