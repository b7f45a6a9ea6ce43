package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRaw() []RawStudent {
	notWithD := "D"
	cluster := 1
	return []RawStudent{
		{Name: "A", Gender: Male, Academic: High, Behavior: Medium, Friends: []string{"B", "B", "A"}},
		{Name: "B", Gender: Female, Academic: Medium, Behavior: Medium, Friends: []string{"A"}},
		{Name: "C", Gender: Male, Academic: Low, Behavior: High, Friends: []string{"B"}, NotWith: &notWithD},
		{Name: "D", Gender: Female, Academic: Low, Behavior: Low, Friends: []string{"C"}, ClusterID: &cluster},
		{Name: "E", Gender: Male, Academic: High, Behavior: High, Friends: []string{"D", "ghost"}, ClusterID: &cluster},
	}
}

func TestNormalizeStripsDuplicatesAndSelfReferences(t *testing.T) {
	r, _ := NewRoster(sampleRaw())
	a, _ := r.IndexOf("A")
	assert.Equal(t, []string{"B"}, r.Students[a].Friends)
}

func TestNewRosterSymmetricClosure(t *testing.T) {
	r, _ := NewRoster(sampleRaw())
	a, _ := r.IndexOf("A")
	b, _ := r.IndexOf("B")
	assert.Contains(t, r.Graph[a], b)
	assert.Contains(t, r.Graph[b], a)
}

func TestNewRosterWarnsOnUnknownFriend(t *testing.T) {
	_, warnings := NewRoster(sampleRaw())
	require.Len(t, warnings, 1)
	assert.Equal(t, "UNKNOWN_FRIEND", warnings[0].Code)
	assert.Equal(t, "E", warnings[0].StudentName)
	assert.Equal(t, "ghost", warnings[0].FriendName)
}

func TestNormalizeCapsFriendsAtFourAndWarns(t *testing.T) {
	raw := []RawStudent{
		{Name: "A", Gender: Male, Academic: High, Behavior: Medium, Friends: []string{"B", "C", "D", "E", "F"}},
		{Name: "B", Gender: Female, Academic: Medium, Behavior: Medium, Friends: []string{"A"}},
		{Name: "C", Gender: Female, Academic: Medium, Behavior: Medium, Friends: []string{"A"}},
		{Name: "D", Gender: Female, Academic: Medium, Behavior: Medium, Friends: []string{"A"}},
		{Name: "E", Gender: Female, Academic: Medium, Behavior: Medium, Friends: []string{"A"}},
		{Name: "F", Gender: Female, Academic: Medium, Behavior: Medium, Friends: []string{"A"}},
	}
	r, warnings := NewRoster(raw)
	a, _ := r.IndexOf("A")
	assert.Len(t, r.Students[a].Friends, maxFriends)

	found := false
	for _, w := range warnings {
		if w.Code == "TOO_MANY_FRIENDS" && w.StudentName == "A" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSeparatedIsSymmetric(t *testing.T) {
	r, _ := NewRoster(sampleRaw())
	c, _ := r.IndexOf("C")
	d, _ := r.IndexOf("D")
	a, _ := r.IndexOf("A")
	b, _ := r.IndexOf("B")
	assert.True(t, r.Separated(c, d))
	assert.True(t, r.Separated(d, c))
	assert.False(t, r.Separated(a, b))
}

func TestClusterIDsSorted(t *testing.T) {
	r, _ := NewRoster(sampleRaw())
	assert.Equal(t, []int{1}, r.ClusterIDs())
	assert.Len(t, r.Clusters[1], 2)
}

func TestDegreeMatchesGraph(t *testing.T) {
	r, _ := NewRoster(sampleRaw())
	a, _ := r.IndexOf("A")
	assert.Equal(t, len(r.Graph[a]), r.Degree(a))
}

func TestLevelScore(t *testing.T) {
	assert.Equal(t, 1, Low.Score())
	assert.Equal(t, 2, Medium.Score())
	assert.Equal(t, 3, High.Score())
	assert.Equal(t, 0, Level("bogus").Score())
}

func TestGenderAndLevelValid(t *testing.T) {
	assert.True(t, Male.Valid())
	assert.True(t, Female.Valid())
	assert.False(t, Gender("OTHER").Valid())
	assert.True(t, High.Valid())
	assert.False(t, Level("").Valid())
}
