package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlevy/classrooms-go/internal/roster"
)

func TestFromCSVParsesFixedColumns(t *testing.T) {
	csv := "name,school,gender,academic,behavior,friends,notWith,clusterId,comments\n" +
		"Alice,Oak,female,high,medium,Bob|Carol,,1,likes art\n" +
		"Bob,Oak,male,medium,medium,Alice,,1,\n"

	students, err := FromCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, students, 2)

	alice := students[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, roster.Female, alice.Gender)
	assert.Equal(t, roster.High, alice.Academic)
	assert.Equal(t, []string{"Bob", "Carol"}, alice.Friends)
	require.NotNil(t, alice.ClusterID)
	assert.Equal(t, 1, *alice.ClusterID)
	assert.Equal(t, "likes art", alice.Comments)
	assert.Nil(t, alice.NotWith)
}

func TestFromCSVParsesNotWith(t *testing.T) {
	csv := "name,school,gender,academic,behavior,friends,notWith\n" +
		"Alice,Oak,female,high,medium,Bob,Carol\n"
	students, err := FromCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.NotNil(t, students[0].NotWith)
	assert.Equal(t, "Carol", *students[0].NotWith)
}

func TestFromCSVRejectsShortRows(t *testing.T) {
	csv := "name,school,gender,academic,behavior\nAlice,Oak,female\n"
	_, err := FromCSV(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestFromCSVEmptyInputReturnsNil(t *testing.T) {
	students, err := FromCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, students)
}

func TestFromJSONDecodesStudents(t *testing.T) {
	body := `{
		"students": [
			{"name": "Alice", "gender": "FEMALE", "academic": "high", "behavior": "medium", "friends": ["Bob"], "clusterId": 2},
			{"name": "Bob", "gender": "male", "academic": "medium", "behavior": "medium", "friends": ["Alice"], "notWith": "Carol"}
		]
	}`
	students, err := FromJSON(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, "Alice", students[0].Name)
	assert.Equal(t, roster.Female, students[0].Gender)
	require.NotNil(t, students[0].ClusterID)
	assert.Equal(t, 2, *students[0].ClusterID)

	require.NotNil(t, students[1].NotWith)
	assert.Equal(t, "Carol", *students[1].NotWith)
}

func TestFromJSONRejectsMalformedPayload(t *testing.T) {
	_, err := FromJSON(strings.NewReader("not json"))
	assert.Error(t, err)
}
