package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlevy/classrooms-go/internal/apperrors"
	"github.com/nlevy/classrooms-go/internal/roster"
)

func pair(a, b string) []roster.RawStudent {
	return []roster.RawStudent{
		{Name: a, Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{b}},
		{Name: b, Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{a}},
	}
}

func TestValidateRejectsEmptyRoster(t *testing.T) {
	_, _, err := Validate(nil, 2, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyStudentData))
}

func TestValidateRejectsMissingFields(t *testing.T) {
	raw := []roster.RawStudent{{Name: "A", Friends: []string{"B"}}, {Name: "B", Friends: []string{"A"}}}
	_, _, err := Validate(raw, 1, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingRequiredFields))
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	raw := pair("A", "B")
	raw = append(raw, raw[0])
	_, _, err := Validate(raw, 1, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateStudentNames))
}

func TestValidateRejectsTooManyClasses(t *testing.T) {
	_, _, err := Validate(pair("A", "B"), 5, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTooManyClasses))
}

func TestValidateRejectsClassSizeTooSmall(t *testing.T) {
	raw := append(pair("A", "B"), pair("C", "D")...)
	_, _, err := Validate(raw, 2, Config{MinClassSize: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrClassSizeTooSmall))
}

func TestValidateRejectsStudentWithNoFriends(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
	}
	_, _, err := Validate(raw, 1, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStudentNoFriends))
}

func TestValidateRejectsUnknownFriend(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"ghost"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
	}
	_, _, err := Validate(raw, 1, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownFriend))
}

func TestValidateRejectsStudentWithOnlySelfReference(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"A"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"C"}},
		{Name: "C", Gender: roster.Male, Academic: roster.Low, Behavior: roster.Low, Friends: []string{"B"}},
	}
	_, _, err := Validate(raw, 1, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIsolatedStudents))
}

func TestCheckNoIsolatedStudentsCatchesZeroDegree(t *testing.T) {
	raw := []roster.RawStudent{
		{Name: "A", Gender: roster.Male, Academic: roster.High, Behavior: roster.Medium, Friends: []string{"B"}},
		{Name: "B", Gender: roster.Female, Academic: roster.Medium, Behavior: roster.Medium, Friends: []string{"A"}},
		{Name: "C", Gender: roster.Male, Academic: roster.Low, Behavior: roster.Low},
	}
	r, _ := roster.NewRoster(raw)
	err := checkNoIsolatedStudents(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIsolatedStudents))
}

func TestValidateAcceptsWellFormedRoster(t *testing.T) {
	r, warnings, err := Validate(pair("A", "B"), 1, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 2, r.Len())
}
