package apperrors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsSentinelWithCodeAndParams(t *testing.T) {
	err := New(ErrTooManyClasses, map[string]any{"classCount": 5, "studentCount": 4}, "too many classes")
	assert.Equal(t, "TOO_MANY_CLASSES", err.Code)
	assert.Equal(t, 5, err.Params["classCount"])
	assert.True(t, errors.Is(err, ErrTooManyClasses))
}

func TestNewDefaultsMessageToSentinelText(t *testing.T) {
	err := New(ErrInternal, nil, "")
	assert.Equal(t, ErrInternal.Error(), err.Message)
	assert.NotNil(t, err.Params)
}

func TestNewPanicsOnUnregisteredSentinel(t *testing.T) {
	assert.Panics(t, func() {
		New(errors.New("not registered"), nil, "")
	})
}

func TestMarshalJSONProducesErrorEnvelope(t *testing.T) {
	err := New(ErrClassSizeTooSmall, map[string]any{"minSize": 2}, "class size too small")
	b, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "CLASS_SIZE_TOO_SMALL", decoded["error"]["code"])
	assert.Equal(t, "class size too small", decoded["error"]["message"])
}

func TestErrorStringIncludesCode(t *testing.T) {
	err := New(ErrNoSolutionFound, nil, "no feasible assignment")
	assert.Contains(t, err.Error(), "NO_SOLUTION_FOUND")
	assert.Contains(t, err.Error(), "no feasible assignment")
}
