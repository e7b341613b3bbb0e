package service

import (
	"errors"
	"testing"

	"lexflow-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanRecorderSuccessStep(t *testing.T) {
	recorder := NewPlanRecorder()

	result, err := recorder.Record("route", "Routing", "Score the question",
		func() (interface{}, error) { return 42, nil },
		RecordDetail(func(result interface{}) map[string]interface{} {
			return map[string]interface{}{"value": result}
		}))

	require.NoError(t, err)
	assert.Equal(t, 42, result)

	steps := recorder.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, "route", steps[0].ID)
	assert.Equal(t, models.StepSuccess, steps[0].Status)
	assert.Equal(t, 1, steps[0].Attempts)
	assert.Equal(t, 42, steps[0].Detail["value"])
	assert.False(t, steps[0].FinishedAt.Before(steps[0].StartedAt))
}

func TestPlanRecorderFailedStepPropagates(t *testing.T) {
	recorder := NewPlanRecorder()
	boom := errors.New("backend unavailable")

	result, err := recorder.Record("retrieve", "Retrieval", "Search the corpus",
		func() (interface{}, error) { return nil, boom })

	require.ErrorIs(t, err, boom)
	assert.Nil(t, result)

	steps := recorder.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Equal(t, "backend unavailable", steps[0].Detail["error"])
}

func TestPlanRecorderOptionalFailureIsSkipped(t *testing.T) {
	recorder := NewPlanRecorder()

	result, err := recorder.Record("retrieve", "Retrieval", "Search the corpus",
		func() (interface{}, error) { return nil, errors.New("timeout") },
		RecordOptional())

	require.NoError(t, err)
	assert.Nil(t, result)

	steps := recorder.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepSkipped, steps[0].Status)
	assert.Equal(t, "timeout", steps[0].Detail["error"])
}

func TestPlanRecorderOneStepPerCall(t *testing.T) {
	recorder := NewPlanRecorder()

	for i := 0; i < 3; i++ {
		_, err := recorder.Record("step", "Step", "A step",
			func() (interface{}, error) { return nil, nil })
		require.NoError(t, err)
	}

	assert.Len(t, recorder.Steps(), 3)
}

func TestPlanRecorderAmendUpdatesAttempts(t *testing.T) {
	recorder := NewPlanRecorder()

	_, err := recorder.Record("generate", "Generation", "Drive the model",
		func() (interface{}, error) { return nil, nil })
	require.NoError(t, err)

	recorder.Amend("generate", 2, map[string]interface{}{"escalated": false})

	steps := recorder.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].Attempts)
	assert.Equal(t, false, steps[0].Detail["escalated"])
}

func TestPlanRecorderAmendUnknownStepIsNoop(t *testing.T) {
	recorder := NewPlanRecorder()

	recorder.Amend("missing", 5, nil)

	assert.Empty(t, recorder.Steps())
}
