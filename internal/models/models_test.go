package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionIDAcceptsNumbers(t *testing.T) {
	var ids []QuestionID
	require.NoError(t, json.Unmarshal([]byte(`[12, "q-7", 3.5]`), &ids))
	assert.Equal(t, []QuestionID{"12", "q-7", "3.5"}, ids)

	var id QuestionID
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &id))

	out, err := json.Marshal(QuestionID("12"))
	require.NoError(t, err)
	assert.JSONEq(t, `"12"`, string(out))
}

func TestAnswerWireShape(t *testing.T) {
	out, err := json.Marshal(struct {
		Single   Answer `json:"single"`
		Multiple Answer `json:"multiple"`
		Empty    Answer `json:"empty"`
	}{Answer{"B"}, Answer{"A", "C"}, nil})
	require.NoError(t, err)
	assert.JSONEq(t, `{"single":"B","multiple":["A","C"],"empty":[]}`, string(out))

	var a Answer
	require.NoError(t, json.Unmarshal([]byte(`"B"`), &a))
	assert.Equal(t, Answer{"B"}, a)
	require.NoError(t, json.Unmarshal([]byte(`["A","C"]`), &a))
	assert.Equal(t, Answer{"A", "C"}, a)
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.Nil(t, a)
	assert.Error(t, json.Unmarshal([]byte(`7`), &a))
}

func TestProgressResumable(t *testing.T) {
	questions := []Question{{ID: "1"}, {ID: "2"}}

	assert.True(t, (&Progress{CurrentQuestionIndex: 1, CurrentQuizQuestions: questions}).Resumable())
	assert.False(t, (&Progress{CurrentQuestionIndex: 2, CurrentQuizQuestions: questions}).Resumable())
	assert.False(t, (&Progress{CurrentQuestionIndex: -1, CurrentQuizQuestions: questions}).Resumable())
	assert.False(t, (&Progress{}).Resumable())
}
