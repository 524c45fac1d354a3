package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"quiz-trainer/internal/models"
	"quiz-trainer/internal/repository"
	"quiz-trainer/internal/service"
	"quiz-trainer/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestHub(t *testing.T) (*Hub, *service.QuizService) {
	t.Helper()
	repo := repository.NewStateRepository(cache.NewMemoryStore(), "")
	svc := service.NewQuizService(repo, nil, nil, 0)
	require.NoError(t, svc.SetQuestions(context.Background(), []models.Question{
		{
			ID: "1", Type: "single", Question: "2+2?", Score: 1,
			Options: []models.Option{{Key: "A", Value: "3"}, {Key: "B", Value: "4"}},
			Answer:  models.Answer{"B"},
		},
	}))
	return NewHub(svc), svc
}

func next(t *testing.T, c *Client) received {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg received
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("no message queued")
		return received{}
	}
}

func send(h *Hub, c *Client, msgType MessageType, payload any) {
	h.handleClientMessage(context.Background(), &ClientMessage{
		Client:  c,
		Message: Message{Type: msgType, Payload: payload},
	})
}

func TestHubDrivesSession(t *testing.T) {
	h, svc := newTestHub(t)
	c := NewClient(h, nil, "tab-1")
	h.registerClient(c)
	assert.Empty(t, c.Send)

	send(h, c, MessageTypeStart, map[string]any{"mode": "random"})
	msg := next(t, c)
	require.Equal(t, MessageTypeQuestion, msg.Type)
	var question QuestionPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &question))
	assert.Equal(t, models.QuestionID("1"), question.Question.ID)
	assert.Equal(t, 1, question.TotalQuestions)
	assert.NotContains(t, string(msg.Payload), `"answer"`)

	send(h, c, MessageTypeAnswer, map[string]any{"answer": "A"})
	msg = next(t, c)
	require.Equal(t, MessageTypeAnswerResult, msg.Type)
	var result AnswerResultPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &result))
	assert.False(t, result.IsCorrect)
	assert.Equal(t, models.Answer{"B"}, result.CorrectAnswer)

	send(h, c, MessageTypeNext, nil)
	msg = next(t, c)
	require.Equal(t, MessageTypeQuizFinished, msg.Type)
	var finished QuizFinishedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &finished))
	assert.Equal(t, 1, finished.Summary.Answered)
	assert.Zero(t, finished.CorrectRate)

	assert.Len(t, svc.WrongQuestions(), 1)
}

func TestHubReportsErrorsToSenderOnly(t *testing.T) {
	h, _ := newTestHub(t)
	sender := NewClient(h, nil, "tab-1")
	other := NewClient(h, nil, "tab-2")
	h.registerClient(sender)
	h.registerClient(other)

	send(h, sender, MessageTypeStart, map[string]any{"mode": "wrong"})
	msg := next(t, sender)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Empty(t, other.Send)

	send(h, sender, MessageTypeAnswer, map[string]any{"answer": []string{"A"}})
	assert.Equal(t, MessageTypeError, next(t, sender).Type)

	send(h, sender, MessageTypeFinish, nil)
	assert.Equal(t, MessageTypeError, next(t, sender).Type)

	send(h, sender, "shout", nil)
	assert.Equal(t, MessageTypeError, next(t, sender).Type)

	send(h, sender, MessageTypePing, nil)
	assert.Equal(t, MessageTypePong, next(t, sender).Type)
	assert.Empty(t, other.Send)
}

func TestHubBroadcastsAndCatchesUpNewClients(t *testing.T) {
	h, _ := newTestHub(t)
	first := NewClient(h, nil, "tab-1")
	h.registerClient(first)

	send(h, first, MessageTypeStart, map[string]any{"mode": "random"})
	assert.Equal(t, MessageTypeQuestion, next(t, first).Type)

	late := NewClient(h, nil, "tab-2")
	h.registerClient(late)
	assert.Equal(t, MessageTypeQuestion, next(t, late).Type)

	send(h, first, MessageTypeFinish, nil)
	assert.Equal(t, MessageTypeQuizFinished, next(t, first).Type)
	assert.Equal(t, MessageTypeQuizFinished, next(t, late).Type)

	h.unregisterClient(late)
	h.unregisterClient(late)
	assert.Equal(t, 1, h.ClientCount())
}

func TestHubShutdownReleasesClients(t *testing.T) {
	h, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := NewClient(h, nil, "tab-1")
	h.Register <- c
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.Zero(t, h.ClientCount())
	select {
	case <-h.Done():
	default:
		t.Fatal("hub done channel still open")
	}
	select {
	case <-c.done:
	default:
		t.Fatal("client not released")
	}
	assert.NotPanics(t, func() { c.SendError("Invalid message format") })
}

func TestSendAfterUnregisterDoesNotPanic(t *testing.T) {
	h, _ := newTestHub(t)
	c := NewClient(h, nil, "tab-1")
	h.registerClient(c)
	h.unregisterClient(c)

	assert.NotPanics(t, func() {
		for i := 0; i < 300; i++ {
			c.SendMessage(MessageTypePong, nil)
		}
	})
}
