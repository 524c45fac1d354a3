package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"quiz-trainer/internal/models"
	"quiz-trainer/internal/service"
	"quiz-trainer/internal/session"
)

type QuizService interface {
	StartQuiz(ctx context.Context, mode string) (models.Question, error)
	SubmitAnswer(ctx context.Context, answer models.Answer) (models.AnswerResult, error)
	NextQuestion(ctx context.Context) (service.NextResult, error)
	FinishQuiz(ctx context.Context) (models.Summary, error)
	CurrentQuestion() (models.Question, bool)
	Progress() *models.Progress
	Stats() models.StatsReport
}

type ClientMessage struct {
	Client  *Client
	Message Message
}

// Hub routes client intents to the quiz service one at a time. Session
// updates go to every connected client so open tabs stay in step; errors
// and pongs go only to the sender.
type Hub struct {
	clients       map[*Client]bool
	Register      chan *Client
	Unregister    chan *Client
	HandleMessage chan *ClientMessage

	service QuizService

	done chan struct{}
	mu   sync.RWMutex
}

func NewHub(svc QuizService) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		HandleMessage: make(chan *ClientMessage),
		service:       svc,
		done:          make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case clientMsg := <-h.HandleMessage:
			h.handleClientMessage(ctx, clientMsg)

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// Done is closed once Run has stopped accepting clients and messages.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	log.Printf("Client registered: %s", client.ID)

	// A connection opened mid-session picks up where the learner left off.
	if q, ok := h.service.CurrentQuestion(); ok {
		client.SendMessage(MessageTypeQuestion, h.questionPayload(q))
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
		log.Printf("Client unregistered: %s", client.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
}

func (h *Hub) handleClientMessage(ctx context.Context, clientMsg *ClientMessage) {
	client := clientMsg.Client
	msg := clientMsg.Message

	switch msg.Type {
	case MessageTypeStart:
		h.handleStart(ctx, client, msg.Payload)

	case MessageTypeAnswer:
		h.handleAnswer(ctx, client, msg.Payload)

	case MessageTypeNext:
		h.handleNext(ctx, client)

	case MessageTypeFinish:
		h.handleFinish(ctx, client)

	case MessageTypePing:
		client.SendMessage(MessageTypePong, nil)

	default:
		client.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func decodePayload(payload any, dst any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(payloadBytes, dst)
}

func (h *Hub) handleStart(ctx context.Context, client *Client, payload any) {
	var start StartPayload
	if err := decodePayload(payload, &start); err != nil {
		client.SendError("Invalid start_quiz format")
		return
	}

	q, err := h.service.StartQuiz(ctx, start.Mode)
	if err != nil {
		log.Printf("Failed to start quiz: %v", err)
		client.SendError(err.Error())
		return
	}

	h.broadcast(MessageTypeQuestion, h.questionPayload(q))
}

func (h *Hub) handleAnswer(ctx context.Context, client *Client, payload any) {
	var answer AnswerPayload
	if err := decodePayload(payload, &answer); err != nil {
		client.SendError("Invalid answer format")
		return
	}

	result, err := h.service.SubmitAnswer(ctx, answer.Answer)
	if errors.Is(err, session.ErrNoCurrentQuestion) {
		client.SendError(err.Error())
		return
	}
	if err != nil {
		log.Printf("Failed to save answer: %v", err)
	}

	h.broadcast(MessageTypeAnswerResult, AnswerResultPayload{
		QuestionID:    result.QuestionID,
		IsCorrect:     result.IsCorrect,
		CorrectAnswer: result.CorrectAnswer,
		Explanation:   result.Explanation,
	})
}

func (h *Hub) handleNext(ctx context.Context, client *Client) {
	next, err := h.service.NextQuestion(ctx)
	if err != nil && !next.Finished {
		client.SendError(err.Error())
		return
	}
	if err != nil {
		log.Printf("Failed to save finished session: %v", err)
	}

	if next.Finished {
		h.broadcastFinished(*next.Summary)
		return
	}
	h.broadcast(MessageTypeQuestion, h.questionPayload(*next.Question))
}

func (h *Hub) handleFinish(ctx context.Context, client *Client) {
	summary, err := h.service.FinishQuiz(ctx)
	if errors.Is(err, session.ErrNoActiveSession) {
		client.SendError(err.Error())
		return
	}
	if err != nil {
		log.Printf("Failed to save finished session: %v", err)
	}

	h.broadcastFinished(summary)
}

func (h *Hub) broadcastFinished(summary models.Summary) {
	h.broadcast(MessageTypeQuizFinished, QuizFinishedPayload{
		Summary:     summary,
		CorrectRate: h.service.Stats().CorrectRate,
	})
}

func (h *Hub) questionPayload(q models.Question) QuestionPayload {
	payload := QuestionPayload{Question: newQuestionData(q)}
	if p := h.service.Progress(); p != nil {
		payload.QuestionIndex = p.CurrentQuestionIndex
		payload.TotalQuestions = len(p.CurrentQuizQuestions)
		payload.Mode = p.CurrentMode
	}
	return payload
}

func (h *Hub) broadcast(msgType MessageType, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.SendMessage(msgType, payload)
	}
}
