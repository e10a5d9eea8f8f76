package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/domain"
)

// SessionFactory builds a fresh controller for one connection.
type SessionFactory func(sessionID string) *app.Controller

type WSHandler struct {
	newSession SessionFactory
	tick       time.Duration
	upgrader   websocket.Upgrader
}

func NewWSHandler(newSession SessionFactory, tick time.Duration) *WSHandler {
	if tick <= 0 {
		tick = time.Second
	}
	return &WSHandler{
		newSession: newSession,
		tick:       tick,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type reportPayload struct {
	Name string `json:"name"`
}

type reportResult struct {
	Submitted bool   `json:"submitted"`
	Message   string `json:"message"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type questionView struct {
	ID                 int      `json:"id"`
	Text               string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correctAnswer,omitempty"`
	Explanation        string   `json:"explanation,omitempty"`
}

// stateView is what a player sees; the answer is revealed only with the result.
type stateView struct {
	SessionID       string        `json:"sessionId"`
	Phase           domain.Phase  `json:"phase"`
	CurrentIndex    int           `json:"currentIndex"`
	Total           int           `json:"total"`
	SelectedOption  *int          `json:"selectedOption"`
	Score           int           `json:"score"`
	TimeRemaining   int           `json:"timeRemaining"`
	Loading         bool          `json:"loading"`
	Error           string        `json:"error,omitempty"`
	ShowExplanation bool          `json:"showExplanation"`
	Question        *questionView `json:"question,omitempty"`
}

func newStateView(state domain.QuizState) stateView {
	view := stateView{
		SessionID:       state.SessionID,
		Phase:           state.Phase,
		CurrentIndex:    state.CurrentIndex,
		Total:           len(state.Questions),
		SelectedOption:  state.SelectedOption,
		Score:           state.Score,
		TimeRemaining:   state.TimeRemaining,
		Loading:         state.Loading,
		Error:           state.Error,
		ShowExplanation: state.ShowExplanation,
	}
	if state.Phase == domain.PhaseNotStarted || state.Phase == domain.PhaseCompleted {
		return view
	}
	question, ok := state.CurrentQuestion()
	if !ok {
		return view
	}
	qv := &questionView{ID: question.ID, Text: question.Text, Options: question.Options}
	if state.Phase == domain.PhaseShowingResult {
		correct := question.CorrectOptionIndex
		qv.CorrectOptionIndex = &correct
		if state.ShowExplanation {
			qv.Explanation = question.Explanation
		}
	}
	view.Question = qv
	return view
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	controller := h.newSession(uuid.NewString())
	defer controller.Close()

	updates, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: newStateView(update)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go h.load(ctx, controller.Load)
	go controller.RunTimer(ctx, h.tick)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var opErr error
		switch inbound.Type {
		case "start":
			opErr = controller.Start()
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				opErr = errors.New("invalid select payload")
				break
			}
			opErr = controller.SelectOption(payload.Option)
		case "submit":
			opErr = controller.Submit()
		case "next":
			opErr = controller.Next()
		case "explanation":
			opErr = controller.ToggleExplanation()
		case "reset":
			go h.load(ctx, controller.Reset)
		case "report":
			var payload reportPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				opErr = errors.New("invalid report payload")
				break
			}
			message, err := controller.Report(ctx, payload.Name)
			if errors.Is(err, domain.ErrInvalidPhase) {
				opErr = err
				break
			}
			send <- outboundMessage[any]{Type: "report", Payload: reportResult{Submitted: err == nil, Message: message}}
		default:
			opErr = errors.New("unsupported message type")
		}
		if opErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: opErr.Error()}}
		}
	}

	cancel()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) load(ctx context.Context, run func(context.Context) error) {
	err := run(ctx)
	if err != nil && !errors.Is(err, domain.ErrStaleFetch) && !errors.Is(err, context.Canceled) {
		log.Printf("load questions: %v", err)
	}
}
