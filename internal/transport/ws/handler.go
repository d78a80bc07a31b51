package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-competition-service/internal/app"
	"trivia-competition-service/internal/domain"
)

// Handler upgrades HTTP requests to websockets, joins each connection to its
// audience room and translates inbound commands into engine operations.
type Handler struct {
	registry *app.Registry
	hub      *Hub
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

func NewHandler(registry *app.Registry, hub *Hub, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		registry: registry,
		hub:      hub,
		log:      log,
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

type startQuestionPayload struct {
	QuestionID string `json:"questionId"`
}

type submitAnswerPayload struct {
	Text          string `json:"text"`
	TimeRemaining *int   `json:"timeRemaining"`
}

type manualGradePayload struct {
	AnswerID string `json:"answerId"`
	Correct  bool   `json:"correct"`
	Points   int    `json:"points"`
}

type bulkGradePayload struct {
	AnswerIDs []string `json:"answerIds"`
	Correct   bool     `json:"correct"`
	Points    int      `json:"points"`
}

type actionResult struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Error   string `json:"error,omitempty"`
}

type moderatorInit struct {
	Questions   []domain.Question         `json:"questions"`
	Contestants []domain.Contestant       `json:"contestants"`
	Snapshot    domain.Snapshot           `json:"gameState"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type spectatorInit struct {
	Contestants []domain.Contestant       `json:"contestants"`
	Snapshot    domain.Snapshot           `json:"gameState"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	Quote       string                    `json:"quote,omitempty"`
}

type contestantInit struct {
	Contestant domain.Contestant `json:"contestant"`
	Snapshot   domain.Snapshot   `json:"gameState"`
}

// ServeWS is the single websocket endpoint. Query parameters select the
// competition and the audience role; contestants additionally identify
// themselves with name and tableNo.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	competitionID := r.URL.Query().Get("competitionId")
	role := domain.Audience(r.URL.Query().Get("role"))
	if competitionID == "" || !validRole(role) {
		http.Error(w, "missing competitionId or invalid role", http.StatusBadRequest)
		return
	}

	var name string
	var tableNo int
	if role == domain.AudienceContestant {
		name = r.URL.Query().Get("name")
		var err error
		tableNo, err = strconv.Atoi(r.URL.Query().Get("tableNo"))
		if name == "" || err != nil {
			http.Error(w, "contestants need name and tableNo", http.StatusBadRequest)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	game := h.registry.GetOrCreate(competitionID)

	c := newClient(conn)
	go c.writePump(h.log)
	defer c.close()

	h.hub.register(competitionID, role, c)
	defer h.hub.unregister(competitionID, role, c)

	var contestantID string
	if role == domain.AudienceContestant {
		contestant, err := game.RegisterContestant(ctx, name, tableNo)
		if err != nil {
			c.enqueue(domain.Event{Type: "error", Payload: actionResult{Action: "register", Error: err.Error()}})
			return
		}
		contestantID = contestant.ID
		defer game.MarkContestantOffline(context.Background(), contestantID)
		c.enqueue(domain.Event{Type: domain.EventInit, Payload: contestantInit{
			Contestant: contestant,
			Snapshot:   game.Snapshot(),
		}})
	} else {
		h.sendInit(ctx, game, role, c)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(ctx, game, role, contestantID, c, inbound)
	}
}

func (h *Handler) sendInit(ctx context.Context, game *app.Game, role domain.Audience, c *client) {
	switch role {
	case domain.AudienceModerator:
		questions, _ := game.ActiveQuestions(ctx)
		contestants, _ := game.Contestants(ctx)
		leaderboard, _ := game.Leaderboard(ctx)
		c.enqueue(domain.Event{Type: domain.EventInit, Payload: moderatorInit{
			Questions:   questions,
			Contestants: contestants,
			Snapshot:    game.Snapshot(),
			Leaderboard: leaderboard,
		}})
	case domain.AudienceSpectator:
		contestants, _ := game.Contestants(ctx)
		leaderboard, _ := game.Leaderboard(ctx)
		quote, _ := game.Quote(ctx)
		c.enqueue(domain.Event{Type: domain.EventInit, Payload: spectatorInit{
			Contestants: contestants,
			Snapshot:    game.Snapshot(),
			Leaderboard: leaderboard,
			Quote:       quote,
		}})
	default:
		c.enqueue(domain.Event{Type: domain.EventInit, Payload: game.Snapshot()})
	}
}

// dispatch routes one inbound command. Failures go back to the originating
// connection only; broadcasts happen inside the engine on success.
func (h *Handler) dispatch(ctx context.Context, game *app.Game, role domain.Audience, contestantID string, c *client, msg inboundMessage) {
	var err error

	switch {
	case role == domain.AudienceModerator && msg.Type == "start-question":
		var p startQuestionPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = game.StartQuestion(ctx, p.QuestionID)
		}
	case role == domain.AudienceModerator && msg.Type == "skip-to-lock":
		err = game.Lock(ctx)
	case role == domain.AudienceModerator && msg.Type == "go-idle":
		game.GoIdle()
	case role == domain.AudienceModerator && msg.Type == "reset-competition":
		err = game.ResetCompetition(ctx)
	case role == domain.AudienceModerator && msg.Type == "advance-step":
		_, err = game.AdvanceRevealStep(ctx)

	case role == domain.AudienceAdjudicator && msg.Type == "manual-grade":
		var p manualGradePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = game.GradeAnswer(ctx, p.AnswerID, p.Correct, p.Points)
		}
	case role == domain.AudienceAdjudicator && msg.Type == "bulk-grade":
		var p bulkGradePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = game.GradeAnswersBulk(ctx, p.AnswerIDs, p.Correct, p.Points)
		}
	case role == domain.AudienceAdjudicator && msg.Type == "commit-grading":
		err = game.CommitGrading(ctx)

	case role == domain.AudienceContestant && msg.Type == "submit-answer":
		var p submitAnswerPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			remaining := -1
			if p.TimeRemaining != nil {
				remaining = *p.TimeRemaining
			}
			err = game.SubmitAnswer(ctx, contestantID, p.Text, remaining)
		}
	case role == domain.AudienceContestant && msg.Type == "heartbeat":
		c.enqueue(domain.Event{Type: domain.EventHeartbeatAck, Payload: map[string]any{"timestamp": time.Now()}})
		return

	case role == domain.AudienceSpectator && msg.Type == "request-quote":
		var quote string
		quote, err = game.Quote(ctx)
		if err == nil {
			c.enqueue(domain.Event{Type: domain.EventQuote, Payload: domain.Quote{Text: quote}})
			return
		}

	default:
		c.enqueue(domain.Event{Type: "action-result", Payload: actionResult{
			Action: msg.Type,
			Error:  "unsupported message type for role " + string(role),
		}})
		return
	}

	result := actionResult{Success: err == nil, Action: msg.Type}
	if err != nil {
		result.Error = err.Error()
	}
	c.enqueue(domain.Event{Type: "action-result", Payload: result})
}

func validRole(role domain.Audience) bool {
	for _, a := range domain.Audiences {
		if a == role {
			return true
		}
	}
	return false
}
