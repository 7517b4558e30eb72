package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// Registrar records joins and leaves with the presence store and reports
// the channel a participant joined with.
type Registrar interface {
	MarkJoin(ctx context.Context, member app.Member, channel string, perms []string)
	MarkLeave(ctx context.Context, playerID string)
	ChannelOf(ctx context.Context, playerID string) (string, bool)
}

// WSHandler upgrades connections and wires them into the quiz use cases.
// Joining the socket marks presence; round broadcasts and personal
// feedback arrive through the hub.
type WSHandler struct {
	settings app.Settings
	hub      *Hub
	registry Registrar
	answers  *app.AnswerService
	rounds   *app.RoundManager
	pool     *app.QuestionPool
	stats    *app.StatsCache
	source   app.QuestionSource
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(settings app.Settings, hub *Hub, registry Registrar, answers *app.AnswerService, rounds *app.RoundManager, pool *app.QuestionPool, stats *app.StatsCache, source app.QuestionSource, log *zap.Logger) *WSHandler {
	return &WSHandler{
		settings: settings,
		hub:      hub,
		registry: registry,
		answers:  answers,
		rounds:   rounds,
		pool:     pool,
		stats:    stats,
		source:   source,
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

type answerPayload struct {
	RoundID int64  `json:"roundId"`
	Answer  string `json:"answer"`
}

type chatPayload struct {
	Message string `json:"message"`
}

type startPayload struct {
	Category   string `json:"category"`
	QuestionID string `json:"questionId"`
}

type statsPayload struct {
	Name string `json:"name"`
}

type topPayload struct {
	Metric string `json:"metric"`
	Limit  int    `json:"limit"`
}

type statsResult struct {
	PlayerName    string  `json:"playerName"`
	Plays         int64   `json:"plays"`
	Wins          int64   `json:"wins"`
	Losses        int64   `json:"losses"`
	BestStreak    int64   `json:"bestStreak"`
	CurrentStreak int64   `json:"currentStreak"`
	AverageMs     float64 `json:"averageResponseMs"`
}

// ServeWS handles one participant connection for its whole lifetime.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	member := app.Member{ID: query.Get("userId"), Name: query.Get("name")}
	channel := query.Get("channel")
	perms := strings.Fields(query.Get("perms"))
	if member.ID == "" || member.Name == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	h.registry.MarkJoin(ctx, member, channel, perms)
	defer h.registry.MarkLeave(context.Background(), member.ID)

	send := h.hub.register(member.ID)
	defer h.hub.unregister(member.ID, send)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	h.hub.Tell(member.ID, "session.joined", map[string]string{"name": member.Name})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, member, inbound)
	}

	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, member app.Member, inbound inboundMessage) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.hub.Tell(member.ID, "errors.bad-payload", nil)
			return
		}
		// Validation feedback flows through the hub; the error is advisory.
		_ = h.answers.Submit(ctx, member, payload.RoundID, payload.Answer)

	case "chat":
		var payload chatPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return
		}
		if !h.answers.ShouldCapture(member, payload.Message) {
			return
		}
		_ = h.answers.SubmitChat(ctx, member, h.answers.ExtractChatAnswer(payload.Message))

	case "start":
		var payload startPayload
		_ = json.Unmarshal(inbound.Payload, &payload)
		h.handleStart(ctx, member, payload)

	case "stop":
		if !h.rounds.FinishRound(true) {
			h.hub.Tell(member.ID, "errors.no-active-round", nil)
		}

	case "reload":
		h.handleReload(ctx, member)

	case "stats":
		var payload statsPayload
		_ = json.Unmarshal(inbound.Payload, &payload)
		h.handleStats(ctx, member, payload)

	case "top":
		var payload topPayload
		_ = json.Unmarshal(inbound.Payload, &payload)
		h.handleTop(ctx, member, payload)

	default:
		h.hub.Tell(member.ID, "errors.unsupported-type", nil)
	}
}

func (h *WSHandler) handleStart(ctx context.Context, member app.Member, payload startPayload) {
	if !h.settings.Enabled {
		h.hub.Tell(member.ID, "system.disabled", nil)
		return
	}

	var question *domain.Question
	var ok bool
	if payload.QuestionID != "" {
		question, ok = h.pool.FindByID(payload.QuestionID)
	} else {
		question, ok = h.pool.PickRandom(payload.Category)
	}
	if !ok {
		h.hub.Tell(member.ID, "system.no-questions", nil)
		return
	}

	// CHANNEL-scoped rounds anchor to the initiator's channel, falling
	// back to the configured default.
	anchor, _ := h.registry.ChannelOf(ctx, member.ID)
	if anchor == "" {
		anchor = h.settings.DefaultChannel
	}

	switch err := h.rounds.StartRound(ctx, question, anchor); err {
	case nil:
		h.hub.Tell(member.ID, "round.manual-start", nil)
	case domain.ErrRoundRunning:
		h.hub.Tell(member.ID, "errors.round-running", nil)
	default:
		h.hub.Tell(member.ID, "system.no-audience", nil)
	}
}

// handleReload re-runs the configured question source and swaps the pool.
// The current round keeps its question pointer, so a reload mid-round is safe.
func (h *WSHandler) handleReload(ctx context.Context, member app.Member) {
	questions, err := h.source(ctx)
	if err != nil {
		h.log.Warn("question reload failed", zap.Error(err))
		h.hub.Tell(member.ID, "errors.reload-failed", nil)
		return
	}
	h.pool.Reload(questions)
	h.hub.Tell(member.ID, "system.reloaded", map[string]string{
		"count": strconv.Itoa(len(questions)),
	})
}

func (h *WSHandler) handleStats(ctx context.Context, member app.Member, payload statsPayload) {
	var stats domain.PlayerStats
	var err error
	if payload.Name == "" || strings.EqualFold(payload.Name, member.Name) {
		stats, err = h.stats.GetOrLoad(ctx, member.ID, member.Name)
	} else {
		stats, err = h.stats.LoadByName(ctx, payload.Name)
	}
	if err != nil {
		h.hub.Tell(member.ID, "errors.stats-unavailable", nil)
		return
	}

	h.hub.send(member.ID, envelope{Type: "stats", Payload: statsResult{
		PlayerName:    stats.LastKnownName,
		Plays:         stats.Plays,
		Wins:          stats.Wins,
		Losses:        stats.Losses,
		BestStreak:    stats.BestStreak,
		CurrentStreak: stats.CurrentStreak,
		AverageMs:     stats.AverageResponseMs(),
	}})
}

func (h *WSHandler) handleTop(ctx context.Context, member app.Member, payload topPayload) {
	limit := payload.Limit
	if limit <= 0 {
		limit = 10
	}
	entries, err := h.stats.FetchTop(ctx, domain.ParseMetric(payload.Metric), limit)
	if err != nil {
		h.hub.Tell(member.ID, "errors.stats-unavailable", nil)
		return
	}

	h.hub.send(member.ID, envelope{Type: "leaderboard", Payload: entries})
}
