package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// WSHandler streams daily challenge leaderboard updates to spectators.
type WSHandler struct {
	challenges *app.ChallengeService
	upgrader   websocket.Upgrader
}

func NewWSHandler(challenges *app.ChallengeService) *WSHandler {
	return &WSHandler{
		challenges: challenges,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes an initial leaderboard snapshot
// followed by one message per completion until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.PathValue("date"))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	challenge, err := h.challenges.Resolve(r.Context(), date)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if challenge == nil {
		http.Error(w, "no challenge for that date", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	initial, err := h.challenges.Leaderboard(r.Context(), challenge.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := h.challenges.Hub().Subscribe(challenge.ID)
	defer cancel()

	if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: initial}); err != nil {
		return
	}

	// Reader goroutine exists only to observe the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
