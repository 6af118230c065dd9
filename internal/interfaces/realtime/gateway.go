// Package realtime serves the websocket gateway that streams new conversation
// messages to the browser. It runs on its own net/http listener because the
// websocket upgrade needs to hijack the connection.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	authsvc "campus-market/internal/application/auth"
	convsvc "campus-market/internal/application/conversations"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Subscriber opens a message stream for a participant of a conversation.
type Subscriber interface {
	SubscribeToMessages(ctx context.Context, callerID, conversationID uuid.UUID) (<-chan convsvc.MessageView, func(), error)
}

// TicketVerifier resolves a realtime ticket to a user id.
type TicketVerifier interface {
	Verify(raw string) (uuid.UUID, error)
}

type Gateway struct {
	Conversations Subscriber
	Tickets       TicketVerifier
	// OriginAllowed gates browser origins; nil allows any origin.
	OriginAllowed func(origin string) bool

	mu      sync.Mutex
	clients map[*client]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	initOne sync.Once
}

func (g *Gateway) init() {
	g.initOne.Do(func() {
		g.clients = make(map[*client]struct{})
		g.ctx, g.cancel = context.WithCancel(context.Background())
	})
}

// Handler returns the gateway routes wrapped with CORS, panic recovery and access logging.
func (g *Gateway) Handler() http.Handler {
	g.init()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/conversations/{id}", g.serveWS)
	mux.HandleFunc("GET /realtime/health", g.health)

	var h http.Handler = mux
	h = handlers.CORS(
		handlers.AllowedOriginValidator(g.originAllowed),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
		handlers.MaxAge(3600),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(log.Logger, h)
}

func (g *Gateway) originAllowed(origin string) bool {
	if g.OriginAllowed == nil {
		return true
	}
	return g.OriginAllowed(origin)
}

// ActiveConnections reports the number of open sockets.
func (g *Gateway) ActiveConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Shutdown closes every open socket. Hijacked connections are not tracked by
// http.Server.Shutdown, so callers invoke both.
func (g *Gateway) Shutdown() {
	g.init()
	g.cancel()
	g.mu.Lock()
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (g *Gateway) remove(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "error",
		"error":  map[string]interface{}{"message": msg, "statusCode": code},
	})
}

func subscribeStatus(err error) int {
	switch {
	case errors.Is(err, convsvc.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, convsvc.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, convsvc.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, convsvc.ErrInconsistentParticipants):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// serveWS authorizes the ticket and the conversation before upgrading, so
// failures are plain HTTP errors.
func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}
	userID, err := g.Tickets.Verify(r.URL.Query().Get("ticket"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, authsvc.ErrInvalidTicket.Error())
		return
	}

	stream, unsubscribe, err := g.Conversations.SubscribeToMessages(g.ctx, userID, conversationID)
	if err != nil {
		code := subscribeStatus(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Str("conversation_id", conversationID.String()).Msg("realtime: subscribe failed")
			writeError(w, code, "Internal Server Error")
			return
		}
		writeError(w, code, err.Error())
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || g.originAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		unsubscribe()
		log.Warn().Err(err).Msg("realtime: upgrade failed")
		return
	}

	c := &client{
		conn:        conn,
		stream:      stream,
		unsubscribe: unsubscribe,
		log: log.With().
			Str("conversation_id", conversationID.String()).
			Str("user_id", userID.String()).
			Logger(),
		stop:    make(chan struct{}),
		onClose: g.remove,
	}
	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()
	c.log.Info().Msg("realtime: connected")

	go c.write()
	go c.read()
}

func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"connections": g.ActiveConnections()})
}
