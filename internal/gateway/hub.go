package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/store"
)

// membershipChecker is the slice of guild.MembershipService the Hub needs to gate GUILD# rooms.
type membershipChecker interface {
	IsMember(ctx context.Context, userID, guildID string) (bool, error)
}

// messageStore is the slice of store.MessageRepository the Hub needs to persist chat sends.
type messageStore interface {
	Append(ctx context.Context, roomID string, m store.Message, counter int64) error
}

// room is one chat room's connection registry: every client currently joined to it, keyed by connection ID so one
// user can hold multiple simultaneous connections to the same room.
type room struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func newRoom() *room { return &room{clients: make(map[string]*Client)} }

// Hub is the process-wide WebSocket connection registry and message distributor: a room registry guarded by its own
// shard lock, a Valkey pub/sub subscription for fan-out across gateway instances, and the rate limiter and
// persistence path every inbound send goes through.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room

	rdb        *redis.Client
	publisher  *Publisher
	messages   messageStore
	limiter    *messageRateLimiter
	authorizer *auth.Authorizer
	membership membershipChecker
	log        zerolog.Logger

	// roomCounters holds a *atomic.Int64 per room: a process-local tiebreaker appended to the millisecond timestamp
	// so two sends landing in the same millisecond from this process still sort deterministically.
	roomCounters sync.Map
}

func NewHub(
	rdb *redis.Client,
	publisher *Publisher,
	messages *store.MessageRepository,
	authorizer *auth.Authorizer,
	membership membershipChecker,
	logger zerolog.Logger,
) *Hub {
	return &Hub{
		rooms:      make(map[string]*room),
		rdb:        rdb,
		publisher:  publisher,
		messages:   messages,
		limiter:    newMessageRateLimiter(rdb),
		authorizer: authorizer,
		membership: membership,
		log:        logger.With().Str("component", "gateway").Logger(),
	}
}

// Authenticate verifies the bearer token for an incoming connection and, for a GUILD#<guildId> room, the caller's
// membership in that guild. ROOM-<uuid> rooms carry no further access control beyond a valid token.
func (h *Hub) Authenticate(ctx context.Context, rawAuthHeader, roomID string) (auth.Principal, error) {
	principal, err := h.authorizer.Authorize(ctx, rawAuthHeader)
	if err != nil {
		return auth.Principal{}, err
	}

	if guildID, ok := strings.CutPrefix(roomID, "GUILD#"); ok {
		if h.membership == nil {
			return auth.Principal{}, apierrors.New(apierrors.PermissionDenied, "guild rooms require membership verification")
		}
		isMember, err := h.membership.IsMember(ctx, principal.UserID.String(), guildID)
		if err != nil {
			return auth.Principal{}, fmt.Errorf("check guild membership: %w", err)
		}
		if !isMember {
			return auth.Principal{}, apierrors.New(apierrors.PermissionDenied, "not a member of this guild")
		}
	}

	return principal, nil
}

// Run subscribes to the gateway message channel and fans incoming messages out to this process's locally connected
// clients. It blocks until the context is cancelled or the subscription fails.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.rdb.Subscribe(ctx, messagesChannel)
	defer func() { _ = sub.Close() }()

	h.log.Info().Msg("gateway hub subscribed to message channel")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.handlePubSubMessage(msg.Payload)
		}
	}
}

// ServeWebSocket registers an already-authenticated connection in roomID and runs its read/write pumps until the
// connection closes.
func (h *Hub) ServeWebSocket(conn *websocket.Conn, roomID, userID string) {
	connID := uuid.NewString()
	client := newClient(h, conn, connID, roomID, userID, h.log)

	h.register(client)

	go client.writePump()
	client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	r, ok := h.rooms[c.roomID]
	if !ok {
		r = newRoom()
		h.rooms[c.roomID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.clients[c.connID] = c
	r.mu.Unlock()

	h.log.Debug().Str("room", c.roomID).Str("conn", c.connID).Str("user", c.userID).Msg("client registered")
}

// unregister removes a client from its room, deleting the room entirely once its last client leaves so an abandoned
// room does not hold a shard lock forever.
func (h *Hub) unregister(c *Client) {
	h.mu.RLock()
	r, ok := h.rooms[c.roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.clients, c.connID)
	empty := len(r.clients) == 0
	r.mu.Unlock()

	c.closeSend()

	if empty {
		h.mu.Lock()
		if cur, ok := h.rooms[c.roomID]; ok && cur == r {
			delete(h.rooms, c.roomID)
		}
		h.mu.Unlock()
	}

	h.log.Debug().Str("room", c.roomID).Str("conn", c.connID).Msg("client unregistered")
}

// handleMessage validates, persists, and publishes one chat send. It returns false when the connection should be
// torn down (a rate-limit violation), true otherwise.
func (h *Hub) handleMessage(c *Client, text string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	allowed, err := h.limiter.Allow(ctx, c.roomID, c.userID)
	if err != nil {
		h.log.Warn().Err(err).Msg("rate limit check failed")
	} else if !allowed {
		c.enqueue(newOutboundError(string(apierrors.Throttled), "message rate limit exceeded"))
		c.closeWithCode(CloseRateLimited, "rate limit exceeded")
		return false
	}

	msg := store.Message{
		RoomID:    c.roomID,
		MessageID: uuid.NewString(),
		SenderID:  c.userID,
		Text:      text,
		SentAt:    time.Now().UTC(),
	}

	if err := h.messages.Append(ctx, c.roomID, msg, h.nextCounter(c.roomID)); err != nil {
		h.log.Warn().Err(err).Str("room", c.roomID).Msg("failed to persist message")
		c.enqueue(newOutboundError(string(apierrors.Internal), "failed to send message"))
		return true
	}

	payload := newOutboundMessage(c.roomID, msg)
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, c.roomID, payload); err != nil {
			h.log.Warn().Err(err).Str("room", c.roomID).Msg("failed to publish message")
		}
	} else {
		// No publisher configured (e.g. single-process test setup): deliver directly so the fan-out path is still
		// exercised.
		h.broadcastLocal(c.roomID, payload)
	}

	return true
}

// nextCounter returns a process-local, monotonically increasing tiebreaker for roomID. Ordering across multiple
// gateway processes serving the same room is best-effort: each process keeps its own counter, so two sends landing
// in the same millisecond from different processes are not reconciled into one global order. That is an accepted
// tradeoff for a chat room's display ordering, which tolerates an occasional swap between two near-simultaneous
// messages far better than it would tolerate the coordination cost of a single global counter.
func (h *Hub) nextCounter(roomID string) int64 {
	v, _ := h.roomCounters.LoadOrStore(roomID, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1)
}

// handlePubSubMessage fans a published message out to this process's locally connected clients in its room, if any.
func (h *Hub) handlePubSubMessage(payload string) {
	var env messageEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		h.log.Warn().Err(err).Msg("invalid gateway message envelope")
		return
	}
	h.broadcastLocal(env.RoomID, env.Payload)
}

// broadcastLocal delivers payload to every client currently registered in roomID on this process, including the
// sender: the sender's own connection is just another registered client of the room.
func (h *Hub) broadcastLocal(roomID string, payload []byte) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		c.enqueue(payload)
	}
}

// RoomSize returns the number of connections currently registered in roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Shutdown closes every active connection with a Going Away status.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.mu.RLock()
		clients := make([]*Client, 0, len(r.clients))
		for _, c := range r.clients {
			clients = append(clients, c)
		}
		r.mu.RUnlock()

		for _, c := range clients {
			c.closeWithCode(websocket.CloseGoingAway, "server shutting down")
			c.closeSend()
		}
	}

	h.log.Info().Msg("gateway hub shut down")
}
