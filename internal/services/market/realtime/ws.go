package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/id"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 20
	maxDecodeErrorsPerConn = 5

	maxMessageBodyRunes = 2000
	defaultHistoryLimit = 50
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type joinPayload struct {
	Channel string `json:"channel"`
}

type sendPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type historyPayload struct {
	Channel string `json:"channel"`
	Limit   int    `json:"limit"`
}

type ackEnvelope struct {
	Status  string `json:"status"`
	Channel string `json:"channel,omitempty"`
}

type messageEnvelope struct {
	Messages []wireMessage `json:"messages"`
}

type wireMessage struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
	SentAt   string `json:"sent_at"`
}

// wsPeer serializes frame writes; the hub and the reader goroutine both write.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// Deliver implements Subscriber by encoding the event as an event frame.
func (p *wsPeer) Deliver(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = p.writeFrame(wsFrame{Type: "event", Payload: payload})
}

type wsSession struct {
	mu       sync.Mutex
	actorID  string
	reviewer bool
	peer     *wsPeer
	joined   map[string]struct{}
}

func newWSSession(actorID string, reviewer bool, peer *wsPeer) *wsSession {
	return &wsSession{
		actorID:  actorID,
		reviewer: reviewer,
		peer:     peer,
		joined:   make(map[string]struct{}),
	}
}

func (s *wsSession) markJoined(channel string) {
	s.mu.Lock()
	s.joined[channel] = struct{}{}
	s.mu.Unlock()
}

func (s *wsSession) markLeft(channel string) {
	s.mu.Lock()
	delete(s.joined, channel)
	s.mu.Unlock()
}

func (s *wsSession) joinedChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	channels := make([]string, 0, len(s.joined))
	for channel := range s.joined {
		channels = append(channels, channel)
	}
	return channels
}

type wsActorContextKey struct{}

// Handler serves the realtime WebSocket endpoint. The caller authenticates
// the request and sets X-Actor-Id and X-Actor-Role before the upgrade.
func Handler(hub *Hub, messages storage.MessageStore, logger *log.Logger) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, hub, messages, logger)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		actorID := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
		if actorID == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), wsActorContextKey{}, actorID)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func handleWSConn(conn *websocket.Conn, hub *Hub, messages storage.MessageStore, logger *log.Logger) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	peer := newWSPeer(json.NewEncoder(conn))

	actorID := ""
	reviewer := false
	if request := conn.Request(); request != nil {
		if resolved, ok := request.Context().Value(wsActorContextKey{}).(string); ok {
			actorID = resolved
		}
		reviewer = strings.TrimSpace(request.Header.Get("X-Actor-Role")) == "reviewer"
	}
	if actorID == "" {
		_ = writeWSError(peer, "", "UNAUTHENTICATED", "actor identity is required")
		return
	}

	session := newWSSession(actorID, reviewer, peer)
	defer func() {
		for _, channel := range session.joinedChannels() {
			hub.Unsubscribe(channel, peer)
		}
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		ctx := context.Background()
		if request := conn.Request(); request != nil {
			ctx = request.Context()
		}

		switch frame.Type {
		case "market.join":
			handleJoinFrame(session, hub, frame)
		case "market.leave":
			handleLeaveFrame(session, hub, frame)
		case "market.send":
			handleSendFrame(ctx, session, hub, messages, frame, logger)
		case "market.history":
			handleHistoryFrame(ctx, session, messages, frame)
		default:
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func handleJoinFrame(session *wsSession, hub *Hub, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
		return
	}
	channel := strings.TrimSpace(payload.Channel)
	if channel == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "channel is required")
		return
	}
	if !canJoin(session, channel) {
		_ = writeWSError(session.peer, frame.RequestID, "PERMISSION_DENIED", "channel access denied")
		return
	}

	hub.Subscribe(channel, session.peer)
	session.markJoined(channel)
	writeAck(session.peer, frame.RequestID, "market.joined", channel)
}

func handleLeaveFrame(session *wsSession, hub *Hub, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid leave payload")
		return
	}
	channel := strings.TrimSpace(payload.Channel)
	hub.Unsubscribe(channel, session.peer)
	session.markLeft(channel)
	writeAck(session.peer, frame.RequestID, "market.left", channel)
}

func handleSendFrame(ctx context.Context, session *wsSession, hub *Hub, messages storage.MessageStore, frame wsFrame, logger *log.Logger) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid send payload")
		return
	}
	to := strings.TrimSpace(payload.To)
	body := strings.TrimSpace(payload.Body)
	if to == "" || body == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "recipient and body are required")
		return
	}
	if len([]rune(body)) > maxMessageBodyRunes {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "message body too long")
		return
	}

	channel := DMChannel(session.actorID, to)
	messageID, err := id.NewID()
	if err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INTERNAL", "message id generation failed")
		return
	}
	record := storage.MessageRecord{
		ID:        messageID,
		Channel:   channel,
		SenderID:  session.actorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if messages != nil {
		if err := messages.AppendMessage(ctx, record); err != nil {
			if logger != nil {
				logger.Printf("persist dm message: %v", err)
			}
			_ = writeWSError(session.peer, frame.RequestID, "UNAVAILABLE", "message could not be stored")
			return
		}
	}

	hub.Publish(Event{
		Type:    EventDMMessage,
		Channel: channel,
		Payload: map[string]string{
			"message_id": record.ID,
			"sender_id":  record.SenderID,
			"body":       record.Body,
		},
		At: record.CreatedAt,
	})
	writeAck(session.peer, frame.RequestID, "market.sent", channel)
}

func handleHistoryFrame(ctx context.Context, session *wsSession, messages storage.MessageStore, frame wsFrame) {
	var payload historyPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid history payload")
		return
	}
	channel := strings.TrimSpace(payload.Channel)
	if !strings.HasPrefix(channel, "dm:") {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "history is only available for dm channels")
		return
	}
	if !canJoin(session, channel) {
		_ = writeWSError(session.peer, frame.RequestID, "PERMISSION_DENIED", "channel access denied")
		return
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var records []storage.MessageRecord
	if messages != nil {
		var err error
		records, err = messages.ListMessagesByChannel(ctx, channel, limit)
		if err != nil {
			_ = writeWSError(session.peer, frame.RequestID, "UNAVAILABLE", "history is unavailable")
			return
		}
	}

	wire := make([]wireMessage, 0, len(records))
	for _, record := range records {
		wire = append(wire, wireMessage{
			ID:       record.ID,
			Channel:  record.Channel,
			SenderID: record.SenderID,
			Body:     record.Body,
			SentAt:   record.CreatedAt.Format(time.RFC3339),
		})
	}
	envelope, err := json.Marshal(messageEnvelope{Messages: wire})
	if err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INTERNAL", "history encoding failed")
		return
	}
	_ = session.peer.writeFrame(wsFrame{Type: "market.history", RequestID: frame.RequestID, Payload: envelope})
}

// canJoin enforces structural channel ownership: personal channels require
// the matching actor, DM channels require pair membership, the reviewer pool
// requires the reviewer role. Order channels stay open to both parties; the
// publisher scopes their payloads.
func canJoin(session *wsSession, channel string) bool {
	switch {
	case channel == ReviewersChannel:
		return session.reviewer
	case strings.HasPrefix(channel, "owner:"):
		return strings.TrimPrefix(channel, "owner:") == session.actorID
	case strings.HasPrefix(channel, "dm:"):
		pair := strings.SplitN(strings.TrimPrefix(channel, "dm:"), "|", 2)
		if len(pair) != 2 {
			return false
		}
		return pair[0] == session.actorID || pair[1] == session.actorID
	case strings.HasPrefix(channel, "order:"):
		return true
	default:
		return false
	}
}

func writeAck(peer *wsPeer, requestID, status, channel string) {
	payload, err := json.Marshal(ackEnvelope{Status: status, Channel: channel})
	if err != nil {
		return
	}
	_ = peer.writeFrame(wsFrame{Type: "ack", RequestID: requestID, Payload: payload})
}

func writeWSError(peer *wsPeer, requestID, code, message string) error {
	payload, err := json.Marshal(wsErrorEnvelope{Error: wsError{Code: code, Message: message}})
	if err != nil {
		return err
	}
	return peer.writeFrame(wsFrame{Type: "error", RequestID: requestID, Payload: payload})
}
