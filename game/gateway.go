package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/WalidA2D/NEURALINKED/domain"
)

const persistTimeout = 2 * time.Second

// Gateway owns the live connections and their room subscriptions. It is
// the registry's Notifier, so every room mutation fans out to the room's
// subscribers before the registry releases that room's lock.
type Gateway struct {
	registry *Registry
	chat     ChatStore

	// mu guards subs and every client's rooms set. Broadcasts run
	// under it too, which keeps chat relay in server arrival order.
	mu   sync.Mutex
	subs map[string]map[*client]struct{}
}

func NewGateway(chat ChatStore) *Gateway {
	g := &Gateway{
		chat: chat,
		subs: make(map[string]map[*client]struct{}),
	}
	g.registry = NewRegistry(g)
	return g
}

// Registry exposes the room registry backing this gateway.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// HandleSession runs a connection until its transport fails or the
// client goes away. It blocks, so call it from the connection's own
// goroutine (the upgraded gin handler).
func (g *Gateway) HandleSession(sess NetworkSession) {
	c := newClient(uuid.NewString(), sess, g)
	log.Debug().Str("conn", c.id).Msg("session started")

	go c.writePump()
	c.readPump()
}

// dispatch routes one inbound frame. Malformed frames, unknown events
// and intents without a room id are dropped without a reply.
func (g *Gateway) dispatch(c *client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("conn", c.id).Err(err).Msg("dropping malformed frame")
		return
	}

	switch env.Event {
	case evtRoomJoin:
		g.handleJoin(c, env.Data)
	case evtGameJoin:
		g.handleGameJoin(c, env.Data)
	case evtRoomLeave:
		g.handleLeave(c, env.Data)
	case evtRoomStart:
		g.handleStart(c, env.Data)
	case evtGameStep:
		g.handleStep(c, env.Data)
	case evtGameSolved:
		g.handleSolved(c, env.Data)
	case evtGameTimer:
		g.handleTimer(c, env.Data)
	case evtChatMessage:
		g.handleChat(c, env.Data)
	case evtChatTyping:
		g.handleTyping(c, env.Data)
	case evtChatLoad:
		g.handleHistory(c, env.Data)
	default:
		log.Debug().Str("conn", c.id).Str("event", env.Event).Msg("dropping unknown event")
	}
}

func (g *Gateway) handleJoin(c *client, raw json.RawMessage) {
	var in joinIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	// Subscribe first so the joiner receives its own membership snapshot.
	g.subscribe(c, in.RoomId)
	g.registry.Join(in.RoomId, c.id, in.Username, in.Host, in.Password)
}

func (g *Gateway) handleGameJoin(c *client, raw json.RawMessage) {
	var in roomIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	g.subscribe(c, in.RoomId)
	// Push the full current state so a late joiner is never stuck on
	// step one waiting for the next mutation.
	if st, ok := g.registry.State(in.RoomId); ok {
		c.enqueue(encode(evtGameState, newStateEvent(st)))
	}
}

func (g *Gateway) handleLeave(c *client, raw json.RawMessage) {
	var in roomIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	// Unsubscribe first: the departure snapshot goes to the others.
	g.unsubscribe(c, in.RoomId)
	g.registry.Leave(in.RoomId, c.id)
}

func (g *Gateway) handleStart(c *client, raw json.RawMessage) {
	var in roomIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	g.broadcast(in.RoomId, encode(evtRoomStart, startEvent{RoomId: in.RoomId}))
}

func (g *Gateway) handleStep(c *client, raw json.RawMessage) {
	var in stepIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	g.registry.AdvanceStep(in.RoomId, in.Step)
}

func (g *Gateway) handleSolved(c *client, raw json.RawMessage) {
	var in solvedIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	g.registry.MarkSolved(in.RoomId, in.PuzzleId, in.Solver)
}

func (g *Gateway) handleTimer(c *client, raw json.RawMessage) {
	var in timerIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}
	g.registry.SetDeadlineIfAbsent(in.RoomId, in.EndsAt)
}

func (g *Gateway) handleChat(c *client, raw json.RawMessage) {
	var in chatIntent
	if !decode(c, raw, &in) || in.RoomId == "" || in.User == "" || in.Text == "" {
		return
	}

	msg := domain.ChatMessage{
		Id:       uuid.NewString(),
		RoomCode: in.RoomId,
		User:     in.User,
		Text:     clampText(in.Text),
		Ts:       in.Ts,
	}
	if msg.Ts == 0 {
		msg.Ts = time.Now().UnixMilli()
	}

	// Persist with a short deadline. A failing store must never block
	// live delivery; the locally generated id stands in for the row id.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	saved, err := g.chat.SaveMessage(ctx, msg)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("room", in.RoomId).Msg("failed to persist chat message")
	} else {
		msg = saved
	}

	if in.AckId != "" {
		c.enqueue(encode(evtChatAck, ackEvent{AckId: in.AckId, Message: msg}))
	}
	g.broadcast(in.RoomId, encode(evtChatMessage, msg))
}

func (g *Gateway) handleTyping(c *client, raw json.RawMessage) {
	var in typingIntent
	if !decode(c, raw, &in) || in.RoomId == "" || in.User == "" {
		return
	}
	g.broadcastExcept(in.RoomId, c, encode(evtChatTyping, typingEvent{User: in.User, IsTyping: in.IsTyping}))
}

func (g *Gateway) handleHistory(c *client, raw json.RawMessage) {
	var in roomIntent
	if !decode(c, raw, &in) || in.RoomId == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	msgs, err := g.chat.MessagesForRoom(ctx, in.RoomId, historyLimit)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("room", in.RoomId).Msg("failed to load chat history")
		msgs = nil
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	c.enqueue(encode(evtChatHistory, msgs))
}

// Notifier implementation. Called by the registry under the room lock;
// enqueues never block, so holding the lock here is cheap and preserves
// the room's mutation order in every subscriber's stream.

func (g *Gateway) RoomUpdate(code string, snap Snapshot) {
	g.broadcast(code, encode(evtRoomUpdate, snap))
}

func (g *Gateway) RoomDeleted(code string) {
	// Nothing to broadcast: the last member is already gone. Game
	// channel subscribers keep their chat relay until they disconnect.
	log.Debug().Str("room", code).Msg("room deleted")
}

func (g *Gateway) GameState(code string, st State) {
	g.broadcast(code, encode(evtGameState, newStateEvent(st)))
}

func (g *Gateway) StepChanged(code string, step int) {
	g.broadcast(code, encode(evtGameStep, stepEvent{Step: step}))
}

func (g *Gateway) PuzzleSolved(code string, puzzleID int, solver string) {
	g.broadcast(code, encode(evtGameSolved, solvedEvent{PuzzleId: puzzleID, Solver: solver}))
}

func (g *Gateway) TimerSet(code string, endsAt int64) {
	g.broadcast(code, encode(evtGameTimer, timerEvent{EndsAt: endsAt}))
}

func (g *Gateway) subscribe(c *client, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.subs[code]
	if !ok {
		set = make(map[*client]struct{})
		g.subs[code] = set
	}
	set[c] = struct{}{}
	c.rooms[code] = struct{}{}
}

func (g *Gateway) unsubscribe(c *client, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unsubscribeLocked(c, code)
}

func (g *Gateway) unsubscribeLocked(c *client, code string) {
	if set, ok := g.subs[code]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(g.subs, code)
		}
	}
	delete(c.rooms, code)
}

// dropClient tears a connection down: stop broadcasts to it, prune its
// room memberships (which notifies the remaining members), then release
// its writer.
func (g *Gateway) dropClient(c *client) {
	g.mu.Lock()
	for code := range c.rooms {
		g.unsubscribeLocked(c, code)
	}
	g.mu.Unlock()

	affected := g.registry.RecordDisconnect(c.id)
	if len(affected) > 0 {
		log.Info().Str("conn", c.id).Strs("rooms", affected).Msg("pruned disconnected member")
	}

	close(c.send)
	c.sess.Close("")
}

func (g *Gateway) broadcast(code string, frame []byte) {
	if frame == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.subs[code] {
		c.enqueue(frame)
	}
}

func (g *Gateway) broadcastExcept(code string, except *client, frame []byte) {
	if frame == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.subs[code] {
		if c != except {
			c.enqueue(frame)
		}
	}
}

func decode(c *client, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		log.Debug().Str("conn", c.id).Err(err).Msg("dropping malformed intent payload")
		return false
	}
	return true
}

func clampText(text string) string {
	runes := []rune(text)
	if len(runes) > maxChatTextLen {
		return string(runes[:maxChatTextLen])
	}
	return text
}
