package game

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/WalidA2D/NEURALINKED/domain"
)

// Wire protocol: every frame is {"event": "...", "data": {...}}.
// Unknown events and intents missing a room id are dropped without a
// reply, so a buggy or hostile client cannot make the server talk back.
const (
	evtRoomJoin    = "room:join"
	evtRoomLeave   = "room:leave"
	evtRoomStart   = "room:start"
	evtRoomUpdate  = "room:update"
	evtGameJoin    = "game:join"
	evtGameState   = "game:state"
	evtGameStep    = "game:step"
	evtGameSolved  = "game:solved"
	evtGameTimer   = "game:timer"
	evtChatMessage = "chat:message"
	evtChatTyping  = "chat:typing"
	evtChatAck     = "chat:ack"
	evtChatHistory = "chat:history"
	evtChatLoad    = "chat:load-history"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinIntent struct {
	RoomId   string `json:"roomId"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     bool   `json:"host"`
}

type roomIntent struct {
	RoomId string `json:"roomId"`
}

type stepIntent struct {
	RoomId string `json:"roomId"`
	Step   int    `json:"step"`
}

type solvedIntent struct {
	RoomId   string `json:"roomId"`
	PuzzleId int    `json:"puzzleId"`
	Solver   string `json:"solver"`
}

type timerIntent struct {
	RoomId string `json:"roomId"`
	EndsAt int64  `json:"endsAt"`
}

type chatIntent struct {
	RoomId string `json:"roomId"`
	User   string `json:"user"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
	AckId  string `json:"ackId"`
}

type typingIntent struct {
	RoomId   string `json:"roomId"`
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

// stateEvent decorates a state snapshot with its derived phase. The
// phase is computed at emission, never stored.
type stateEvent struct {
	State
	Phase string `json:"phase"`
}

func newStateEvent(st State) stateEvent {
	return stateEvent{State: st, Phase: st.Phase().String()}
}

type stepEvent struct {
	Step int `json:"step"`
}

type solvedEvent struct {
	PuzzleId int    `json:"puzzleId"`
	Solver   string `json:"solver"`
}

type timerEvent struct {
	EndsAt int64 `json:"endsAt"`
}

type startEvent struct {
	RoomId string `json:"roomId"`
}

type typingEvent struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

type ackEvent struct {
	AckId   string             `json:"ackId"`
	Message domain.ChatMessage `json:"message"`
}

// encode marshals an outbound frame. Returns nil on marshal failure,
// which senders treat as "nothing to send".
func encode(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode event payload")
		return nil
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode event frame")
		return nil
	}
	return frame
}
