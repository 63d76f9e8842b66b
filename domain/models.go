package domain

import "time"

type User struct {
	Id           string
	Username     string
	PasswordHash string
}

// RoomRecord is the durable row behind a room code. The live registry is
// the real-time authority; these records survive restarts and feed the
// REST endpoints.
type RoomRecord struct {
	Id        string       `json:"id"`
	Code      string       `json:"code"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	Players   []RoomPlayer `json:"players"`
}

type RoomPlayer struct {
	UserId   string    `json:"userId"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

const (
	RoomStatusWaiting = "waiting"
	RoomStatusPlaying = "playing"

	RoleHost   = "host"
	RolePlayer = "player"

	MaxRoomPlayers    = 5
	MinPlayersToStart = 2
)

// ChatMessage is both the wire shape relayed over the gateway and the
// durable row. Ts is unix milliseconds, matching the client clock.
type ChatMessage struct {
	Id       string `json:"id"`
	RoomCode string `json:"-"`
	User     string `json:"user"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
}
