package game

import (
	"context"

	"github.com/WalidA2D/NEURALINKED/domain"
)

// NetworkSession abstracts the websocket transport so the gateway can be
// exercised with fake sessions in tests.
type NetworkSession interface {
	Close(reason string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// ChatStore persists relayed chat messages. A failing store must never
// block live delivery, so implementations are called with a short
// deadline and their errors are only logged.
type ChatStore interface {
	SaveMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	MessagesForRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error)
}

// Notifier receives room mutations as they happen. The registry invokes
// it while still holding the room lock so observers see mutations of one
// room in their serialized order; implementations must not block.
type Notifier interface {
	RoomUpdate(code string, snap Snapshot)
	RoomDeleted(code string)
	GameState(code string, st State)
	StepChanged(code string, step int)
	PuzzleSolved(code string, puzzleID int, solver string)
	TimerSet(code string, endsAt int64)
}

type Member struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is the lobby view of a room, broadcast after every membership
// change.
type Snapshot struct {
	Code    string   `json:"code"`
	Pwd     string   `json:"pwd,omitempty"`
	Players []Member `json:"players"`
	HostId  string   `json:"hostId"`
}

// State is the game view of a room. EndsAt is unix milliseconds, zero
// until the shared countdown has been started. Solved lists the puzzle
// ids already claimed, so late joiners can render past progress.
type State struct {
	Step    int      `json:"step"`
	EndsAt  int64    `json:"endsAt,omitempty"`
	Players []Member `json:"players"`
	Solved  []int    `json:"solved"`
}

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseActive
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseComplete:
		return "complete"
	default:
		return "lobby"
	}
}

// Phase derives the room phase; it is never stored. A room is complete
// once every puzzle is solved or the step has moved past the last one.
func (s State) Phase() Phase {
	if len(s.Solved) >= PuzzleCount || s.Step > PuzzleCount {
		return PhaseComplete
	}
	if s.EndsAt != 0 {
		return PhaseActive
	}
	return PhaseLobby
}

// SolveResult reports a markSolved outcome. AlreadySolved means another
// player claimed the puzzle first and nothing changed.
type SolveResult struct {
	AlreadySolved bool
	Step          int
}

const (
	// PuzzleCount is the number of puzzles in a run.
	PuzzleCount = 4

	maxNameLen  = 40
	defaultName = "Player"

	maxChatTextLen = 500
	historyLimit   = 100
)
