package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/WalidA2D/NEURALINKED/domain"
)

type MockChatStore struct {
	mock.Mock
}

func (m *MockChatStore) SaveMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(domain.ChatMessage), args.Error(1)
}

func (m *MockChatStore) MessagesForRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, roomCode, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

// recordingNotifier captures notifications in order. Hand-rolled rather
// than a testify mock so concurrent tests can count calls safely.
type notifierCall struct {
	kind     string
	code     string
	snap     Snapshot
	st       State
	step     int
	puzzleID int
	solver   string
	endsAt   int64
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (n *recordingNotifier) record(c notifierCall) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, c)
}

func (n *recordingNotifier) RoomUpdate(code string, snap Snapshot) {
	n.record(notifierCall{kind: "update", code: code, snap: snap})
}

func (n *recordingNotifier) RoomDeleted(code string) {
	n.record(notifierCall{kind: "deleted", code: code})
}

func (n *recordingNotifier) GameState(code string, st State) {
	n.record(notifierCall{kind: "state", code: code, st: st})
}

func (n *recordingNotifier) StepChanged(code string, step int) {
	n.record(notifierCall{kind: "step", code: code, step: step})
}

func (n *recordingNotifier) PuzzleSolved(code string, puzzleID int, solver string) {
	n.record(notifierCall{kind: "solved", code: code, puzzleID: puzzleID, solver: solver})
}

func (n *recordingNotifier) TimerSet(code string, endsAt int64) {
	n.record(notifierCall{kind: "timer", code: code, endsAt: endsAt})
}

func (n *recordingNotifier) ofKind(kind string) []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifierCall
	for _, c := range n.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (n *recordingNotifier) lastOfKind(t *testing.T, kind string) notifierCall {
	t.Helper()
	calls := n.ofKind(kind)
	require.NotEmpty(t, calls, "expected at least one %q notification", kind)
	return calls[len(calls)-1]
}

// fakeSession is a channel-backed NetworkSession. Tests feed frames into
// in and observe delivered frames on out.
type fakeSession struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}

	mu     sync.Mutex
	once   sync.Once
	reason string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (s *fakeSession) Read() ([]byte, error) {
	select {
	case data := <-s.in:
		return data, nil
	case <-s.closed:
		return nil, errors.New("session closed")
	}
}

func (s *fakeSession) Write(data []byte) error {
	select {
	case <-s.closed:
		return errors.New("session closed")
	default:
	}
	select {
	case s.out <- data:
		return nil
	default:
		return errors.New("out buffer full")
	}
}

func (s *fakeSession) Ping() error {
	select {
	case <-s.closed:
		return errors.New("session closed")
	default:
		return nil
	}
}

func (s *fakeSession) Close(reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.closed)
	})
}

func (s *fakeSession) closeReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *fakeSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// intent feeds one framed intent into the session's read loop.
func (s *fakeSession) intent(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	require.NoError(t, err)
	select {
	case s.in <- frame:
	case <-time.After(time.Second):
		t.Fatalf("timed out feeding %s intent", event)
	}
}

// nextEvent returns the next delivered frame, failing after a timeout.
func nextEvent(t *testing.T, s *fakeSession) (string, json.RawMessage) {
	t.Helper()
	select {
	case frame := <-s.out:
		var env envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env.Event, env.Data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
		return "", nil
	}
}

// expectEvent asserts the next delivered frame carries the given event
// and decodes its payload into v.
func expectEvent(t *testing.T, s *fakeSession, event string, v any) {
	t.Helper()
	got, data := nextEvent(t, s)
	require.Equal(t, event, got, "unexpected event order")
	if v != nil {
		require.NoError(t, json.Unmarshal(data, v))
	}
}

// expectNoEvent asserts nothing is delivered within a grace window.
func expectNoEvent(t *testing.T, s *fakeSession) {
	t.Helper()
	select {
	case frame := <-s.out:
		t.Fatalf("expected silence, got frame: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}
