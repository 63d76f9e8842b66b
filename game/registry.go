package game

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry holds the live rooms. Every mutation of a room happens under
// that room's mutex, and notifications are emitted before the mutex is
// released, so subscribers observe each room's changes in a single
// serialized order.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	notifier Notifier
}

// room exists only while it has members. gone marks a room that has been
// removed from the registry while a racing Join still holds a pointer.
type room struct {
	mu      sync.Mutex
	gone    bool
	code    string
	pwd     string
	hostId  string
	members []Member
	step    int
	solved  map[int]bool
	endsAt  int64
}

func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		notifier: notifier,
	}
}

func newRoom(code, pwd string) *room {
	return &room{
		code:   code,
		pwd:    pwd,
		step:   1,
		solved: make(map[int]bool),
	}
}

// getOrCreate returns the room for code with its mutex held. If a racing
// deletion emptied the map entry between lookup and lock, it retries.
func (r *Registry) getOrCreate(code, pwd string) *room {
	for {
		r.mu.RLock()
		rm, ok := r.rooms[code]
		r.mu.RUnlock()

		if !ok {
			r.mu.Lock()
			rm, ok = r.rooms[code]
			if !ok {
				rm = newRoom(code, pwd)
				r.rooms[code] = rm
			}
			r.mu.Unlock()
		}

		rm.mu.Lock()
		if rm.gone {
			rm.mu.Unlock()
			continue
		}
		return rm
	}
}

// lock returns the room with its mutex held, or false if it does not
// exist. Operations on unknown rooms are no-ops.
func (r *Registry) lock(code string) (*room, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	rm.mu.Lock()
	if rm.gone {
		rm.mu.Unlock()
		return nil, false
	}
	return rm, true
}

// remove deletes the room from the registry. Called with rm.mu held;
// taking the registry lock here is safe because no path holds the
// registry lock while waiting on a room mutex.
func (r *Registry) remove(rm *room) {
	rm.gone = true
	r.mu.Lock()
	delete(r.rooms, rm.code)
	r.mu.Unlock()
}

// Join adds connId to the room, creating it on first join. The first
// member, or any joiner with wantsHost while the room has no host,
// becomes host. Rejoining with the same connId only refreshes the name.
func (r *Registry) Join(code, connId, name string, wantsHost bool, pwd string) Snapshot {
	rm := r.getOrCreate(code, pwd)
	defer rm.mu.Unlock()

	name = clampName(name)

	if wantsHost || rm.hostId == "" {
		rm.hostId = connId
	}

	if i := rm.memberIndex(connId); i >= 0 {
		rm.members[i].Name = name
	} else {
		rm.members = append(rm.members, Member{Id: connId, Name: name})
	}

	snap := rm.snapshot()
	r.notifier.RoomUpdate(code, snap)
	return snap
}

// Leave removes connId from the room. Returns the resulting snapshot,
// whether the room was deleted, and whether the room existed at all.
func (r *Registry) Leave(code, connId string) (Snapshot, bool, bool) {
	rm, ok := r.lock(code)
	if !ok {
		return Snapshot{}, false, false
	}
	defer rm.mu.Unlock()

	snap, deleted := r.departLocked(rm, connId)
	return snap, deleted, true
}

// RecordDisconnect prunes connId from every room it is a member of and
// returns the affected room codes.
func (r *Registry) RecordDisconnect(connId string) []string {
	r.mu.RLock()
	candidates := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		candidates = append(candidates, rm)
	}
	r.mu.RUnlock()

	var affected []string
	for _, rm := range candidates {
		rm.mu.Lock()
		if rm.gone || rm.memberIndex(connId) < 0 {
			rm.mu.Unlock()
			continue
		}
		affected = append(affected, rm.code)
		r.departLocked(rm, connId)
		rm.mu.Unlock()
	}
	return affected
}

// departLocked removes connId, reassigns the host to the first remaining
// member in join order, deletes the room when it empties, and emits the
// matching notification. Called with rm.mu held.
func (r *Registry) departLocked(rm *room, connId string) (Snapshot, bool) {
	if i := rm.memberIndex(connId); i >= 0 {
		rm.members = append(rm.members[:i], rm.members[i+1:]...)
	}

	if len(rm.members) == 0 {
		r.remove(rm)
		r.notifier.RoomDeleted(rm.code)
		log.Debug().Str("room", rm.code).Msg("room emptied, deleted")
		return Snapshot{}, true
	}

	if rm.hostId == connId {
		rm.hostId = rm.members[0].Id
	}

	snap := rm.snapshot()
	r.notifier.RoomUpdate(rm.code, snap)
	return snap, false
}

// AdvanceStep moves the shared step forward. Requests for a step at or
// below the current one leave it unchanged, so duplicate and stale
// intents are harmless. The resulting state is broadcast either way.
func (r *Registry) AdvanceStep(code string, step int) (int, bool) {
	rm, ok := r.lock(code)
	if !ok {
		return 0, false
	}
	defer rm.mu.Unlock()

	if step > rm.step {
		rm.step = step
	}

	r.notifier.GameState(code, rm.state())
	r.notifier.StepChanged(code, rm.step)
	return rm.step, true
}

// MarkSolved records the first solve of a puzzle and advances the step
// to at least puzzleID+1. Later solves of the same puzzle change nothing
// and emit nothing.
func (r *Registry) MarkSolved(code string, puzzleID int, solver string) (SolveResult, bool) {
	rm, ok := r.lock(code)
	if !ok {
		return SolveResult{}, false
	}
	defer rm.mu.Unlock()

	if rm.solved[puzzleID] {
		return SolveResult{AlreadySolved: true, Step: rm.step}, true
	}
	rm.solved[puzzleID] = true
	if puzzleID+1 > rm.step {
		rm.step = puzzleID + 1
	}

	r.notifier.PuzzleSolved(code, puzzleID, solver)
	r.notifier.GameState(code, rm.state())
	return SolveResult{AlreadySolved: false, Step: rm.step}, true
}

// SetDeadlineIfAbsent stores the shared countdown deadline. The first
// proposal wins; every call broadcasts the effective value so racing
// clients converge.
func (r *Registry) SetDeadlineIfAbsent(code string, endsAt int64) (int64, bool) {
	rm, ok := r.lock(code)
	if !ok {
		return 0, false
	}
	defer rm.mu.Unlock()

	if rm.endsAt == 0 && endsAt > 0 {
		rm.endsAt = endsAt
	}

	r.notifier.TimerSet(code, rm.endsAt)
	return rm.endsAt, true
}

// State returns the current game view, used to catch up late joiners.
func (r *Registry) State(code string) (State, bool) {
	rm, ok := r.lock(code)
	if !ok {
		return State{}, false
	}
	defer rm.mu.Unlock()
	return rm.state(), true
}

// Snapshot returns the current lobby view.
func (r *Registry) Snapshot(code string) (Snapshot, bool) {
	rm, ok := r.lock(code)
	if !ok {
		return Snapshot{}, false
	}
	defer rm.mu.Unlock()
	return rm.snapshot(), true
}

func (rm *room) memberIndex(connId string) int {
	for i, m := range rm.members {
		if m.Id == connId {
			return i
		}
	}
	return -1
}

func (rm *room) snapshot() Snapshot {
	players := make([]Member, len(rm.members))
	copy(players, rm.members)
	return Snapshot{
		Code:    rm.code,
		Pwd:     rm.pwd,
		Players: players,
		HostId:  rm.hostId,
	}
}

func (rm *room) state() State {
	players := make([]Member, len(rm.members))
	copy(players, rm.members)
	solved := make([]int, 0, len(rm.solved))
	for id := range rm.solved {
		solved = append(solved, id)
	}
	sort.Ints(solved)
	return State{
		Step:    rm.step,
		EndsAt:  rm.endsAt,
		Players: players,
		Solved:  solved,
	}
}

func clampName(name string) string {
	if name == "" {
		return defaultName
	}
	runes := []rune(name)
	if len(runes) > maxNameLen {
		return string(runes[:maxNameLen])
	}
	return name
}
