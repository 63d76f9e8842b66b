package game

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinCreatesRoomAndAssignsHost(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)

	snap := reg.Join("ROOM01", "c1", "alice", true, "hunter2")
	assert.Equal(t, "ROOM01", snap.Code)
	assert.Equal(t, "hunter2", snap.Pwd)
	assert.Equal(t, "c1", snap.HostId)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "alice", snap.Players[0].Name)

	snap = reg.Join("ROOM01", "c2", "bob", false, "")
	assert.Equal(t, "c1", snap.HostId, "host keeps the room")
	require.Len(t, snap.Players, 2)

	// A later joiner claiming host takes it over.
	snap = reg.Join("ROOM01", "c3", "carol", true, "")
	assert.Equal(t, "c3", snap.HostId)

	updates := notifier.ofKind("update")
	assert.Len(t, updates, 3, "every join broadcasts a snapshot")
}

func TestJoinWithoutHostFlagBecomesHostOfNewRoom(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})

	snap := reg.Join("FRESH1", "c9", "dora", false, "")
	assert.Equal(t, "c9", snap.HostId, "first member hosts even without the flag")
}

func TestJoinNameRules(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})

	t.Run("empty name gets the default", func(t *testing.T) {
		snap := reg.Join("NAMES1", "c1", "", false, "")
		assert.Equal(t, defaultName, snap.Players[0].Name)
	})

	t.Run("long names are clamped to 40 runes", func(t *testing.T) {
		long := strings.Repeat("é", 60)
		snap := reg.Join("NAMES1", "c2", long, false, "")
		assert.Equal(t, strings.Repeat("é", 40), snap.Players[1].Name)
	})

	t.Run("rejoin refreshes the name without duplicating", func(t *testing.T) {
		snap := reg.Join("NAMES1", "c1", "renamed", false, "")
		require.Len(t, snap.Players, 2)
		assert.Equal(t, "renamed", snap.Players[0].Name)
	})
}

func TestLeaveReassignsHost(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("ROOM02", "c1", "alice", true, "")
	reg.Join("ROOM02", "c2", "bob", false, "")
	reg.Join("ROOM02", "c3", "carol", false, "")

	snap, deleted, ok := reg.Leave("ROOM02", "c1")
	require.True(t, ok)
	assert.False(t, deleted)
	assert.Equal(t, "c2", snap.HostId, "first remaining member in join order hosts")
	assert.Len(t, snap.Players, 2)
}

func TestLeaveLastMemberDeletesRoom(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("ROOM03", "c1", "alice", true, "")

	_, deleted, ok := reg.Leave("ROOM03", "c1")
	require.True(t, ok)
	assert.True(t, deleted)

	_, ok = reg.Snapshot("ROOM03")
	assert.False(t, ok, "room no longer exists")

	assert.Len(t, notifier.ofKind("deleted"), 1)
	// The final update broadcast belongs to the join, not the leave.
	assert.Len(t, notifier.ofKind("update"), 1)
}

func TestLeaveUnknownRoomIsNoOp(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)

	_, _, ok := reg.Leave("NOPE99", "c1")
	assert.False(t, ok)
	assert.Empty(t, notifier.ofKind("update"))
	assert.Empty(t, notifier.ofKind("deleted"))
}

func TestRecordDisconnectPrunesEveryRoom(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("ROOMA1", "c1", "alice", true, "")
	reg.Join("ROOMA1", "c2", "bob", false, "")
	reg.Join("ROOMB1", "c1", "alice", true, "")

	affected := reg.RecordDisconnect("c1")
	assert.ElementsMatch(t, []string{"ROOMA1", "ROOMB1"}, affected)

	snap, ok := reg.Snapshot("ROOMA1")
	require.True(t, ok)
	assert.Equal(t, "c2", snap.HostId)

	_, ok = reg.Snapshot("ROOMB1")
	assert.False(t, ok, "alice was alone in ROOMB1")
}

func TestRecordDisconnectUnknownConn(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})
	reg.Join("ROOMC1", "c1", "alice", true, "")

	assert.Empty(t, reg.RecordDisconnect("ghost"))

	snap, ok := reg.Snapshot("ROOMC1")
	require.True(t, ok)
	assert.Len(t, snap.Players, 1)
}

func TestAdvanceStepIsMonotonic(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("STEP01", "c1", "alice", true, "")

	step, ok := reg.AdvanceStep("STEP01", 3)
	require.True(t, ok)
	assert.Equal(t, 3, step)

	step, ok = reg.AdvanceStep("STEP01", 2)
	require.True(t, ok)
	assert.Equal(t, 3, step, "stale request cannot move the step back")

	step, ok = reg.AdvanceStep("STEP01", 3)
	require.True(t, ok)
	assert.Equal(t, 3, step, "duplicate request is idempotent")

	assert.Equal(t, 3, notifier.lastOfKind(t, "step").step)
	assert.Len(t, notifier.ofKind("state"), 3, "every request rebroadcasts state")

	_, ok = reg.AdvanceStep("GHOST9", 2)
	assert.False(t, ok)
}

func TestMarkSolvedFirstWins(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("SOLVE1", "c1", "alice", true, "")

	res, ok := reg.MarkSolved("SOLVE1", 2, "alice")
	require.True(t, ok)
	assert.False(t, res.AlreadySolved)
	assert.Equal(t, 3, res.Step, "step advances past the solved puzzle")

	res, ok = reg.MarkSolved("SOLVE1", 2, "bob")
	require.True(t, ok)
	assert.True(t, res.AlreadySolved)
	assert.Equal(t, 3, res.Step)

	solved := notifier.ofKind("solved")
	require.Len(t, solved, 1, "duplicate solves emit nothing")
	assert.Equal(t, "alice", solved[0].solver)
	assert.Equal(t, 2, solved[0].puzzleID)
}

func TestMarkSolvedNeverLowersStep(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})
	reg.Join("SOLVE2", "c1", "alice", true, "")
	reg.AdvanceStep("SOLVE2", 4)

	res, ok := reg.MarkSolved("SOLVE2", 1, "alice")
	require.True(t, ok)
	assert.Equal(t, 4, res.Step)
}

func TestMarkSolvedConcurrent(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("SOLVE3", "c1", "alice", true, "")

	const racers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, ok := reg.MarkSolved("SOLVE3", 1, fmt.Sprintf("racer-%d", i))
			if ok && !res.AlreadySolved {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one racer claims the puzzle")
	assert.Len(t, notifier.ofKind("solved"), 1)
}

func TestMarkSolvedConcurrentDistinctPuzzles(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("SOLVE4", "c1", "alice", true, "")

	var wg sync.WaitGroup
	results := make([]SolveResult, PuzzleCount)
	for i := 0; i < PuzzleCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = reg.MarkSolved("SOLVE4", i+1, fmt.Sprintf("racer-%d", i))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.False(t, res.AlreadySolved, "puzzle %d had no competitor and must be claimed", i+1)
	}

	st, ok := reg.State("SOLVE4")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4}, st.Solved)
	assert.Equal(t, PuzzleCount+1, st.Step, "step lands on the max of every solve")
	assert.Len(t, notifier.ofKind("solved"), PuzzleCount)
}

func TestSetDeadlineFirstWriteWins(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	reg.Join("TIME01", "c1", "alice", true, "")

	got, ok := reg.SetDeadlineIfAbsent("TIME01", 1000)
	require.True(t, ok)
	assert.Equal(t, int64(1000), got)

	got, ok = reg.SetDeadlineIfAbsent("TIME01", 2000)
	require.True(t, ok)
	assert.Equal(t, int64(1000), got, "deadline is immutable once set")

	// Both calls broadcast the effective value so racers converge.
	timers := notifier.ofKind("timer")
	require.Len(t, timers, 2)
	assert.Equal(t, int64(1000), timers[0].endsAt)
	assert.Equal(t, int64(1000), timers[1].endsAt)
}

func TestSetDeadlineConcurrent(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})
	reg.Join("TIME02", "c1", "alice", true, "")

	var wg sync.WaitGroup
	results := make([]int64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = reg.SetDeadlineIfAbsent("TIME02", int64(5000+i))
		}(i)
	}
	wg.Wait()

	st, ok := reg.State("TIME02")
	require.True(t, ok)
	for i, r := range results {
		assert.Equal(t, st.EndsAt, r, "caller %d observed a different deadline", i)
	}
}

func TestStateForLateJoiner(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})
	reg.Join("LATE01", "c1", "alice", true, "")
	reg.AdvanceStep("LATE01", 2)
	reg.MarkSolved("LATE01", 2, "alice")
	reg.SetDeadlineIfAbsent("LATE01", 9999)

	st, ok := reg.State("LATE01")
	require.True(t, ok)
	assert.Equal(t, 3, st.Step)
	assert.Equal(t, int64(9999), st.EndsAt)
	assert.Equal(t, []int{2}, st.Solved)

	_, ok = reg.State("GHOST1")
	assert.False(t, ok)
}

func TestPhaseIsDerived(t *testing.T) {
	tests := []struct {
		name string
		st   State
		want Phase
	}{
		{"fresh room", State{Step: 1}, PhaseLobby},
		{"deadline running", State{Step: 2, EndsAt: 123}, PhaseActive},
		{"all puzzles solved", State{Step: 4, EndsAt: 123, Solved: []int{1, 2, 3, 4}}, PhaseComplete},
		{"step past the last puzzle", State{Step: PuzzleCount + 1, EndsAt: 123}, PhaseComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.st.Phase())
		})
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})
	reg.Join("COPY01", "c1", "alice", true, "")
	reg.Join("COPY01", "c2", "bob", false, "")

	before, ok := reg.Snapshot("COPY01")
	require.True(t, ok)

	// Mutating a returned snapshot must not leak into the registry.
	before.Players[0].Name = "mallory"
	before.HostId = "c2"

	after, ok := reg.Snapshot("COPY01")
	require.True(t, ok)
	assert.Equal(t, "alice", after.Players[0].Name)
	assert.Equal(t, "c1", after.HostId)
}

func TestJoinLeaveChurn(t *testing.T) {
	reg := NewRegistry(&recordingNotifier{})

	const members = 24
	var wg sync.WaitGroup
	for i := 0; i < members; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Join("CHURN1", fmt.Sprintf("c%d", i), fmt.Sprintf("p%d", i), false, "")
		}(i)
	}
	wg.Wait()

	snap, ok := reg.Snapshot("CHURN1")
	require.True(t, ok)
	require.Len(t, snap.Players, members)

	hostIsMember := false
	for _, p := range snap.Players {
		if p.Id == snap.HostId {
			hostIsMember = true
		}
	}
	assert.True(t, hostIsMember, "host is always a member")

	for i := 0; i < members; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Leave("CHURN1", fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()

	_, ok = reg.Snapshot("CHURN1")
	assert.False(t, ok, "room vanishes with its last member")

	// A new join after deletion starts a fresh room.
	fresh := reg.Join("CHURN1", "c0", "again", false, "")
	if diff := cmp.Diff(Snapshot{
		Code:    "CHURN1",
		Players: []Member{{Id: "c0", Name: "again"}},
		HostId:  "c0",
	}, fresh); diff != "" {
		t.Errorf("fresh room snapshot mismatch (-want +got):\n%s", diff)
	}
}
