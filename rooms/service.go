package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/WalidA2D/NEURALINKED/domain"
)

const (
	maxCodeAttempts = 10
	historyLimit    = 100
)

type RoomStore interface {
	CreateRoom(ctx context.Context, code, hostUserId string) (domain.RoomRecord, error)
	GetRoomByCode(ctx context.Context, code string) (domain.RoomRecord, error)
	AddPlayer(ctx context.Context, roomId, userId string) error
	StartRoom(ctx context.Context, roomId string) error
	LeaveRoom(ctx context.Context, roomId, userId string) (bool, error)
	MessagesForRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error)
}

type Service struct {
	store RoomStore
}

func NewService(store RoomStore) *Service {
	return &Service{store: store}
}

// Create opens a room for hostUserId under a fresh code, retrying on the
// rare code collision.
func (s *Service) Create(ctx context.Context, hostUserId string) (domain.RoomRecord, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		record, err := s.store.CreateRoom(ctx, NewCode(), hostUserId)
		if errors.Is(err, domain.ErrDuplicateRoomCode) {
			continue
		}
		return record, err
	}
	return domain.RoomRecord{}, fmt.Errorf("%w: no free code after %d attempts", domain.ErrDuplicateRoomCode, maxCodeAttempts)
}

// Join seats userId in the waiting room behind code.
func (s *Service) Join(ctx context.Context, code, userId string) (domain.RoomRecord, error) {
	record, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		return domain.RoomRecord{}, err
	}
	if record.Status != domain.RoomStatusWaiting {
		return domain.RoomRecord{}, domain.ErrRoomNotJoinable
	}

	if err := s.store.AddPlayer(ctx, record.Id, userId); err != nil {
		return domain.RoomRecord{}, err
	}
	return s.store.GetRoomByCode(ctx, code)
}

// Start begins the run. Only the host may start, and only with enough
// players seated.
func (s *Service) Start(ctx context.Context, code, userId string) error {
	record, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		return err
	}

	isHost := false
	for _, p := range record.Players {
		if p.UserId == userId && p.Role == domain.RoleHost {
			isHost = true
		}
	}
	if !isHost {
		return domain.ErrNotHost
	}
	if len(record.Players) < domain.MinPlayersToStart {
		return domain.ErrNotEnoughPlayers
	}

	return s.store.StartRoom(ctx, record.Id)
}

func (s *Service) Get(ctx context.Context, code string) (domain.RoomRecord, error) {
	return s.store.GetRoomByCode(ctx, code)
}

// Leave unseats userId and reports whether the room was deleted.
func (s *Service) Leave(ctx context.Context, code, userId string) (bool, error) {
	record, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return s.store.LeaveRoom(ctx, record.Id, userId)
}

// History returns the room's oldest chat messages first.
func (s *Service) History(ctx context.Context, code string) ([]domain.ChatMessage, error) {
	msgs, err := s.store.MessagesForRoom(ctx, code, historyLimit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}
