package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WalidA2D/NEURALINKED/domain"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) GetPool() *pgxpool.Pool {
	return r.pool
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) CreateUser(ctx context.Context, username, passwordHash string) (string, error) {
	query := "INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id"

	var id string
	err := r.pool.QueryRow(ctx, query, username, passwordHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", domain.ErrDuplicateUsername
		}
		return "", fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return id, nil
}

func (r *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	query := "SELECT id, username, password_hash FROM users WHERE username = $1"

	var user domain.User
	err := r.pool.QueryRow(ctx, query, username).Scan(&user.Id, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return user, nil
}

func (r *PostgresRepo) GetUserById(ctx context.Context, id string) (domain.User, error) {
	query := "SELECT id, username, password_hash FROM users WHERE id = $1"

	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.Id, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return user, nil
}

// CreateRoom inserts a room and seats its creator as host in one
// transaction.
func (r *PostgresRepo) CreateRoom(ctx context.Context, code, hostUserId string) (domain.RoomRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.RoomRecord{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer tx.Rollback(ctx)

	var roomId string
	err = tx.QueryRow(ctx, "INSERT INTO rooms (code) VALUES ($1) RETURNING id", code).Scan(&roomId)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.RoomRecord{}, domain.ErrDuplicateRoomCode
		}
		return domain.RoomRecord{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO room_players (room_id, user_id, role) VALUES ($1, $2, $3)",
		roomId, hostUserId, domain.RoleHost)
	if err != nil {
		return domain.RoomRecord{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RoomRecord{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	return r.GetRoomByCode(ctx, code)
}

func (r *PostgresRepo) GetRoomByCode(ctx context.Context, code string) (domain.RoomRecord, error) {
	query := "SELECT id, code, status, created_at, started_at FROM rooms WHERE code = $1"

	var record domain.RoomRecord
	err := r.pool.QueryRow(ctx, query, code).
		Scan(&record.Id, &record.Code, &record.Status, &record.CreatedAt, &record.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoomRecord{}, domain.ErrRoomNotFound
		}
		return domain.RoomRecord{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	players, err := r.roomPlayers(ctx, record.Id)
	if err != nil {
		return domain.RoomRecord{}, err
	}
	record.Players = players
	return record, nil
}

func (r *PostgresRepo) roomPlayers(ctx context.Context, roomId string) ([]domain.RoomPlayer, error) {
	query := `SELECT rp.user_id, u.username, rp.role, rp.joined_at
		FROM room_players rp
		JOIN users u ON u.id = rp.user_id
		WHERE rp.room_id = $1
		ORDER BY rp.joined_at, rp.user_id`

	rows, err := r.pool.Query(ctx, query, roomId)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	var players []domain.RoomPlayer
	for rows.Next() {
		var p domain.RoomPlayer
		if err := rows.Scan(&p.UserId, &p.Username, &p.Role, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return players, nil
}

// AddPlayer seats a user in a waiting room. The capacity check happens
// inside the insert so two concurrent joins cannot overfill the room.
func (r *PostgresRepo) AddPlayer(ctx context.Context, roomId, userId string) error {
	query := `INSERT INTO room_players (room_id, user_id, role)
		SELECT $1, $2, $3
		WHERE (SELECT count(*) FROM room_players WHERE room_id = $1) < $4`

	tag, err := r.pool.Exec(ctx, query, roomId, userId, domain.RolePlayer, domain.MaxRoomPlayers)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyInRoom
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomFull
	}
	return nil
}

// StartRoom flips a waiting room to playing.
func (r *PostgresRepo) StartRoom(ctx context.Context, roomId string) error {
	query := "UPDATE rooms SET status = $1, started_at = now() WHERE id = $2 AND status = $3"

	tag, err := r.pool.Exec(ctx, query, domain.RoomStatusPlaying, roomId, domain.RoomStatusWaiting)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)", roomId).Scan(&exists); err != nil {
			return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		if !exists {
			return domain.ErrRoomNotFound
		}
		return domain.ErrRoomAlreadyStarted
	}
	return nil
}

// LeaveRoom unseats a user. When the host leaves, the longest-seated
// remaining player inherits the role; when the last player leaves, the
// room row goes with them. Returns whether the room was deleted.
func (r *PostgresRepo) LeaveRoom(ctx context.Context, roomId, userId string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer tx.Rollback(ctx)

	var role string
	err = tx.QueryRow(ctx,
		"DELETE FROM room_players WHERE room_id = $1 AND user_id = $2 RETURNING role",
		roomId, userId).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotInRoom
		}
		return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	var remaining int
	err = tx.QueryRow(ctx, "SELECT count(*) FROM room_players WHERE room_id = $1", roomId).Scan(&remaining)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	deleted := false
	if remaining == 0 {
		if _, err := tx.Exec(ctx, "DELETE FROM rooms WHERE id = $1", roomId); err != nil {
			return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		deleted = true
	} else if role == domain.RoleHost {
		promote := `UPDATE room_players SET role = $1
			WHERE room_id = $2 AND user_id = (
				SELECT user_id FROM room_players WHERE room_id = $2
				ORDER BY joined_at, user_id LIMIT 1)`
		if _, err := tx.Exec(ctx, promote, domain.RoleHost, roomId); err != nil {
			return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return deleted, nil
}

// SaveMessage stores a relayed chat message and returns it with the row
// id, which becomes the canonical message id.
func (r *PostgresRepo) SaveMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	query := `INSERT INTO messages (room_code, author, content, sent_at)
		VALUES ($1, $2, $3, to_timestamp($4 / 1000.0))
		RETURNING id`

	var id string
	err := r.pool.QueryRow(ctx, query, msg.RoomCode, msg.User, msg.Text, msg.Ts).Scan(&id)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	msg.Id = id
	return msg, nil
}

// MessagesForRoom returns the oldest messages first, capped at limit.
func (r *PostgresRepo) MessagesForRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error) {
	query := `SELECT id, room_code, author, content, (extract(epoch FROM sent_at) * 1000)::bigint
		FROM messages
		WHERE room_code = $1
		ORDER BY sent_at, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.Id, &m.RoomCode, &m.User, &m.Text, &m.Ts); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return msgs, nil
}
