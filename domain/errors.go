package domain

import "errors"

// Sentinel errors shared across packages. Repositories and services wrap
// lower-level failures with fmt.Errorf("%w: %w", sentinel, cause) so
// handlers can branch with errors.Is while logs keep the cause.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrRoomNotFound       = errors.New("room not found")
	ErrDuplicateRoomCode  = errors.New("room code already in use")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotJoinable    = errors.New("room is not joinable")
	ErrAlreadyInRoom      = errors.New("player already in room")
	ErrNotInRoom          = errors.New("player not in room")
	ErrNotHost            = errors.New("player is not the host")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrRoomAlreadyStarted = errors.New("room already started")

	ErrInvalidSigningAlg     = errors.New("invalid signing algorithm")
	ErrExpiredToken          = errors.New("token expired")
	ErrInvalidTokenSignature = errors.New("invalid token signature")
	ErrCorruptedToken        = errors.New("corrupted token")

	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrInvalidUsername  = errors.New("invalid username format")

	UnexpectedDatabaseError               = errors.New("unexpected database error")
	UnexpectedTokenGenerationError        = errors.New("unexpected token generation error")
	UnexpectedTokenVerificationError      = errors.New("unexpected token verification error")
	UnexpectedPasswordHashingError        = errors.New("unexpected password hashing error")
	UnexpectedPasswordHashComparisonError = errors.New("unexpected password hash comparison error")
)
