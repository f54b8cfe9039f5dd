package domain

import "errors"

var (
	ErrIssueNotFound    = errors.New("issue not found")
	ErrIssueExists      = errors.New("issue already exists")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotAuthenticated = errors.New("connection not authenticated")
	ErrSessionClosed    = errors.New("streaming session closed")
)
