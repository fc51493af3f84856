package domain

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotConnected   = errors.New("notion is not connected")
	ErrNoPageAccess   = errors.New("cannot access the selected Notion page")
	ErrSyncInProgress = errors.New("a sync is already running for this page")
	ErrStatusNotFound = errors.New("no sync status found")
	ErrLockLost       = errors.New("sync lock expired or was taken over")
)
