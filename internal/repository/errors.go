package repository

import "github.com/pkg/errors"

var (
	ErrNoDatabase = errors.New("session database is not configured")
)
