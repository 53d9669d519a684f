package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidation       = errors.New("invalid input")
	ErrUnsupportedAsset = errors.New("unsupported asset")
	ErrNotConfigured    = errors.New("provider not configured")
	ErrNoData           = errors.New("no data available")
	ErrContextDone      = errors.New("context cancelled")
)
