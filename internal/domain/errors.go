package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNoOpenMarket  = errors.New("no open market")
	ErrNotSettled    = errors.New("market not settled")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
)
