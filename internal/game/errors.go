package game

import "errors"

var (
	// ErrNoActiveSeed means the player has no active seed pair and must
	// create or rotate one before betting.
	ErrNoActiveSeed = errors.New("no active seed")

	// ErrSeedNotActive means a nonce advance hit a retired pair, usually a
	// bet racing a rotation. The caller should re-resolve the active pair.
	ErrSeedNotActive = errors.New("seed not active")

	// ErrInvalidWager rejects non-positive bet amounts.
	ErrInvalidWager = errors.New("bet amount must be positive")

	// ErrInvalidTarget rejects targets outside [MinTarget, MaxTarget].
	ErrInvalidTarget = errors.New("target out of range")

	// ErrWalletTaken means a registration lost a race with another for the
	// same wallet address. The wallet resolves to a player on re-lookup.
	ErrWalletTaken = errors.New("wallet already registered")

	// ErrNotFound is returned for unknown player, seed or bet ids.
	ErrNotFound = errors.New("not found")
)
