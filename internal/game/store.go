package game

import "context"

// Store is the persistence boundary for the settlement core. Implementations
// must make AdvanceNonce an atomic increment-and-return and RecordHouseBet an
// atomic additive update; those two are the only serialization points the
// core relies on.
type Store interface {
	// Players
	CreatePlayer(ctx context.Context, player *Player) error
	Player(ctx context.Context, id string) (*Player, error)
	PlayerByWallet(ctx context.Context, walletAddress string) (*Player, error)
	// ApplyBetToPlayer folds a settled bet into the player's running stats
	// and returns the updated row. Unknown players are a no-op (nil, nil).
	ApplyBetToPlayer(ctx context.Context, playerID string, bet *Bet) (*Player, error)

	// Seed pairs. CreateSeedPair atomically deactivates any currently active
	// pair for the player (retired, not revealed) before inserting the new
	// one. RotatePair reveals the active pair (stamping RevealedAt, returning
	// it; nil when there was none) and activates the replacement in a single
	// atomic step, so a concurrent reader observes either the old pair or the
	// new one, never a gap. Pairs already revealed are never touched again.
	// AdvanceNonce returns the nonce value consumed by the caller
	// (pre-increment) and fails with ErrSeedNotActive on a retired pair.
	ActiveSeed(ctx context.Context, playerID string) (*SeedPair, error)
	CreateSeedPair(ctx context.Context, pair *SeedPair) error
	RotatePair(ctx context.Context, pair *SeedPair) (*SeedPair, error)
	AdvanceNonce(ctx context.Context, seedID string) (int, error)

	// Bets are append-only.
	InsertBet(ctx context.Context, bet *Bet) error
	RecentBets(ctx context.Context, limit int) ([]Bet, error)
	PlayerBets(ctx context.Context, playerID string, limit int) ([]Bet, error)

	// House ledger. RecordHouseBet adds one bet's deltas to the day bucket,
	// creating it if needed. LatestHouseStats returns a zero-valued row when
	// no data exists; it never errors for absence.
	RecordHouseBet(ctx context.Context, day string, volume, houseProfit, revenueShare float64) error
	LatestHouseStats(ctx context.Context) (*HouseStats, error)
}
