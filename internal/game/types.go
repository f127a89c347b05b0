package game

import (
	"time"
)

// SeedPair is one commitment epoch for one player. The server seed stays
// hidden while the pair is active; only the hash is public. A pair is never
// deleted once created, since every bet it settled points back at it.
type SeedPair struct {
	ID             string     `json:"id"`
	PlayerID       string     `json:"player_id"`
	ServerSeed     string     `json:"-"` // Never serialized until reveal
	ServerSeedHash string     `json:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed"`
	Nonce          int        `json:"nonce"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	RevealedAt     *time.Time `json:"revealed_at,omitempty"`
}

// SeedPublic is the player-facing view of a seed pair: everything except the
// server secret.
type SeedPublic struct {
	SeedID         string `json:"seed_id"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`
}

// RevealedSeed is returned once a pair has been rotated out and its secret is
// safe to disclose for self-verification.
type RevealedSeed struct {
	SeedID         string `json:"seed_id"`
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`
}

// Public strips the server secret from a pair.
func (p *SeedPair) Public() SeedPublic {
	return SeedPublic{
		SeedID:         p.ID,
		ServerSeedHash: p.ServerSeedHash,
		ClientSeed:     p.ClientSeed,
		Nonce:          p.Nonce,
	}
}

// Revealed exposes the full triple of a retired pair.
func (p *SeedPair) Revealed() RevealedSeed {
	return RevealedSeed{
		SeedID:         p.ID,
		ServerSeed:     p.ServerSeed,
		ServerSeedHash: p.ServerSeedHash,
		ClientSeed:     p.ClientSeed,
		Nonce:          p.Nonce,
	}
}

// Bet is an immutable settlement record. Created exactly once, never updated.
type Bet struct {
	ID         string        `json:"id"`
	PlayerID   string        `json:"player_id"`
	SeedPairID string        `json:"seed_pair_id"`
	Amount     float64       `json:"amount"`
	Target     int           `json:"target"`
	Multiplier float64       `json:"multiplier"`
	Outcome    int           `json:"outcome"`
	Won        bool          `json:"won"`
	Profit     float64       `json:"profit"`
	Proof      FairnessProof `json:"fairness_proof"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Player carries identity plus the running statistics updated on every
// settled bet.
type Player struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	TotalWagered  float64   `json:"total_wagered"`
	TotalWon      float64   `json:"total_won"`
	TotalProfit   float64   `json:"total_profit"`
	GamesPlayed   int       `json:"games_played"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
}

// HouseStats is one day-bucketed aggregate row. Profit is house-side: wagers
// taken in minus payouts made.
type HouseStats struct {
	Day              string  `json:"day"` // YYYY-MM-DD, server clock
	Volume           float64 `json:"volume"`
	Profit           float64 `json:"profit"`
	Bets             int     `json:"bets"`
	RevenueSharePool float64 `json:"revenue_share_pool"`
}

// DiceRollRequest is a bet placement request.
type DiceRollRequest struct {
	PlayerID string  `json:"player_id"`
	Amount   float64 `json:"amount"`
	Target   int     `json:"target"`
}

// DiceRollResponse is the settled bet plus the player's refreshed stats.
type DiceRollResponse struct {
	Bet    *Bet    `json:"bet"`
	Player *Player `json:"player,omitempty"`
}

// RotateSeedRequest rotates a player's seed pair. ClientSeed is optional; a
// random one is generated when empty.
type RotateSeedRequest struct {
	PlayerID   string `json:"player_id"`
	ClientSeed string `json:"client_seed,omitempty"`
}

// RotateSeedResponse returns the new public pair and, when one existed, the
// revealed previous pair for self-verification.
type RotateSeedResponse struct {
	Seed         SeedPublic    `json:"seed"`
	PreviousSeed *RevealedSeed `json:"previous_seed,omitempty"`
}

// VerifyRequest carries a fully revealed seed triple and a claimed outcome.
type VerifyRequest struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`
	Result         int    `json:"result"`
}

// VerifyResponse reports both independent checks, plus what the outcome
// should have been so a mismatch is explainable.
type VerifyResponse struct {
	HashMatches      bool `json:"hash_matches"`
	OutcomeMatches   bool `json:"outcome_matches"`
	Valid            bool `json:"valid"`
	CalculatedResult int  `json:"calculated_result"`
}

// BetFeedMessage is broadcast to websocket clients when a bet settles.
type BetFeedMessage struct {
	Type string `json:"type"`
	Data *Bet   `json:"data"`
}
