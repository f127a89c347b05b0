package game

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBetListLimit = 20
	maxBetListLimit     = 100
)

// Config carries the house terms applied at settlement.
type Config struct {
	HouseEdgePct     float64 // percent skimmed off the fair multiplier
	RevenueShareFrac float64 // fraction of positive house profit accrued to the share pool
}

func DefaultConfig() Config {
	return Config{
		HouseEdgePct:     DefaultHouseEdgePct,
		RevenueShareFrac: 0.30,
	}
}

// BetFeed mirrors settled bets into a capped external feed (Redis) used as
// the fast path for the recent-bets projection. Payloads are opaque JSON.
type BetFeed interface {
	PushBet(ctx context.Context, payload []byte) error
	RecentBets(ctx context.Context, limit int) ([][]byte, error)
}

// Service is the settlement core: seed lifecycle, bet placement, house
// ledger, verification and read projections. All state lives behind Store;
// the service itself holds no mutable data and is safe for concurrent use.
type Service struct {
	store Store
	feed  BetFeed // may be nil
	hub   *Hub    // may be nil
	cfg   Config
}

func NewService(store Store, feed BetFeed, hub *Hub, cfg Config) *Service {
	return &Service{store: store, feed: feed, hub: hub, cfg: cfg}
}

// Authenticate finds or creates the player behind a wallet address and
// guarantees an active seed pair exists, returning its public view. The
// server seed is never part of the response.
func (s *Service) Authenticate(ctx context.Context, walletAddress string) (*Player, SeedPublic, error) {
	wallet := strings.ToLower(strings.TrimSpace(walletAddress))

	player, err := s.store.PlayerByWallet(ctx, wallet)
	if err == ErrNotFound {
		player = &Player{
			ID:            uuid.NewString(),
			WalletAddress: wallet,
			CreatedAt:     time.Now(),
		}
		switch createErr := s.store.CreatePlayer(ctx, player); {
		case createErr == nil:
			log.Printf("[AUTH] Registered player %s (%s)", player.ID, wallet)
		case errors.Is(createErr, ErrWalletTaken):
			// Lost a registration race; the wallet resolves now.
			if player, err = s.store.PlayerByWallet(ctx, wallet); err != nil {
				return nil, SeedPublic{}, err
			}
		default:
			return nil, SeedPublic{}, createErr
		}
	} else if err != nil {
		return nil, SeedPublic{}, err
	}

	pair, err := s.store.ActiveSeed(ctx, player.ID)
	if err == ErrNoActiveSeed {
		pair, err = s.createPair(ctx, player.ID, "")
	}
	if err != nil {
		return nil, SeedPublic{}, err
	}

	return player, pair.Public(), nil
}

// ActiveSeed returns the public view of the player's active pair.
func (s *Service) ActiveSeed(ctx context.Context, playerID string) (SeedPublic, error) {
	pair, err := s.store.ActiveSeed(ctx, playerID)
	if err != nil {
		return SeedPublic{}, err
	}
	return pair.Public(), nil
}

// RotateSeed retires and reveals the player's current pair and activates a
// fresh one in a single atomic store operation: a concurrent bet observes
// either the old pair or the new one, never a window with no pair. The
// revealed previous pair is returned so the player can verify every bet it
// settled. Bets that already consumed a nonce under the old pair settle
// normally.
func (s *Service) RotateSeed(ctx context.Context, req RotateSeedRequest) (*RotateSeedResponse, error) {
	pair := newSeedPair(req.PlayerID, req.ClientSeed)

	prev, err := s.store.RotatePair(ctx, pair)
	if err != nil {
		return nil, err
	}

	var revealed *RevealedSeed
	if prev != nil {
		r := prev.Revealed()
		revealed = &r
		log.Printf("[SEED] Revealed pair %s for player %s after %d bets", prev.ID, req.PlayerID, prev.Nonce)
	}
	log.Printf("[SEED] Activated pair %s for player %s", pair.ID, req.PlayerID)

	return &RotateSeedResponse{Seed: pair.Public(), PreviousSeed: revealed}, nil
}

func newSeedPair(playerID, clientSeed string) *SeedPair {
	serverSeed := GenerateServerSeed()
	if clientSeed == "" {
		clientSeed = GenerateClientSeed()
	}

	return &SeedPair{
		ID:             uuid.NewString(),
		PlayerID:       playerID,
		ServerSeed:     serverSeed,
		ServerSeedHash: HashServerSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          0,
		Active:         true,
		CreatedAt:      time.Now(),
	}
}

func (s *Service) createPair(ctx context.Context, playerID, clientSeed string) (*SeedPair, error) {
	pair := newSeedPair(playerID, clientSeed)
	if err := s.store.CreateSeedPair(ctx, pair); err != nil {
		return nil, err
	}

	log.Printf("[SEED] Activated pair %s for player %s", pair.ID, playerID)
	return pair, nil
}

// PlaceBet settles a roll-under dice bet against the player's active pair.
// Validation happens before any state change: a rejected bet never consumes
// a nonce and never touches a ledger. For a fixed pair and nonce the outcome
// is fully determined before this call; the wager and target only decide how
// that outcome pays.
func (s *Service) PlaceBet(ctx context.Context, req DiceRollRequest) (*DiceRollResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidWager
	}
	if !ValidTarget(req.Target) {
		return nil, ErrInvalidTarget
	}

	// A rotation can retire the pair between resolving it and consuming a
	// nonce; re-resolve and settle under the replacement pair.
	const maxPairRetries = 5

	var pair *SeedPair
	var nonce int
	for attempt := 0; ; attempt++ {
		var err error
		pair, err = s.store.ActiveSeed(ctx, req.PlayerID)
		if err != nil {
			return nil, err
		}

		nonce, err = s.store.AdvanceNonce(ctx, pair.ID)
		if err == ErrSeedNotActive && attempt < maxPairRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	outcome := DeriveOutcome(pair.ServerSeed, pair.ClientSeed, nonce, OutcomeRange)
	won, multiplier, profit := SettleDice(req.Amount, req.Target, outcome, s.cfg.HouseEdgePct)

	bet := &Bet{
		ID:         uuid.NewString(),
		PlayerID:   req.PlayerID,
		SeedPairID: pair.ID,
		Amount:     req.Amount,
		Target:     req.Target,
		Multiplier: multiplier,
		Outcome:    outcome,
		Won:        won,
		Profit:     profit,
		Proof:      NewFairnessProof(pair.ServerSeedHash, pair.ClientSeed, nonce, outcome),
		CreatedAt:  time.Now(),
	}

	if err := s.store.InsertBet(ctx, bet); err != nil {
		return nil, err
	}

	// House profit is the wager on a loss, minus the payout overhang on a win.
	houseProfit := req.Amount
	if won {
		houseProfit = -profit
	}
	revenueShare := 0.0
	if houseProfit > 0 {
		revenueShare = houseProfit * s.cfg.RevenueShareFrac
	}
	day := bet.CreatedAt.Format("2006-01-02")
	if err := s.store.RecordHouseBet(ctx, day, req.Amount, houseProfit, revenueShare); err != nil {
		log.Printf("[HOUSE] Failed to record bet %s: %v", bet.ID, err)
	}

	player, err := s.store.ApplyBetToPlayer(ctx, req.PlayerID, bet)
	if err != nil {
		log.Printf("[DICE] Failed to update stats for player %s: %v", req.PlayerID, err)
	}

	s.publish(ctx, bet)

	status := "lost"
	if won {
		status = "won"
	}
	log.Printf("[DICE] Player %s rolled %d under %d, %s %.8f at x%.4f",
		req.PlayerID, outcome, req.Target, status, bet.Amount, multiplier)

	return &DiceRollResponse{Bet: bet, Player: player}, nil
}

func (s *Service) publish(ctx context.Context, bet *Bet) {
	if s.hub != nil {
		s.hub.Broadcast(BetFeedMessage{Type: "bet_settled", Data: bet})
	}
	if s.feed != nil {
		payload, err := json.Marshal(bet)
		if err == nil {
			err = s.feed.PushBet(ctx, payload)
		}
		if err != nil {
			log.Printf("[DICE] Bet feed push failed: %v", err)
		}
	}
}

// Verify recomputes commitment and outcome from caller-supplied values. It
// takes no dependency on stored state.
func (s *Service) Verify(req VerifyRequest) VerifyResponse {
	hashOK, outcomeOK := VerifyDiceRoll(req.ServerSeed, req.ServerSeedHash, req.ClientSeed, req.Nonce, req.Result)
	return VerifyResponse{
		HashMatches:      hashOK,
		OutcomeMatches:   outcomeOK,
		Valid:            hashOK && outcomeOK,
		CalculatedResult: DeriveOutcome(req.ServerSeed, req.ClientSeed, req.Nonce, OutcomeRange),
	}
}

// RecentBets is a best-effort projection: it prefers the cached feed, falls
// back to the store, and degrades to an empty slice rather than failing.
func (s *Service) RecentBets(ctx context.Context, limit int) []Bet {
	limit = clampLimit(limit)

	if s.feed != nil {
		if bets, ok := s.cachedBets(ctx, limit); ok {
			return bets
		}
	}

	bets, err := s.store.RecentBets(ctx, limit)
	if err != nil {
		log.Printf("[DICE] Recent bets query failed: %v", err)
		return []Bet{}
	}
	return bets
}

func (s *Service) cachedBets(ctx context.Context, limit int) ([]Bet, bool) {
	raw, err := s.feed.RecentBets(ctx, limit)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	bets := make([]Bet, 0, len(raw))
	for _, payload := range raw {
		var bet Bet
		if err := json.Unmarshal(payload, &bet); err != nil {
			return nil, false
		}
		bets = append(bets, bet)
	}
	return bets, true
}

// PlayerBets lists a player's settlement history, newest first.
func (s *Service) PlayerBets(ctx context.Context, playerID string, limit int) []Bet {
	bets, err := s.store.PlayerBets(ctx, playerID, clampLimit(limit))
	if err != nil {
		log.Printf("[DICE] Player bets query failed for %s: %v", playerID, err)
		return []Bet{}
	}
	return bets
}

// HouseStats returns the latest day bucket, or a zero row when there is no
// data yet. Downstream yield estimators need a number, not an error.
func (s *Service) HouseStats(ctx context.Context) *HouseStats {
	stats, err := s.store.LatestHouseStats(ctx)
	if err != nil || stats == nil {
		if err != nil {
			log.Printf("[HOUSE] Stats query failed: %v", err)
		}
		return &HouseStats{Day: time.Now().Format("2006-01-02")}
	}
	return stats
}

// PlayerStats returns the player's running statistics.
func (s *Service) PlayerStats(ctx context.Context, playerID string) (*Player, error) {
	return s.store.Player(ctx, playerID)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultBetListLimit
	}
	if limit > maxBetListLimit {
		return maxBetListLimit
	}
	return limit
}
