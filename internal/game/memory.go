package game

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs unit tests and local development
// without Postgres. A single mutex serializes every mutation, which trivially
// satisfies the nonce and ledger atomicity contracts.
type MemStore struct {
	mu      sync.Mutex
	players map[string]*Player
	wallets map[string]string // wallet address -> player id
	seeds   map[string]*SeedPair
	active  map[string]string // player id -> active seed id
	bets    []Bet
	house   map[string]*HouseStats
}

func NewMemStore() *MemStore {
	return &MemStore{
		players: make(map[string]*Player),
		wallets: make(map[string]string),
		seeds:   make(map[string]*SeedPair),
		active:  make(map[string]string),
		house:   make(map[string]*HouseStats),
	}
}

func (m *MemStore) CreatePlayer(_ context.Context, player *Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet := strings.ToLower(player.WalletAddress)
	if _, ok := m.wallets[wallet]; ok {
		return ErrWalletTaken
	}

	cp := *player
	m.players[cp.ID] = &cp
	m.wallets[wallet] = cp.ID
	return nil
}

func (m *MemStore) Player(_ context.Context, id string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) PlayerByWallet(_ context.Context, walletAddress string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.wallets[strings.ToLower(walletAddress)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.players[id]
	return &cp, nil
}

func (m *MemStore) ApplyBetToPlayer(_ context.Context, playerID string, bet *Bet) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[playerID]
	if !ok {
		return nil, nil
	}

	p.TotalWagered += bet.Amount
	if bet.Won {
		p.TotalWon += bet.Amount * bet.Multiplier
		p.CurrentStreak++
		if p.CurrentStreak > p.BestStreak {
			p.BestStreak = p.CurrentStreak
		}
	} else {
		p.CurrentStreak = 0
	}
	p.TotalProfit += bet.Profit
	p.GamesPlayed++

	cp := *p
	return &cp, nil
}

func (m *MemStore) ActiveSeed(_ context.Context, playerID string) (*SeedPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.active[playerID]
	if !ok {
		return nil, ErrNoActiveSeed
	}
	cp := *m.seeds[id]
	return &cp, nil
}

func (m *MemStore) CreateSeedPair(_ context.Context, pair *SeedPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Retire the previous pair without revealing it. Disclosure only
	// happens through RotatePair on explicit rotation.
	if prev, ok := m.active[pair.PlayerID]; ok {
		m.seeds[prev].Active = false
	}

	cp := *pair
	cp.Active = true
	m.seeds[cp.ID] = &cp
	m.active[cp.PlayerID] = cp.ID
	return nil
}

func (m *MemStore) RotatePair(_ context.Context, pair *SeedPair) (*SeedPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Reveal and replace under one lock: a concurrent ActiveSeed sees either
	// the old pair or the new one. Only the active pair is ever revealed, so
	// pairs retired earlier keep their state.
	var prev *SeedPair
	if id, ok := m.active[pair.PlayerID]; ok {
		old := m.seeds[id]
		old.Active = false
		now := time.Now()
		old.RevealedAt = &now
		cp := *old
		prev = &cp
	}

	cp := *pair
	cp.Active = true
	m.seeds[cp.ID] = &cp
	m.active[cp.PlayerID] = cp.ID
	return prev, nil
}

func (m *MemStore) AdvanceNonce(_ context.Context, seedID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair, ok := m.seeds[seedID]
	if !ok {
		return 0, ErrNotFound
	}
	if !pair.Active {
		return 0, ErrSeedNotActive
	}

	consumed := pair.Nonce
	pair.Nonce++
	return consumed, nil
}

func (m *MemStore) InsertBet(_ context.Context, bet *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bets = append(m.bets, *bet)
	return nil
}

func (m *MemStore) RecentBets(_ context.Context, limit int) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collectBets(limit, func(Bet) bool { return true }), nil
}

func (m *MemStore) PlayerBets(_ context.Context, playerID string, limit int) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collectBets(limit, func(b Bet) bool { return b.PlayerID == playerID }), nil
}

// collectBets returns newest-first. Callers hold the lock.
func (m *MemStore) collectBets(limit int, keep func(Bet) bool) []Bet {
	out := make([]Bet, 0, limit)
	for i := len(m.bets) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(m.bets[i]) {
			out = append(out, m.bets[i])
		}
	}
	return out
}

func (m *MemStore) RecordHouseBet(_ context.Context, day string, volume, houseProfit, revenueShare float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.house[day]
	if !ok {
		row = &HouseStats{Day: day}
		m.house[day] = row
	}
	row.Volume += volume
	row.Profit += houseProfit
	row.Bets++
	row.RevenueSharePool += revenueShare
	return nil
}

func (m *MemStore) LatestHouseStats(_ context.Context) (*HouseStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.house) == 0 {
		return &HouseStats{Day: time.Now().Format("2006-01-02")}, nil
	}

	days := make([]string, 0, len(m.house))
	for day := range m.house {
		days = append(days, day)
	}
	sort.Strings(days)

	cp := *m.house[days[len(days)-1]]
	return &cp, nil
}
