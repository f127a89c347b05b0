// Package storage provides the Postgres implementation of the game store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"fairdice/internal/game"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ game.Store = (*Postgres)(nil)

func (p *Postgres) CreatePlayer(ctx context.Context, player *game.Player) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO players (id, wallet_address, created_at)
		VALUES ($1, $2, $3)`,
		player.ID, player.WalletAddress, player.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return game.ErrWalletTaken
	}
	return err
}

const playerColumns = `id, wallet_address, created_at, total_wagered, total_won,
	total_profit, games_played, current_streak, best_streak`

func (p *Postgres) Player(ctx context.Context, id string) (*game.Player, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (p *Postgres) PlayerByWallet(ctx context.Context, walletAddress string) (*game.Player, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE wallet_address = $1`, walletAddress)
	return scanPlayer(row)
}

func scanPlayer(row *sql.Row) (*game.Player, error) {
	var pl game.Player
	err := row.Scan(&pl.ID, &pl.WalletAddress, &pl.CreatedAt, &pl.TotalWagered,
		&pl.TotalWon, &pl.TotalProfit, &pl.GamesPlayed, &pl.CurrentStreak, &pl.BestStreak)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

func (p *Postgres) ApplyBetToPlayer(ctx context.Context, playerID string, bet *game.Bet) (*game.Player, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE players SET
			total_wagered  = total_wagered + $2,
			total_won      = total_won + CASE WHEN $3 THEN $4 ELSE 0 END,
			total_profit   = total_profit + $5,
			games_played   = games_played + 1,
			current_streak = CASE WHEN $3 THEN current_streak + 1 ELSE 0 END,
			best_streak    = GREATEST(best_streak, CASE WHEN $3 THEN current_streak + 1 ELSE 0 END)
		WHERE id = $1
		RETURNING `+playerColumns,
		playerID, bet.Amount, bet.Won, bet.Amount*bet.Multiplier, bet.Profit)

	pl, err := scanPlayer(row)
	if err == game.ErrNotFound {
		return nil, nil
	}
	return pl, err
}

const seedColumns = `id, player_id, server_seed, server_seed_hash, client_seed,
	nonce, active, created_at, revealed_at`

func (p *Postgres) ActiveSeed(ctx context.Context, playerID string) (*game.SeedPair, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+seedColumns+` FROM seed_pairs WHERE player_id = $1 AND active`, playerID)
	pair, err := scanSeed(row)
	if err == game.ErrNotFound {
		return nil, game.ErrNoActiveSeed
	}
	return pair, err
}

func scanSeed(row *sql.Row) (*game.SeedPair, error) {
	var pair game.SeedPair
	var revealedAt sql.NullTime
	err := row.Scan(&pair.ID, &pair.PlayerID, &pair.ServerSeed, &pair.ServerSeedHash,
		&pair.ClientSeed, &pair.Nonce, &pair.Active, &pair.CreatedAt, &revealedAt)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if revealedAt.Valid {
		pair.RevealedAt = &revealedAt.Time
	}
	return &pair, nil
}

func (p *Postgres) CreateSeedPair(ctx context.Context, pair *game.SeedPair) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Retire the previous pair without revealing it; the partial unique
	// index on (player_id) WHERE active enforces the one-active invariant.
	if _, err := tx.ExecContext(ctx,
		`UPDATE seed_pairs SET active = false WHERE player_id = $1 AND active`,
		pair.PlayerID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO seed_pairs (id, player_id, server_seed, server_seed_hash,
			client_seed, nonce, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7)`,
		pair.ID, pair.PlayerID, pair.ServerSeed, pair.ServerSeedHash,
		pair.ClientSeed, pair.Nonce, pair.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) RotatePair(ctx context.Context, pair *game.SeedPair) (*game.SeedPair, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Reveal the active pair and install the replacement in one transaction:
	// a concurrent bet resolves either the old pair or the new one, never a
	// window with no pair. The revealed_at guard keeps racing rotations from
	// re-stamping a pair that was already disclosed.
	row := tx.QueryRowContext(ctx, `
		UPDATE seed_pairs SET active = false, revealed_at = now()
		WHERE player_id = $1 AND active AND revealed_at IS NULL
		RETURNING `+seedColumns, pair.PlayerID)
	prev, err := scanSeed(row)
	if err != nil && err != game.ErrNotFound {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO seed_pairs (id, player_id, server_seed, server_seed_hash,
			client_seed, nonce, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7)`,
		pair.ID, pair.PlayerID, pair.ServerSeed, pair.ServerSeedHash,
		pair.ClientSeed, pair.Nonce, pair.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return prev, nil
}

func (p *Postgres) AdvanceNonce(ctx context.Context, seedID string) (int, error) {
	// Single-statement increment-and-return: concurrent bets on one pair
	// serialize on the row lock and each observe a distinct nonce.
	var consumed int
	err := p.db.QueryRowContext(ctx, `
		UPDATE seed_pairs SET nonce = nonce + 1
		WHERE id = $1 AND active
		RETURNING nonce - 1`, seedID).Scan(&consumed)
	if err == sql.ErrNoRows {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM seed_pairs WHERE id = $1)`, seedID).Scan(&exists); err != nil {
			return 0, err
		}
		if exists {
			return 0, game.ErrSeedNotActive
		}
		return 0, game.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return consumed, nil
}

func (p *Postgres) InsertBet(ctx context.Context, bet *game.Bet) error {
	proof, err := json.Marshal(bet.Proof)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO bets (id, player_id, seed_pair_id, amount, target,
			multiplier, outcome, won, profit, fairness_proof, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		bet.ID, bet.PlayerID, bet.SeedPairID, bet.Amount, bet.Target,
		bet.Multiplier, bet.Outcome, bet.Won, bet.Profit, proof, bet.CreatedAt)
	return err
}

const betColumns = `id, player_id, seed_pair_id, amount, target, multiplier,
	outcome, won, profit, fairness_proof, created_at`

func (p *Postgres) RecentBets(ctx context.Context, limit int) ([]game.Bet, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+betColumns+` FROM bets ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

func (p *Postgres) PlayerBets(ctx context.Context, playerID string, limit int) ([]game.Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE player_id = $1 ORDER BY created_at DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

func scanBets(rows *sql.Rows) ([]game.Bet, error) {
	bets := []game.Bet{}
	for rows.Next() {
		var bet game.Bet
		var proof []byte
		if err := rows.Scan(&bet.ID, &bet.PlayerID, &bet.SeedPairID, &bet.Amount,
			&bet.Target, &bet.Multiplier, &bet.Outcome, &bet.Won, &bet.Profit,
			&proof, &bet.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(proof, &bet.Proof); err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

func (p *Postgres) RecordHouseBet(ctx context.Context, day string, volume, houseProfit, revenueShare float64) error {
	// Atomic additive upsert: many concurrent bets may hit the same day row.
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO house_stats (day, volume, profit, bets, revenue_share_pool)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (day) DO UPDATE SET
			volume             = house_stats.volume + EXCLUDED.volume,
			profit             = house_stats.profit + EXCLUDED.profit,
			bets               = house_stats.bets + 1,
			revenue_share_pool = house_stats.revenue_share_pool + EXCLUDED.revenue_share_pool`,
		day, volume, houseProfit, revenueShare)
	return err
}

func (p *Postgres) LatestHouseStats(ctx context.Context) (*game.HouseStats, error) {
	var stats game.HouseStats
	err := p.db.QueryRowContext(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), volume, profit, bets, revenue_share_pool
		FROM house_stats ORDER BY day DESC LIMIT 1`).
		Scan(&stats.Day, &stats.Volume, &stats.Profit, &stats.Bets, &stats.RevenueSharePool)
	if err == sql.ErrNoRows {
		return &game.HouseStats{Day: time.Now().Format("2006-01-02")}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
