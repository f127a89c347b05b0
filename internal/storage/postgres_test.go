package storage

import (
	"context"
	"database/sql"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fairdice/internal/database"
	"fairdice/internal/game"
)

var testStore *Postgres

func mustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:latest",
		postgres.WithDatabase("fairdice_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(db, "../../migrations"); err != nil {
		return dbContainer.Terminate, err
	}

	testStore = NewPostgres(db)
	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(0)
	}

	teardown, err := mustStartPostgresContainer()
	if err != nil {
		os.Exit(0)
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func insertTestPlayer(t *testing.T, wallet string) *game.Player {
	t.Helper()
	player := &game.Player{
		ID:            uuid.NewString(),
		WalletAddress: wallet,
		CreatedAt:     time.Now().UTC(),
	}
	if err := testStore.CreatePlayer(context.Background(), player); err != nil {
		t.Fatalf("CreatePlayer failed: %v", err)
	}
	return player
}

func newPairValue(playerID string) *game.SeedPair {
	serverSeed := game.GenerateServerSeed()
	return &game.SeedPair{
		ID:             uuid.NewString(),
		PlayerID:       playerID,
		ServerSeed:     serverSeed,
		ServerSeedHash: game.HashServerSeed(serverSeed),
		ClientSeed:     game.GenerateClientSeed(),
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
}

func insertTestPair(t *testing.T, playerID string) *game.SeedPair {
	t.Helper()
	pair := newPairValue(playerID)
	if err := testStore.CreateSeedPair(context.Background(), pair); err != nil {
		t.Fatalf("CreateSeedPair failed: %v", err)
	}
	return pair
}

func TestLatestHouseStats_Empty(t *testing.T) {
	stats, err := testStore.LatestHouseStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Volume != 0 || stats.Bets != 0 || stats.RevenueSharePool != 0 {
		t.Fatalf("empty ledger should be a zero row, got %+v", stats)
	}
}

func TestPlayers(t *testing.T) {
	ctx := context.Background()
	player := insertTestPlayer(t, "0xstorage_players")

	got, err := testStore.Player(ctx, player.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.WalletAddress != player.WalletAddress {
		t.Errorf("wallet = %s, want %s", got.WalletAddress, player.WalletAddress)
	}

	byWallet, err := testStore.PlayerByWallet(ctx, player.WalletAddress)
	if err != nil {
		t.Fatal(err)
	}
	if byWallet.ID != player.ID {
		t.Errorf("PlayerByWallet = %s, want %s", byWallet.ID, player.ID)
	}

	if _, err := testStore.Player(ctx, uuid.NewString()); err != game.ErrNotFound {
		t.Errorf("unknown player = %v, want ErrNotFound", err)
	}
	if _, err := testStore.PlayerByWallet(ctx, "0xnever_seen"); err != game.ErrNotFound {
		t.Errorf("unknown wallet = %v, want ErrNotFound", err)
	}

	dup := &game.Player{
		ID:            uuid.NewString(),
		WalletAddress: player.WalletAddress,
		CreatedAt:     time.Now().UTC(),
	}
	if err := testStore.CreatePlayer(ctx, dup); err != game.ErrWalletTaken {
		t.Errorf("duplicate wallet = %v, want ErrWalletTaken", err)
	}
}

func TestSeedLifecycle(t *testing.T) {
	ctx := context.Background()
	player := insertTestPlayer(t, "0xstorage_seeds")

	if _, err := testStore.ActiveSeed(ctx, player.ID); err != game.ErrNoActiveSeed {
		t.Fatalf("ActiveSeed before any pair = %v, want ErrNoActiveSeed", err)
	}

	first := insertTestPair(t, player.ID)

	got, err := testStore.ActiveSeed(ctx, player.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID || got.Nonce != 0 || !got.Active {
		t.Fatalf("ActiveSeed = %+v, want pair %s at nonce 0", got, first.ID)
	}
	if got.ServerSeed != first.ServerSeed {
		t.Error("server seed not persisted")
	}

	// A second pair retires the first without revealing it.
	second := insertTestPair(t, player.ID)

	got, err = testStore.ActiveSeed(ctx, player.ID)
	if err != nil || got.ID != second.ID {
		t.Fatalf("ActiveSeed after replacement = %v (%v), want %s", got, err, second.ID)
	}
	if _, err := testStore.AdvanceNonce(ctx, first.ID); err != game.ErrSeedNotActive {
		t.Fatalf("AdvanceNonce on retired pair = %v, want ErrSeedNotActive", err)
	}

	// Rotation reveals the active pair and installs the replacement in one
	// transaction.
	third := newPairValue(player.ID)
	revealed, err := testStore.RotatePair(ctx, third)
	if err != nil {
		t.Fatal(err)
	}
	if revealed == nil || revealed.ID != second.ID {
		t.Fatalf("RotatePair revealed %v, want pair %s", revealed, second.ID)
	}
	if revealed.Active {
		t.Error("revealed pair still active")
	}
	if revealed.RevealedAt == nil {
		t.Error("revealed pair missing revealed_at")
	}
	if revealed.ServerSeed != second.ServerSeed {
		t.Error("revealed pair lost its server seed")
	}

	got, err = testStore.ActiveSeed(ctx, player.ID)
	if err != nil || got.ID != third.ID {
		t.Fatalf("ActiveSeed after rotation = %v (%v), want %s", got, err, third.ID)
	}
	if _, err := testStore.AdvanceNonce(ctx, second.ID); err != game.ErrSeedNotActive {
		t.Fatalf("AdvanceNonce on revealed pair = %v, want ErrSeedNotActive", err)
	}

	// The next rotation reveals only the pair it replaces; second stays as
	// disclosed above and is never re-stamped.
	fourth := newPairValue(player.ID)
	revealed, err = testStore.RotatePair(ctx, fourth)
	if err != nil {
		t.Fatal(err)
	}
	if revealed == nil || revealed.ID != third.ID {
		t.Fatalf("next rotation revealed %v, want pair %s", revealed, third.ID)
	}
}

func TestRotatePair_NoPriorPair(t *testing.T) {
	ctx := context.Background()
	player := insertTestPlayer(t, "0xstorage_rotate")

	pair := newPairValue(player.ID)
	prev, err := testStore.RotatePair(ctx, pair)
	if err != nil {
		t.Fatal(err)
	}
	if prev != nil {
		t.Fatalf("RotatePair with no prior pair revealed %v", prev)
	}

	got, err := testStore.ActiveSeed(ctx, player.ID)
	if err != nil || got.ID != pair.ID {
		t.Fatalf("ActiveSeed after first rotation = %v (%v), want %s", got, err, pair.ID)
	}
}

func TestAdvanceNonce_Concurrent(t *testing.T) {
	ctx := context.Background()
	player := insertTestPlayer(t, "0xstorage_nonce")
	pair := insertTestPair(t, player.ID)

	const workers = 20
	nonces := make(chan int, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce, err := testStore.AdvanceNonce(ctx, pair.ID)
			if err != nil {
				t.Errorf("AdvanceNonce failed: %v", err)
				return
			}
			nonces <- nonce
		}()
	}
	wg.Wait()
	close(nonces)

	seen := make(map[int]bool)
	for nonce := range nonces {
		if seen[nonce] {
			t.Fatalf("nonce %d handed out twice", nonce)
		}
		seen[nonce] = true
	}
	for want := 0; want < workers; want++ {
		if !seen[want] {
			t.Errorf("nonce %d never handed out", want)
		}
	}

	if _, err := testStore.AdvanceNonce(ctx, uuid.NewString()); err != game.ErrNotFound {
		t.Errorf("AdvanceNonce on unknown pair = %v, want ErrNotFound", err)
	}
}

func TestBets(t *testing.T) {
	ctx := context.Background()
	player := insertTestPlayer(t, "0xstorage_bets")
	pair := insertTestPair(t, player.ID)

	bet := &game.Bet{
		ID:         uuid.NewString(),
		PlayerID:   player.ID,
		SeedPairID: pair.ID,
		Amount:     25,
		Target:     5000,
		Multiplier: 1.98,
		Outcome:    1234,
		Won:        true,
		Profit:     24.5,
		Proof:      game.NewFairnessProof(pair.ServerSeedHash, pair.ClientSeed, 0, 1234),
		CreatedAt:  time.Now().UTC(),
	}
	if err := testStore.InsertBet(ctx, bet); err != nil {
		t.Fatal(err)
	}

	bets, err := testStore.PlayerBets(ctx, player.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bets) != 1 {
		t.Fatalf("PlayerBets returned %d, want 1", len(bets))
	}

	got := bets[0]
	if got.Outcome != 1234 || !got.Won || got.Target != 5000 {
		t.Errorf("bet row = %+v", got)
	}
	if got.Proof.ServerSeedHash != pair.ServerSeedHash {
		t.Error("proof hash lost in the JSONB round trip")
	}
	if got.Proof.Algorithm != game.AlgorithmTag || got.Proof.Result != 1234 {
		t.Errorf("proof = %+v", got.Proof)
	}

	recent, err := testStore.RecentBets(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, b := range recent {
		if b.ID == bet.ID {
			found = true
		}
	}
	if !found {
		t.Error("inserted bet missing from RecentBets")
	}
}

func TestRecordHouseBet(t *testing.T) {
	ctx := context.Background()

	if err := testStore.RecordHouseBet(ctx, "2026-03-01", 100, 100, 30); err != nil {
		t.Fatal(err)
	}
	if err := testStore.RecordHouseBet(ctx, "2026-03-01", 50, -98, 0); err != nil {
		t.Fatal(err)
	}
	if err := testStore.RecordHouseBet(ctx, "2026-03-02", 10, 10, 3); err != nil {
		t.Fatal(err)
	}

	stats, err := testStore.LatestHouseStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Day != "2026-03-02" {
		t.Errorf("Day = %s, want latest bucket 2026-03-02", stats.Day)
	}
	if stats.Volume != 10 || stats.Bets != 1 {
		t.Errorf("latest bucket = %+v, want volume 10 over 1 bet", stats)
	}
}

func TestApplyBetToPlayer(t *testing.T) {
	ctx := context.Background()

	if p, err := testStore.ApplyBetToPlayer(ctx, uuid.NewString(), &game.Bet{}); err != nil || p != nil {
		t.Fatalf("ApplyBetToPlayer on unknown player = (%v, %v), want (nil, nil)", p, err)
	}

	player := insertTestPlayer(t, "0xstorage_stats")

	win := &game.Bet{Amount: 100, Multiplier: 1.98, Won: true, Profit: 98}
	loss := &game.Bet{Amount: 100, Multiplier: 1.98, Won: false, Profit: -100}

	var got *game.Player
	var err error
	for _, bet := range []*game.Bet{win, win, loss, win} {
		got, err = testStore.ApplyBetToPlayer(ctx, player.ID, bet)
		if err != nil {
			t.Fatal(err)
		}
	}

	if got.GamesPlayed != 4 {
		t.Errorf("GamesPlayed = %d, want 4", got.GamesPlayed)
	}
	if math.Abs(got.TotalWagered-400) > 1e-9 {
		t.Errorf("TotalWagered = %v, want 400", got.TotalWagered)
	}
	if got.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", got.CurrentStreak)
	}
	if got.BestStreak != 2 {
		t.Errorf("BestStreak = %d, want 2", got.BestStreak)
	}
	if math.Abs(got.TotalProfit-94) > 1e-9 {
		t.Errorf("TotalProfit = %v, want 94", got.TotalProfit)
	}
}
