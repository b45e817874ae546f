package main

import (
	"context"
	"errors"
	"time"

	auction "auction-house/internal/auctionService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/config"
	"auction-house/internal/events"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/scheduler"
	"auction-house/internal/server"
	"auction-house/utils"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		utils.Fatal("cannot load config", map[string]any{"error": err.Error()})
	}

	auctions, bids, persons := buildStores(cfg)

	hub := events.NewHub()
	biddingSvc := bidding.NewBiddingService(auctions, bids, persons, hub)
	auctionSvc := auction.NewAuctionService(auctions, bids, persons, hub)

	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	sched, err := scheduler.New(auctionSvc, interval)
	if err != nil {
		utils.Fatal("cannot create scheduler", map[string]any{"error": err.Error()})
	}
	sched.Start()
	defer sched.Stop()

	router := server.SetupRouter(biddingSvc, auctionSvc, hub)

	utils.Info("starting auction server", map[string]any{
		"address": cfg.ServerAddress,
		"storage": cfg.StorageDriver,
	})
	if err := router.Run(cfg.ServerAddress); err != nil {
		utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
	}
}

// buildStores selects the storage driver. The memory driver needs no
// external services and is seeded with sample persons for local runs.
func buildStores(cfg config.Config) (repository.AuctionStore, repository.BidStore, repository.PersonStore) {
	switch cfg.StorageDriver {
	case "postgres":
		runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

		pool, err := pgxpool.New(context.Background(), cfg.PostgresConn)
		if err != nil {
			utils.Fatal("unable to connect to database", map[string]any{"error": err.Error()})
		}
		repo := repository.NewPostgresRepo(pool)
		return repo, repo, repo
	default:
		repo := repository.NewMemoryRepo()
		prepopulatePersons(repo)
		return repo, repo, repo
	}
}

func runDBMigration(migrationURL, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		utils.Fatal("cannot create a new migrate instance", map[string]any{"error": err.Error()})
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		utils.Fatal("failed to run migrate up", map[string]any{"error": err.Error()})
	}
	utils.Info("db migrated successfully", nil)
}

// prepopulatePersons adds sample persons to the in-memory repo
func prepopulatePersons(repo *repository.MemoryRepo) {
	persons := []model.Person{
		{PersonID: "person1", Name: "Alice Seller"},
		{PersonID: "person2", Name: "Bob Bidder"},
		{PersonID: "person3", Name: "Carol Admin", Admin: true},
	}

	for _, p := range persons {
		repo.AddPerson(p)
	}
}
