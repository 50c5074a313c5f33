package main

import (
	"fmt"

	"github.com/yourusername/qrush/internal/config"
	"github.com/yourusername/qrush/internal/domain/repository"
	pgRepo "github.com/yourusername/qrush/internal/repository/postgres"
	"github.com/yourusername/qrush/pkg/database"
)

// repos bundles the Postgres-backed repositories enginectl needs — the same
// aggregate-per-interface set cmd/api wires, without the engine runtime.
type repos struct {
	games     repository.GameRepository
	users     repository.UserRepository
	questions repository.QuestionRepository
}

func openRepos(cfg *rootConfig) (*repos, error) {
	appCfg, err := config.Load(cfg.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.NewPostgresDB(appCfg.Database.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &repos{
		games:     pgRepo.NewGameRepo(db),
		users:     pgRepo.NewUserRepo(db),
		questions: pgRepo.NewQuestionRepo(db),
	}, nil
}
