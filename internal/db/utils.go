package db

import (
	"errors"
	"fmt"

	"github.com/dtnitsch/review-miner/internal/config"
	dbpkg "github.com/dtnitsch/review-miner/pkg/db"
	"github.com/urfave/cli/v2"
)

// openDatabase opens the run history named by the loaded configuration.
func openDatabase(c *cli.Context) (*dbpkg.DB, error) {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	database, err := dbpkg.Open(settings.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// runIDOrLatest returns the run ID from args, or the latest run if not provided.
func runIDOrLatest(c *cli.Context, database *dbpkg.DB) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}
	run, err := database.LatestRun()
	if errors.Is(err, dbpkg.ErrRunNotFound) {
		return "", fmt.Errorf("no runs found. Run 'review-miner mine <app>' first")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return run.RunID, nil
}
