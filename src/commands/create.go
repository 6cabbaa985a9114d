package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"kukan/src/args"
	"kukan/src/config"
	"kukan/src/database"
)

// RunCreate executes the create command
func RunCreate(ctx context.Context, createArgs *args.CreateArgs, db database.DBAdapter) error {
	indexConfig, err := config.LoadIndexConfigFromPath(createArgs.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config from path %s: %w", createArgs.ConfigPath, err)
	}

	return RunCreateFromConfig(ctx, indexConfig, db)
}

// RunCreateFromConfig registers an already validated config. The stored
// JSON carries the defaults filled in during validation, so every later
// command indexes and queries with the same precision steps
func RunCreateFromConfig(ctx context.Context, indexConfig *config.IndexConfig, db database.DBAdapter) error {
	configJSON, err := json.Marshal(indexConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}

	_, err = db.Exec(ctx,
		"INSERT INTO indexes (name, config) VALUES ($1, $2)",
		indexConfig.Name,
		string(configJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert index into database: %w", err)
	}

	logrus.Infof("Created index: %s", indexConfig.Name)

	return nil
}
