package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"kukan/src/args"
	"kukan/src/database"
	"kukan/src/storage"
)

// RunDrop executes the drop command
func RunDrop(ctx context.Context, dropArgs *args.DropArgs, db database.DBAdapter) error {
	indexConfig, err := getIndexConfig(ctx, dropArgs.Name, db)
	if err != nil {
		return fmt.Errorf("failed to get index config: %w", err)
	}

	indexFiles, err := listIndexFiles(ctx, dropArgs.Name, db)
	if err != nil {
		return err
	}

	fileNames := make([]string, 0, len(indexFiles))
	for _, file := range indexFiles {
		fileNames = append(fileNames, file.FileName)
	}

	// Catalog rows go first, a failed storage delete only leaks the file
	if _, err := db.Exec(ctx, "DELETE FROM index_files WHERE index_name=$1", dropArgs.Name); err != nil {
		return fmt.Errorf("failed to delete index files from database: %w", err)
	}
	if _, err := db.Exec(ctx, "DELETE FROM indexes WHERE name=$1", dropArgs.Name); err != nil {
		return fmt.Errorf("failed to delete index from database: %w", err)
	}

	operator, err := storage.GetOperator(ctx, indexConfig.Path)
	if err != nil {
		return fmt.Errorf("failed to get operator: %w", err)
	}

	deleteIndexFilesFromStorage(ctx, operator, fileNames)

	logrus.Infof(
		"Dropped index: %s (%d number of index files)",
		dropArgs.Name, len(fileNames),
	)

	return nil
}
