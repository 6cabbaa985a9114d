package sources

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"kukan/src/database"
)

// FileCheckpoint stores how many lines of a file are already indexed into
// an index
type FileCheckpoint struct {
	SourceID  string
	IndexName string
	DB        database.DBAdapter
}

// FileCheckpointCommitter saves one line offset once its index file is
// registered
type FileCheckpointCommitter struct {
	Checkpoint *FileCheckpoint
	LineOffset int64
}

// NewFileCheckpoint creates the checkpoint of path. The source id is the
// absolute path, so relative invocations from other directories share it
func NewFileCheckpoint(path, indexName string, db database.DBAdapter) (*FileCheckpoint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &FileCheckpoint{
		SourceID:  "file:" + abs,
		IndexName: indexName,
		DB:        db,
	}, nil
}

// Load returns the committed line offset, 0 when nothing was committed
func (fc *FileCheckpoint) Load(ctx context.Context) (int64, error) {
	rows, err := fc.DB.Query(ctx,
		"SELECT offset_value FROM source_checkpoints WHERE source_id = $1 AND index_name = $2",
		fc.SourceID, fc.IndexName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	defer rows.Close()

	var offset int64
	if rows.Next() {
		if err := rows.Scan(&offset); err != nil {
			return 0, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}

	logrus.Debugf("Loaded checkpoint of '%s': %d", fc.SourceID, offset)
	return offset, nil
}

// Save stores the line offset
func (fc *FileCheckpoint) Save(ctx context.Context, lineOffset int64) error {
	logrus.Debugf("Saving checkpoint of '%s': %d", fc.SourceID, lineOffset)

	_, err := fc.DB.Exec(ctx,
		"INSERT INTO source_checkpoints (source_id, index_name, offset_value) VALUES ($1, $2, $3) "+
			"ON CONFLICT (source_id, index_name) DO UPDATE SET offset_value = EXCLUDED.offset_value",
		fc.SourceID, fc.IndexName, lineOffset,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Committer snapshots lineOffset for a later Commit
func (fc *FileCheckpoint) Committer(lineOffset int64) *FileCheckpointCommitter {
	return &FileCheckpointCommitter{
		Checkpoint: fc,
		LineOffset: lineOffset,
	}
}

// Commit implements CheckpointCommitter interface
func (c *FileCheckpointCommitter) Commit(ctx context.Context) error {
	return c.Checkpoint.Save(ctx, c.LineOffset)
}
