package sources

import (
	"context"
	"fmt"
	"strings"

	"kukan/src/database"
)

// JsonMap represents a JSON map type
type JsonMap = map[string]interface{}

// SourceItem represents an item from a data source
type SourceItem struct {
	Type     SourceItemType `json:"type"`
	Document JsonMap        `json:"document,omitempty"`
}

type SourceItemType string

const (
	// SourceItemTypeDocument - A document to index
	SourceItemTypeDocument SourceItemType = "document"
	// SourceItemTypeClose - The source is closed, can't read more from it
	SourceItemTypeClose SourceItemType = "close"
	// SourceItemTypeRestart - The source decided to reload from the last checkpoint
	SourceItemTypeRestart SourceItemType = "restart"
)

// Source represents a data source interface
type Source interface {
	// GetOne gets a document from the source
	GetOne(ctx context.Context) (*SourceItem, error)

	// GetCheckpointCommitter returns a checkpoint committer if the source supports checkpointing
	// It creates a checkpoint committer that stores a snapshot of the last read state.
	// Once the indexer has successfully committed and uploaded the new index file,
	// it tells the checkpoint committer to commit the snapshot
	GetCheckpointCommitter(ctx context.Context) (CheckpointCommitter, error)

	// Close closes the source and releases resources
	Close() error
}

// CheckpointCommitter represents a checkpoint committer interface
type CheckpointCommitter interface {
	// Commit commits the stored state snapshot
	Commit(ctx context.Context) error
}

// ConnectToSource connects to a data source based on the input parameters.
// Files and Kafka topics resume after what was last committed into
// indexName; stdin always starts from the beginning
func ConnectToSource(
	ctx context.Context,
	input *string,
	stream bool,
	indexName string,
	db database.DBAdapter,
) (Source, error) {
	if input == nil || *input == "" || *input == "-" {
		return NewBufSourceFromStdin(), nil
	}

	if strings.HasPrefix(*input, KafkaPrefix) {
		return NewKafkaSourceFromURL(ctx, *input, stream, indexName, db)
	}

	if stream {
		return nil, fmt.Errorf("streaming from a file is not currently supported")
	}

	checkpoint, err := NewFileCheckpoint(*input, indexName, db)
	if err != nil {
		return nil, err
	}
	return NewBufSourceFromPath(ctx, *input, checkpoint)
}
