package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"kukan/src/database"
)

// KafkaCheckpoint stores, per partition of a topic, the next offset to read
// into an index. Every partition is its own source_checkpoints row
type KafkaCheckpoint struct {
	SourceID  string
	IndexName string
	DB        database.DBAdapter
}

// KafkaCheckpointCommitter saves a snapshot of partition offsets
type KafkaCheckpointCommitter struct {
	Checkpoint           *KafkaCheckpoint
	PartitionsAndOffsets []PartitionOffset
}

// PartitionOffset is the next offset to read from a partition
type PartitionOffset struct {
	Partition int32
	Offset    int64
}

// PartitionOffsetWithOptional represents a partition with optional offset
type PartitionOffsetWithOptional struct {
	Partition int32
	Offset    *int64 // nil means no offset stored
}

// NewKafkaCheckpoint creates the checkpoint of a brokers/topic pair
func NewKafkaCheckpoint(servers, topic, indexName string, db database.DBAdapter) *KafkaCheckpoint {
	return &KafkaCheckpoint{
		SourceID:  fmt.Sprintf("kafka:%s/%s", servers, topic),
		IndexName: indexName,
		DB:        db,
	}
}

func (kc *KafkaCheckpoint) partitionSourceID(partition int32) string {
	return fmt.Sprintf("%s#%d", kc.SourceID, partition)
}

// Load returns the stored offsets of partitions, in the order given
func (kc *KafkaCheckpoint) Load(ctx context.Context, partitions []int32) ([]PartitionOffsetWithOptional, error) {
	if len(partitions) == 0 {
		return []PartitionOffsetWithOptional{}, nil
	}

	args := make([]interface{}, len(partitions)+1)
	args[0] = kc.IndexName
	byID := make(map[string]int32, len(partitions))
	for i, partition := range partitions {
		id := kc.partitionSourceID(partition)
		args[i+1] = id
		byID[id] = partition
	}

	rows, err := kc.DB.Query(ctx,
		fmt.Sprintf(
			"SELECT source_id, offset_value FROM source_checkpoints WHERE index_name = $1 AND source_id IN (%s)",
			database.Placeholders(2, len(partitions)),
		),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	partitionsToOffsets := make(map[int32]int64)
	for rows.Next() {
		var id string
		var offset int64
		if err := rows.Scan(&id, &offset); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		partitionsToOffsets[byID[id]] = offset
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}

	logrus.Debugf("Loaded checkpoints of '%s': %v", kc.SourceID, partitionsToOffsets)

	result := make([]PartitionOffsetWithOptional, len(partitions))
	for i, partition := range partitions {
		result[i] = PartitionOffsetWithOptional{Partition: partition}
		if offset, exists := partitionsToOffsets[partition]; exists {
			result[i].Offset = &offset
		}
	}
	return result, nil
}

// Save upserts the offsets of every given partition in one statement
func (kc *KafkaCheckpoint) Save(ctx context.Context, partitionsAndOffsets []PartitionOffset) error {
	if len(partitionsAndOffsets) == 0 {
		return nil
	}

	valuePlaceholders := make([]string, len(partitionsAndOffsets))
	args := make([]interface{}, 0, len(partitionsAndOffsets)*3)
	for i, po := range partitionsAndOffsets {
		valuePlaceholders[i] = "(" + database.Placeholders(i*3+1, 3) + ")"
		args = append(args, kc.partitionSourceID(po.Partition), kc.IndexName, po.Offset)
	}

	logrus.Debugf("Saving checkpoints of '%s': %v", kc.SourceID, partitionsAndOffsets)

	_, err := kc.DB.Exec(ctx,
		"INSERT INTO source_checkpoints (source_id, index_name, offset_value) VALUES "+
			strings.Join(valuePlaceholders, ", ")+
			" ON CONFLICT (source_id, index_name) DO UPDATE SET offset_value = EXCLUDED.offset_value",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoints: %w", err)
	}
	return nil
}

// Committer snapshots partitionsAndOffsets for a later Commit
func (kc *KafkaCheckpoint) Committer(partitionsAndOffsets []PartitionOffset) *KafkaCheckpointCommitter {
	return &KafkaCheckpointCommitter{
		Checkpoint:           kc,
		PartitionsAndOffsets: partitionsAndOffsets,
	}
}

// Commit implements CheckpointCommitter interface
func (kcc *KafkaCheckpointCommitter) Commit(ctx context.Context) error {
	return kcc.Checkpoint.Save(ctx, kcc.PartitionsAndOffsets)
}
