package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/sirupsen/logrus"

	"kukan/src/args"
	"kukan/src/commands/sources"
	"kukan/src/config"
	"kukan/src/database"
)

// BatchResult represents the result of a batch operation
type BatchResult int

const (
	BatchResultEOF BatchResult = iota
	BatchResultTimeout
	BatchResultRestart
)

// IndexCommitter handles committing index operations
type IndexCommitter struct {
	IndexName           string
	IndexPath           string
	DB                  database.DBAdapter
	CheckpointCommitter sources.CheckpointCommitter
}

// IndexRunner manages the indexing process
type IndexRunner struct {
	source     sources.Source
	builder    *documentBuilder
	args       *args.IndexArgs
	config     *config.IndexConfig
	db         database.DBAdapter
	commitLock sync.Mutex
	commits    sync.WaitGroup
}

// NewIndexRunner creates a new IndexRunner
func NewIndexRunner(ctx context.Context, indexArgs *args.IndexArgs, db database.DBAdapter) (*IndexRunner, error) {
	source, err := sources.ConnectToSource(ctx, &indexArgs.Input, indexArgs.Stream, indexArgs.Name, db)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}

	runner, err := NewIndexRunnerWithSource(ctx, indexArgs, db, source)
	if err != nil {
		source.Close()
		return nil, err
	}
	return runner, nil
}

// NewIndexRunnerWithSource creates a new IndexRunner with a specific source
func NewIndexRunnerWithSource(
	ctx context.Context,
	indexArgs *args.IndexArgs,
	db database.DBAdapter,
	source sources.Source,
) (*IndexRunner, error) {
	indexConfig, err := getIndexConfig(ctx, indexArgs.Name, db)
	if err != nil {
		return nil, fmt.Errorf("failed to get index config: %w", err)
	}

	builder, err := newDocumentBuilder(indexConfig)
	if err != nil {
		return nil, err
	}

	return &IndexRunner{
		source:  source,
		builder: builder,
		args:    indexArgs,
		config:  indexConfig,
		db:      db,
	}, nil
}

// RunOneBatch reads documents from the source and indexes them into a new index file
func (ir *IndexRunner) RunOneBatch(ctx context.Context) (BatchResult, error) {
	id, indexDir, err := newBuildDir(ir.args.BuildDir)
	if err != nil {
		return BatchResultEOF, err
	}

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(indexDir))
	if err != nil {
		return BatchResultEOF, fmt.Errorf("failed to create Bluge writer: %w", err)
	}
	writerClosed := false
	defer func() {
		if !writerClosed {
			_ = writer.Close()
		}
	}()

	batchSize := ir.args.BatchSize
	if batchSize <= 0 {
		batchSize = args.DefaultBatchSize
	}

	batch := bluge.NewBatch()
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		if err := writer.Batch(batch); err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}
		batch = bluge.NewBatch()
		pending = 0
		return nil
	}

	added := 0
	failed := 0
	result := BatchResultEOF

	// Streaming batches end at the commit interval, even while the source
	// is blocked waiting for data
	batchCtx := ctx
	if ir.args.Stream {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, ir.args.CommitInterval)
		defer cancel()
	}

	logrus.Debugf("Piping source -> index of id '%s'", id)

loop:
	for {
		if err := ctx.Err(); err != nil {
			return BatchResultEOF, err
		}

		item, err := ir.source.GetOne(batchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				result = BatchResultTimeout
				break loop
			}
			return BatchResultEOF, fmt.Errorf("failed to get item from source: %w", err)
		}

		switch item.Type {
		case sources.SourceItemTypeDocument:
			docID, err := ir.builder.documentID(item.Document, fmt.Sprintf("%s_%d", id, added))
			if err == nil {
				var doc *bluge.Document
				doc, err = ir.builder.Build(docID, item.Document)
				if err == nil {
					batch.Update(doc.ID(), doc)
					pending++
				}
			}
			if err != nil {
				logrus.Errorf("Skipping document (on %d iteration): %v", added+failed, err)
				failed++
				continue
			}
			added++

			if pending >= batchSize {
				if err := flush(); err != nil {
					return BatchResultEOF, err
				}
			}

		case sources.SourceItemTypeClose:
			logrus.Debugf("Source closed for index of id '%s'", id)
			break loop

		case sources.SourceItemTypeRestart:
			logrus.Debugf("Aborting index of id '%s' with %d documents", id, added)
			_ = writer.Close()
			writerClosed = true
			if err := os.RemoveAll(indexDir); err != nil {
				logrus.Warnf("Failed to remove aborted index of id '%s': %v", id, err)
			}
			return BatchResultRestart, nil
		}
	}

	if err := flush(); err != nil {
		return BatchResultEOF, err
	}
	if err := writer.Close(); err != nil {
		return BatchResultEOF, fmt.Errorf("failed to close Bluge writer: %w", err)
	}
	writerClosed = true

	if failed > 0 {
		logrus.Warnf("Skipped %d documents that failed to parse", failed)
	}

	if added == 0 {
		logrus.Debug("Not writing index: no documents added")
		if err := os.RemoveAll(indexDir); err != nil {
			logrus.Warnf("Failed to remove empty index of id '%s': %v", id, err)
		}
		// Skipped lines still count as consumed
		if err := ir.commitCheckpoint(ctx); err != nil {
			return BatchResultEOF, err
		}
		return result, nil
	}

	logrus.Infof("Committing %d documents", added)

	committer, err := ir.indexCommitter(ctx)
	if err != nil {
		return BatchResultEOF, fmt.Errorf("failed to create index committer: %w", err)
	}

	if ir.args.Stream && result != BatchResultEOF {
		// Commit in the background to not block and continue indexing next batch
		ir.commits.Add(1)
		go func() {
			defer ir.commits.Done()
			ir.commitLock.Lock()
			defer ir.commitLock.Unlock()

			if err := ir.commitIndex(ctx, committer, id, indexDir); err != nil {
				logrus.Errorf("Failed to commit index of id '%s': %v", id, err)
			}
		}()
	} else {
		ir.commitLock.Lock()
		err := ir.commitIndex(ctx, committer, id, indexDir)
		ir.commitLock.Unlock()
		if err != nil {
			return BatchResultEOF, fmt.Errorf("failed to commit index: %w", err)
		}
	}

	return result, nil
}

// commitCheckpoint saves the source position without writing an index file
func (ir *IndexRunner) commitCheckpoint(ctx context.Context) error {
	checkpointCommitter, err := ir.source.GetCheckpointCommitter(ctx)
	if err != nil {
		return fmt.Errorf("failed to get checkpoint committer: %w", err)
	}
	if checkpointCommitter == nil {
		return nil
	}

	ir.commitLock.Lock()
	defer ir.commitLock.Unlock()
	if err := checkpointCommitter.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// indexCommitter creates an IndexCommitter for the current configuration
func (ir *IndexRunner) indexCommitter(ctx context.Context) (*IndexCommitter, error) {
	checkpointCommitter, err := ir.source.GetCheckpointCommitter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint committer: %w", err)
	}

	return &IndexCommitter{
		IndexName:           ir.config.Name,
		IndexPath:           ir.config.Path,
		DB:                  ir.db,
		CheckpointCommitter: checkpointCommitter,
	}, nil
}

// commitIndex uploads the index, registers it and then saves the source
// checkpoint, so a crash in between re-indexes rather than loses documents
func (ir *IndexRunner) commitIndex(
	ctx context.Context,
	committer *IndexCommitter,
	id string,
	inputDir string,
) error {
	logrus.Debug("Committing Bluge index...")

	if err := writeUnifiedIndex(
		ctx,
		id,
		inputDir,
		committer.IndexName,
		committer.IndexPath,
		committer.DB,
	); err != nil {
		return fmt.Errorf("failed to write unified index: %w", err)
	}

	if committer.CheckpointCommitter != nil {
		if err := committer.CheckpointCommitter.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit checkpoint: %w", err)
		}
	}

	if err := os.RemoveAll(inputDir); err != nil {
		logrus.Warnf("Failed to remove build dir '%s': %v", inputDir, err)
	}

	return nil
}

// Wait blocks until background commits are done
func (ir *IndexRunner) Wait() {
	ir.commits.Wait()
}

// RunIndex executes the index command
func RunIndex(ctx context.Context, indexArgs *args.IndexArgs, db database.DBAdapter) error {
	runner, err := NewIndexRunner(ctx, indexArgs, db)
	if err != nil {
		return fmt.Errorf("failed to create index runner: %w", err)
	}
	defer runner.source.Close()
	defer runner.Wait()

	for {
		result, err := runner.RunOneBatch(ctx)
		if err != nil {
			return fmt.Errorf("failed to run batch: %w", err)
		}

		if result == BatchResultEOF {
			break
		}
	}

	return nil
}
