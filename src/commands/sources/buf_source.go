package sources

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// maxLineSize bounds a single JSONL document
const maxLineSize = 16 * 1024 * 1024

// BufSource reads one JSON document per line
type BufSource struct {
	reader     io.ReadCloser
	scanner    *bufio.Scanner
	isStdin    bool
	checkpoint *FileCheckpoint

	// lines consumed so far, counting skipped and empty lines
	lines int64
}

// NewBufSourceFromPath opens path and skips the lines its checkpoint
// already covers. A nil checkpoint reads from the start
func NewBufSourceFromPath(ctx context.Context, path string, checkpoint *FileCheckpoint) (*BufSource, error) {
	logrus.Debugf("Reading from '%s'", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	source := newBufSource(file, false)
	source.checkpoint = checkpoint
	if checkpoint == nil {
		return source, nil
	}

	offset, err := checkpoint.Load(ctx)
	if err != nil {
		file.Close()
		return nil, err
	}
	if offset > 0 {
		logrus.Infof("Resuming '%s' after line %d", path, offset)
	}
	for source.lines < offset && source.scanner.Scan() {
		source.lines++
	}
	if err := source.scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to skip to line %d: %w", offset, err)
	}
	return source, nil
}

// NewBufSourceFromStdin creates a new BufSource from stdin
func NewBufSourceFromStdin() *BufSource {
	logrus.Debug("Reading from stdin")
	return newBufSource(os.Stdin, true)
}

// NewBufSourceFromReader reads documents from reader without checkpoints
func NewBufSourceFromReader(reader io.ReadCloser) *BufSource {
	return newBufSource(reader, false)
}

func newBufSource(reader io.ReadCloser, isStdin bool) *BufSource {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &BufSource{
		reader:  reader,
		scanner: scanner,
		isStdin: isStdin,
	}
}

// GetOne implements Source interface. Numbers are decoded as json.Number
// so 64-bit bounds survive
func (bs *BufSource) GetOne(ctx context.Context) (*SourceItem, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !bs.scanner.Scan() {
			if err := bs.scanner.Err(); err != nil {
				return nil, fmt.Errorf("scanner error: %w", err)
			}
			return &SourceItem{Type: SourceItemTypeClose}, nil
		}
		bs.lines++

		line := bytes.TrimSpace(bs.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		decoder := json.NewDecoder(bytes.NewReader(line))
		decoder.UseNumber()

		var jsonMap JsonMap
		if err := decoder.Decode(&jsonMap); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line %d: %w", bs.lines, err)
		}

		return &SourceItem{
			Type:     SourceItemTypeDocument,
			Document: jsonMap,
		}, nil
	}
}

// Lines returns the number of lines consumed so far
func (bs *BufSource) Lines() int64 {
	return bs.lines
}

// GetCheckpointCommitter implements Source interface. Only file sources
// opened with a checkpoint support it
func (bs *BufSource) GetCheckpointCommitter(ctx context.Context) (CheckpointCommitter, error) {
	if bs.checkpoint == nil {
		return nil, nil
	}
	return bs.checkpoint.Committer(bs.lines), nil
}

// Close closes the underlying reader if it's not stdin
func (bs *BufSource) Close() error {
	if !bs.isStdin && bs.reader != nil {
		return bs.reader.Close()
	}
	return nil
}
