package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kukan/src/config"
	"kukan/src/database"
	"kukan/src/storage"
	"kukan/src/unified_index"
)

// getIndexConfig retrieves the index configuration from the database
func getIndexConfig(ctx context.Context, name string, db database.DBAdapter) (*config.IndexConfig, error) {
	var configJSON string
	row := db.QueryRow(ctx, "SELECT config FROM indexes WHERE name=$1", name)
	if err := row.Scan(&configJSON); err != nil {
		return nil, fmt.Errorf("failed to get index config of '%s': %w", name, err)
	}

	var indexConfig config.IndexConfig
	if err := indexConfig.FromJSON([]byte(configJSON)); err != nil {
		return nil, fmt.Errorf("failed to parse index config of '%s': %w", name, err)
	}
	return &indexConfig, nil
}

// IndexFile represents metadata about an index file
type IndexFile struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	Len       int64  `json:"len"`
	FooterLen int64  `json:"footer_len"`
}

// listIndexFiles returns the registered index files of an index
func listIndexFiles(ctx context.Context, indexName string, db database.DBAdapter) ([]IndexFile, error) {
	rows, err := db.Query(ctx,
		"SELECT id, file_name, len, footer_len FROM index_files WHERE index_name=$1 ORDER BY id",
		indexName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query index files: %w", err)
	}
	defer rows.Close()

	var items []IndexFile
	for rows.Next() {
		var item IndexFile
		if err := rows.Scan(&item.ID, &item.FileName, &item.Len, &item.FooterLen); err != nil {
			return nil, fmt.Errorf("failed to scan index file: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// writeUnifiedIndex packs the bluge index in inputDir into "<id>.index",
// uploads it and registers it in the catalog
func writeUnifiedIndex(
	ctx context.Context,
	id string,
	inputDir string,
	indexName string,
	indexPath string,
	db database.DBAdapter,
) error {
	op, err := storage.GetOperator(ctx, indexPath)
	if err != nil {
		return fmt.Errorf("failed to get operator: %w", err)
	}

	fileName := fmt.Sprintf("%s.index", id)

	packer, err := unified_index.NewUnifiedIndexWriterFromDir(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read index directory: %w", err)
	}
	defer packer.Close()

	writer, err := op.Writer(ctx, fileName)
	if err != nil {
		return fmt.Errorf("failed to create unified index writer: %w", err)
	}

	totalLen, footerLen, err := packer.Write(writer)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write unified index: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish unified index %s: %w", fileName, err)
	}

	logrus.Debugf("Wrote '%s' (%d bytes, footer %d bytes)", fileName, totalLen, footerLen)

	_, err = db.Exec(ctx,
		"INSERT INTO index_files (id, index_name, file_name, len, footer_len) VALUES ($1, $2, $3, $4, $5)",
		id, indexName, fileName, int64(totalLen), int64(footerLen),
	)
	if err != nil {
		return fmt.Errorf("failed to insert index file metadata: %w", err)
	}

	return nil
}

// openIndexFile returns a reader over a packed index file. Packed files
// never change after upload, so each one is unpacked once into
// cacheDir/<id> and reused by later calls
func openIndexFile(
	ctx context.Context,
	op storage.Operator,
	file IndexFile,
	cacheDir string,
) (*bluge.Reader, error) {
	dir := filepath.Join(cacheDir, file.ID)

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := fetchIndexFile(ctx, op, file, cacheDir, dir); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat cache of %s: %w", file.FileName, err)
	} else {
		logrus.Debugf("Using cached '%s'", dir)
	}

	reader, err := bluge.OpenReader(bluge.DefaultConfig(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index of %s: %w", file.FileName, err)
	}
	return reader, nil
}

// fetchIndexFile downloads and unpacks file into a temporary directory
// which is then renamed to dir
func fetchIndexFile(ctx context.Context, op storage.Operator, file IndexFile, cacheDir, dir string) error {
	logrus.Debugf("Fetching '%s'", file.FileName)

	reader, err := op.Reader(ctx, file.FileName)
	if err != nil {
		return fmt.Errorf("failed to open index file %s: %w", file.FileName, err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("failed to read index file %s: %w", file.FileName, err)
	}
	if int64(len(data)) != file.Len {
		return fmt.Errorf("index file %s has %d bytes, expected %d", file.FileName, len(data), file.Len)
	}

	directory, err := unified_index.OpenWithLen(data, int(file.FooterLen))
	if err != nil {
		return fmt.Errorf("failed to open unified index %s: %w", file.FileName, err)
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.MkdirTemp(cacheDir, file.ID+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := directory.Extract(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("failed to unpack %s: %w", file.FileName, err)
	}

	if err := os.Rename(tmp, dir); err != nil {
		// Another search unpacked the same file first
		_ = os.RemoveAll(tmp)
		if _, statErr := os.Stat(dir); statErr != nil {
			return fmt.Errorf("failed to move %s into the cache: %w", file.FileName, err)
		}
	}
	return nil
}

// deleteIndexFilesFromStorage deletes packed files concurrently. Failures
// are only logged: the catalog no longer references the files
func deleteIndexFilesFromStorage(ctx context.Context, op storage.Operator, fileNames []string) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, fileName := range fileNames {
		wg.Add(1)
		go func(fileName string) {
			defer wg.Done()
			if err := op.Delete(ctx, fileName); err != nil {
				logrus.Warnf(
					"Failed to delete index file '%s': %v. "+
						"Don't worry, this just means the file is leaked, but will never be read from again.",
					fileName, err,
				)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(fileName)
	}

	wg.Wait()
	return failed
}

// newBuildDir creates a fresh directory for one bluge index
func newBuildDir(parent string) (string, string, error) {
	id := uuid.New().String()
	dir := filepath.Join(parent, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create index directory: %w", err)
	}
	return id, dir, nil
}
