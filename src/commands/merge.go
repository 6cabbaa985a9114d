package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blugelabs/bluge"
	"github.com/sirupsen/logrus"

	"kukan/src/args"
	"kukan/src/blugeindex"
	"kukan/src/commands/sources"
	"kukan/src/config"
	"kukan/src/database"
	"kukan/src/storage"
)

// RunMerge executes the merge command. Every stored document of every index
// file is re-indexed into a single new file, which replaces the old ones
func RunMerge(ctx context.Context, mergeArgs *args.MergeArgs, db database.DBAdapter) error {
	indexConfig, err := getIndexConfig(ctx, mergeArgs.Name, db)
	if err != nil {
		return fmt.Errorf("failed to get index config: %w", err)
	}

	if !indexConfig.AllStored() {
		return fmt.Errorf("cannot merge index '%s': every field must be stored", indexConfig.Name)
	}

	indexFiles, err := listIndexFiles(ctx, indexConfig.Name, db)
	if err != nil {
		return err
	}

	if len(indexFiles) <= 1 {
		logrus.Info("Need at least 2 files in index directory to be able to merge")
		return nil
	}

	operator, err := storage.GetOperator(ctx, indexConfig.Path)
	if err != nil {
		return fmt.Errorf("failed to get operator: %w", err)
	}

	builder, err := newDocumentBuilder(indexConfig)
	if err != nil {
		return err
	}

	id, indexDir, err := newBuildDir(mergeArgs.MergeDir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(indexDir)

	fetchDir := indexDir + ".fetch"
	defer os.RemoveAll(fetchDir)

	logrus.Infof("Merging %d index files", len(indexFiles))

	merged, err := mergeIndexFiles(ctx, operator, indexFiles, indexConfig, builder, indexDir, fetchDir)
	if err != nil {
		return err
	}

	if err := writeUnifiedIndex(ctx, id, indexDir, indexConfig.Name, indexConfig.Path, db); err != nil {
		return fmt.Errorf("failed to write unified index: %w", err)
	}

	ids := make([]interface{}, len(indexFiles))
	fileNames := make([]string, len(indexFiles))
	for i, file := range indexFiles {
		ids[i] = file.ID
		fileNames[i] = file.FileName
	}

	_, err = db.Exec(ctx,
		"DELETE FROM index_files WHERE id IN ("+database.Placeholders(1, len(ids))+")",
		ids...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old index files from database: %w", err)
	}

	if failed := deleteIndexFilesFromStorage(ctx, operator, fileNames); failed > 0 {
		logrus.Warnf("Failed to delete %d old index files from storage", failed)
	}

	logrus.Infof("Merged %d index files (%d documents) into 1", len(indexFiles), merged)

	return nil
}

// mergeIndexFiles writes the documents of every file into one bluge index
// at indexDir and returns how many it wrote
func mergeIndexFiles(
	ctx context.Context,
	operator storage.Operator,
	indexFiles []IndexFile,
	indexConfig *config.IndexConfig,
	builder *documentBuilder,
	indexDir string,
	fetchDir string,
) (int, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(indexDir))
	if err != nil {
		return 0, fmt.Errorf("failed to create Bluge writer: %w", err)
	}

	merged := 0
	for _, file := range indexFiles {
		reader, err := openIndexFile(ctx, operator, file, fetchDir)
		if err != nil {
			writer.Close()
			return 0, err
		}

		docs, err := blugeindex.Collect(ctx, reader, bluge.NewMatchAllQuery(), -1)
		reader.Close()
		if err != nil {
			writer.Close()
			return 0, fmt.Errorf("failed to read documents of %s: %w", file.FileName, err)
		}

		batch := bluge.NewBatch()
		for _, stored := range docs {
			item, err := storedToItem(indexConfig, stored)
			if err != nil {
				writer.Close()
				return 0, fmt.Errorf("document %s of %s: %w", stored.ID, file.FileName, err)
			}
			doc, err := builder.Build(stored.ID, item)
			if err != nil {
				writer.Close()
				return 0, fmt.Errorf("document %s of %s: %w", stored.ID, file.FileName, err)
			}
			batch.Update(doc.ID(), doc)
		}
		if err := writer.Batch(batch); err != nil {
			writer.Close()
			return 0, fmt.Errorf("failed to write documents of %s: %w", file.FileName, err)
		}

		logrus.Debugf("Merged %d documents of '%s'", len(docs), file.FileName)
		merged += len(docs)

		if err := os.RemoveAll(filepath.Join(fetchDir, file.ID)); err != nil {
			logrus.Warnf("Failed to remove fetched '%s': %v", file.FileName, err)
		}
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to close Bluge writer: %w", err)
	}
	return merged, nil
}

// storedToItem rebuilds the source document of a stored bluge document, in
// the form the field parsers accept
func storedToItem(indexConfig *config.IndexConfig, stored blugeindex.StoredDocument) (sources.JsonMap, error) {
	item := make(sources.JsonMap)

	for _, field := range indexConfig.Schema.Fields {
		values := stored.Fields[field.Name]
		if len(values) == 0 {
			continue
		}
		if !field.Array {
			item[field.Name] = values[0]
			continue
		}
		elements := make([]interface{}, len(values))
		for i, value := range values {
			elements[i] = value
		}
		item[field.Name] = elements
	}

	for _, raw := range stored.Fields[config.DynamicFieldName] {
		decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
		decoder.UseNumber()

		var unknown sources.JsonMap
		if err := decoder.Decode(&unknown); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", config.DynamicFieldName, err)
		}
		for key, value := range unknown {
			if _, exists := item[key]; !exists {
				item[key] = value
			}
		}
	}

	return item, nil
}
