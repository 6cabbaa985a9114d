package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/sirupsen/logrus"

	"kukan/src/args"
	"kukan/src/blugeindex"
	"kukan/src/config"
	"kukan/src/database"
	"kukan/src/interval"
	"kukan/src/storage"
)

// Search modes
const (
	SearchModeContains   = "contains"
	SearchModeIntersects = "intersects"
)

// intervalQuery is a parsed search, ready to be turned into a bluge query
// against each index file
type intervalQuery struct {
	mode  string
	field string
	step  uint8
	point int64
	span  interval.Interval
}

// build returns the bluge query for reader
func (q intervalQuery) build(reader *bluge.Reader) (bluge.Query, error) {
	if q.mode == SearchModeContains {
		return blugeindex.NewContainsQuery(q.field, q.point, q.step)
	}
	return blugeindex.NewIntersectsQuery(reader, q.field, q.span.Start, q.span.End, q.step)
}

// resolveSearchField returns the interval field to search. It may be left
// empty when the schema has exactly one indexed interval field
func resolveSearchField(indexConfig *config.IndexConfig, name string) (config.FieldConfig, *config.IntervalFieldConfig, error) {
	if name == "" {
		var candidates []config.FieldConfig
		for _, field := range indexConfig.IntervalFields() {
			if field.TypeImpl.IsIndexed() {
				candidates = append(candidates, field)
			}
		}
		if len(candidates) != 1 {
			return config.FieldConfig{}, nil, fmt.Errorf(
				"index '%s' has %d indexed interval fields, choose one with --field",
				indexConfig.Name, len(candidates),
			)
		}
		name = candidates[0].Name
	}

	field, ok := indexConfig.Field(name)
	if !ok {
		return config.FieldConfig{}, nil, fmt.Errorf("unknown field '%s'", name)
	}
	intervalConfig, ok := field.Interval()
	if !ok {
		return config.FieldConfig{}, nil, fmt.Errorf("field '%s' is not an interval field", name)
	}
	if !intervalConfig.Indexed {
		return config.FieldConfig{}, nil, fmt.Errorf("field '%s' is not indexed", name)
	}
	return field, intervalConfig, nil
}

// parseIntervalQuery reads the search arguments. Points and "start..end"
// bounds use the field's bound parser; "start-end" is the integer literal
func parseIntervalQuery(indexConfig *config.IndexConfig, searchArgs *args.SearchArgs) (intervalQuery, error) {
	field, intervalConfig, err := resolveSearchField(indexConfig, searchArgs.Field)
	if err != nil {
		return intervalQuery{}, err
	}

	query := intervalQuery{
		mode:  searchArgs.Mode,
		field: field.Name,
		step:  intervalConfig.PrecisionStep,
	}

	switch searchArgs.Mode {
	case SearchModeContains:
		query.point, err = intervalConfig.ParseBound(strings.TrimSpace(searchArgs.Query))
		if err != nil {
			return intervalQuery{}, fmt.Errorf("invalid point '%s': %w", searchArgs.Query, err)
		}

	case SearchModeIntersects:
		if start, end, found := strings.Cut(searchArgs.Query, ".."); found {
			query.span.Start, err = intervalConfig.ParseBound(strings.TrimSpace(start))
			if err != nil {
				return intervalQuery{}, fmt.Errorf("invalid start '%s': %w", start, err)
			}
			query.span.End, err = intervalConfig.ParseBound(strings.TrimSpace(end))
			if err != nil {
				return intervalQuery{}, fmt.Errorf("invalid end '%s': %w", end, err)
			}
			if err := query.span.Validate(); err != nil {
				return intervalQuery{}, err
			}
		} else {
			query.span, err = interval.ParseValidInterval(searchArgs.Query)
			if err != nil {
				return intervalQuery{}, err
			}
		}

	default:
		return intervalQuery{}, fmt.Errorf(
			"unknown search mode '%s' (expected %s or %s)",
			searchArgs.Mode, SearchModeContains, SearchModeIntersects,
		)
	}

	return query, nil
}

// runSearchWithCallback executes a search with a callback function for each result
func runSearchWithCallback(
	ctx context.Context,
	searchArgs *args.SearchArgs,
	db database.DBAdapter,
	onDocFn func(string),
) error {
	if searchArgs.Limit == 0 {
		return nil
	}

	indexConfig, err := getIndexConfig(ctx, searchArgs.Name, db)
	if err != nil {
		return fmt.Errorf("failed to get index config: %w", err)
	}

	query, err := parseIntervalQuery(indexConfig, searchArgs)
	if err != nil {
		return err
	}

	indexFiles, err := listIndexFiles(ctx, indexConfig.Name, db)
	if err != nil {
		return err
	}

	if len(indexFiles) == 0 {
		logrus.Infof("No index files for '%s'", searchArgs.Name)
		return nil
	}

	operator, err := storage.GetOperator(ctx, indexConfig.Path)
	if err != nil {
		return fmt.Errorf("failed to get operator: %w", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []blugeindex.StoredDocument
		firstErr error
	)

	for _, indexFile := range indexFiles {
		wg.Add(1)
		go func(file IndexFile) {
			defer wg.Done()

			docs, err := searchIndexFile(ctx, operator, file, query, searchArgs)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logrus.Errorf("Error in search task for file %s: %v", file.FileName, err)
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results = append(results, docs...)
		}(indexFile)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	if searchArgs.Limit > 0 && len(results) > searchArgs.Limit {
		results = results[:searchArgs.Limit]
	}

	for _, doc := range results {
		docJSON, err := getPrettifiedJSON(doc, indexConfig.Schema.Fields)
		if err != nil {
			logrus.Errorf("Failed to render document %s: %v", doc.ID, err)
			continue
		}
		onDocFn(docJSON)
	}

	return nil
}

// searchIndexFile runs the query against one index file
func searchIndexFile(
	ctx context.Context,
	operator storage.Operator,
	file IndexFile,
	query intervalQuery,
	searchArgs *args.SearchArgs,
) ([]blugeindex.StoredDocument, error) {
	logrus.Debugf("Searching index file %s: %s %s on %s", file.FileName, query.mode, searchArgs.Query, query.field)

	reader, err := openIndexFile(ctx, operator, file, searchArgs.CacheDir)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	blugeQuery, err := query.build(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	return blugeindex.Collect(ctx, reader, blugeQuery, searchArgs.Limit)
}

// getPrettifiedJSON renders a stored document as one JSON object: "_id",
// the schema fields (intervals as {"start", "end"}) and the unknown fields
// kept in the dynamic field
func getPrettifiedJSON(doc blugeindex.StoredDocument, fields config.FieldConfigs) (string, error) {
	prettifiedFieldMap := make(map[string]interface{})

	for _, raw := range doc.Fields[config.DynamicFieldName] {
		decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
		decoder.UseNumber()

		var unknown map[string]interface{}
		if err := decoder.Decode(&unknown); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", config.DynamicFieldName, err)
		}
		for k, v := range unknown {
			prettifiedFieldMap[k] = v
		}
	}

	for _, field := range fields {
		values := doc.Fields[field.Name]
		if len(values) == 0 {
			continue
		}

		rendered := make([]interface{}, len(values))
		for i, value := range values {
			if _, ok := field.Interval(); ok {
				iv, err := blugeindex.ParseStoredInterval([]byte(value))
				if err != nil {
					return "", fmt.Errorf("field %s: %w", field.Name, err)
				}
				rendered[i] = iv
			} else {
				rendered[i] = value
			}
		}

		if field.Array {
			prettifiedFieldMap[field.Name] = rendered
		} else {
			prettifiedFieldMap[field.Name] = rendered[0]
		}
	}

	prettifiedFieldMap[config.IDFieldName] = doc.ID

	jsonBytes, err := json.Marshal(prettifiedFieldMap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal prettified document: %w", err)
	}

	return string(jsonBytes), nil
}

// RunSearch executes the search command
func RunSearch(ctx context.Context, searchArgs *args.SearchArgs, db database.DBAdapter) error {
	return runSearchWithCallback(
		ctx,
		searchArgs,
		db,
		func(doc string) {
			fmt.Println(doc)
		},
	)
}
