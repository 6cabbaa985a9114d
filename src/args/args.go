package args

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kukan/src/interval"
)

const (
	// DefaultBatchSize is how many documents go into one bluge batch
	DefaultBatchSize = 1000

	// DefaultSearchLimit is the number of documents search prints
	DefaultSearchLimit = 100
)

// parseDuration parses a human-readable duration string
func parseDuration(s string) (time.Duration, error) {
	duration, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %s. Please use Go duration format (e.g., '30s', '5m', '1h')", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return duration, nil
}

// Args represents the main command line arguments
type Args struct {
	DB     string     `json:"db"`
	SubCmd SubCommand `json:"subcmd"`
}

// SubCommand represents the subcommands available
type SubCommand struct {
	Name         string        `json:"name"`
	CreateArgs   *CreateArgs   `json:"create_args,omitempty"`
	DropArgs     *DropArgs     `json:"drop_args,omitempty"`
	IndexArgs    *IndexArgs    `json:"index_args,omitempty"`
	MergeArgs    *MergeArgs    `json:"merge_args,omitempty"`
	SearchArgs   *SearchArgs   `json:"search_args,omitempty"`
	SegmentsArgs *SegmentsArgs `json:"segments_args,omitempty"`
}

// NeedsDB reports whether the subcommand talks to the catalog
func (s SubCommand) NeedsDB() bool {
	return s.Name != "" && s.Name != "segments"
}

// CreateArgs represents arguments for the create subcommand
type CreateArgs struct {
	ConfigPath string `json:"config_path"`
}

// DropArgs represents arguments for the drop subcommand
type DropArgs struct {
	Name string `json:"name"`
}

// IndexArgs represents arguments for the index subcommand
type IndexArgs struct {
	Name           string        `json:"name"`
	Input          string        `json:"input"`
	Stream         bool          `json:"stream"`
	CommitInterval time.Duration `json:"commit_interval"`
	BuildDir       string        `json:"build_dir"`
	BatchSize      int           `json:"batch_size"`
}

// MergeArgs represents arguments for the merge subcommand
type MergeArgs struct {
	Name     string `json:"name"`
	MergeDir string `json:"merge_dir"`
}

// SearchArgs represents arguments for the search subcommand
type SearchArgs struct {
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	Query    string `json:"query"`
	Field    string `json:"field"`
	Limit    int    `json:"limit"`
	CacheDir string `json:"cache_dir"`
}

// SegmentsArgs represents arguments for the segments subcommand
type SegmentsArgs struct {
	Literal       string `json:"literal"`
	PrecisionStep uint8  `json:"precision_step"`
}

// createRootCmd creates the root command
func createRootCmd(globalArgs *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kukan",
		Short: "An interval index on object storage",
		Long: `Index integer and datetime intervals into packed bluge indexes stored on disk or S3,
then find the documents whose intervals contain a point or intersect a range.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&globalArgs.DB, "db", "",
		"Database connection url (postgres://... or sqlite:<path>). Can also be provided by a DATABASE_URL env var, but only if this arg is not provided.")

	return cmd
}

// createCreateCmd creates the create subcommand
func createCreateCmd(globalArgs *Args) *cobra.Command {
	createArgs := &CreateArgs{}

	return &cobra.Command{
		Use:   "create [config_path]",
		Short: "Create a new index from a YAML or JSON config",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			createArgs.ConfigPath = args[0]
			globalArgs.SubCmd = SubCommand{
				Name:       "create",
				CreateArgs: createArgs,
			}
		},
	}
}

// createDropCmd creates the drop subcommand
func createDropCmd(globalArgs *Args) *cobra.Command {
	dropArgs := &DropArgs{}

	return &cobra.Command{
		Use:   "drop [name]",
		Short: "Drop an index and delete its index files",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dropArgs.Name = args[0]
			globalArgs.SubCmd = SubCommand{
				Name:     "drop",
				DropArgs: dropArgs,
			}
		},
	}
}

// createIndexCmd creates the index subcommand
func createIndexCmd(globalArgs *Args) *cobra.Command {
	indexArgs := &IndexArgs{
		CommitInterval: 30 * time.Second,
		BatchSize:      DefaultBatchSize,
	}

	var commitIntervalStr string

	cmd := &cobra.Command{
		Use:   "index [name] [input]",
		Short: "Index documents",
		Long: `Index documents from a JSONL file or a kafka topic (kafka://host1:9092,host2:9092/topic).
Read from stdin by not providing any file path.
Re-running on the same file or topic resumes after what was last committed.`,
		Args: cobra.RangeArgs(1, 2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			duration, err := parseDuration(commitIntervalStr)
			if err != nil {
				return fmt.Errorf("invalid --commit-interval: %w", err)
			}
			indexArgs.CommitInterval = duration
			if indexArgs.BatchSize <= 0 {
				return fmt.Errorf("--batch-size must be positive, got %d", indexArgs.BatchSize)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			indexArgs.Name = args[0]
			if len(args) > 1 {
				indexArgs.Input = args[1]
			}
			globalArgs.SubCmd = SubCommand{
				Name:      "index",
				IndexArgs: indexArgs,
			}
		},
	}

	cmd.Flags().BoolVarP(&indexArgs.Stream, "stream", "s", false,
		"Whether to stream from the source without terminating. Will stop only once the source is closed.")

	cmd.Flags().StringVar(&commitIntervalStr, "commit-interval", "30s",
		"How much time to collect docs from the source until an index file should be generated. Only used when streaming. Examples: '5s', '2m10s'.")

	cmd.Flags().StringVarP(&indexArgs.BuildDir, "build-dir", "b", filepath.Join(os.TempDir(), "kukan_build"),
		"Path to the dir to build in the inverted indexes.")

	cmd.Flags().IntVar(&indexArgs.BatchSize, "batch-size", DefaultBatchSize,
		"Number of documents written to the inverted index at once.")

	return cmd
}

// createMergeCmd creates the merge subcommand
func createMergeCmd(globalArgs *Args) *cobra.Command {
	mergeArgs := &MergeArgs{}

	cmd := &cobra.Command{
		Use:   "merge [name]",
		Short: "Merge all index files of an index into one",
		Long:  "Merge all index files of an index into one. Requires every field of the index to be stored.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mergeArgs.Name = args[0]
			globalArgs.SubCmd = SubCommand{
				Name:      "merge",
				MergeArgs: mergeArgs,
			}
		},
	}

	cmd.Flags().StringVarP(&mergeArgs.MergeDir, "merge-dir", "m", filepath.Join(os.TempDir(), "kukan_merge"),
		"Path to the dir to merge in the inverted indexes.")

	return cmd
}

// createSearchCmd creates the search subcommand
func createSearchCmd(globalArgs *Args) *cobra.Command {
	searchArgs := &SearchArgs{}

	cmd := &cobra.Command{
		Use:   "search [name] [contains|intersects] [query]",
		Short: "Search the index",
		Long: `Search an interval field of the index.

  contains <point>          documents whose interval contains the point
  intersects <start>-<end>  documents whose interval overlaps [start, end]
  intersects <start>..<end> same, with bounds parsed like the field's values (dates for datetime fields)

Prints matching documents as JSON lines.`,
		Args: cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			searchArgs.Name = args[0]
			searchArgs.Mode = args[1]
			searchArgs.Query = args[2]
			globalArgs.SubCmd = SubCommand{
				Name:       "search",
				SearchArgs: searchArgs,
			}
		},
	}

	cmd.Flags().StringVarP(&searchArgs.Field, "field", "f", "",
		"Interval field to search. May be omitted when the index has a single interval field.")

	cmd.Flags().IntVarP(&searchArgs.Limit, "limit", "l", DefaultSearchLimit,
		"Limit to a number of results. Negative prints every match.")

	cmd.Flags().StringVar(&searchArgs.CacheDir, "cache-dir", filepath.Join(os.TempDir(), "kukan_cache"),
		"Path to the dir index files are unpacked into.")

	return cmd
}

// createSegmentsCmd creates the segments subcommand
func createSegmentsCmd(globalArgs *Args) *cobra.Command {
	segmentsArgs := &SegmentsArgs{}

	cmd := &cobra.Command{
		Use:   "segments [start-end]",
		Short: "Print the trie segments and terms an interval is indexed under",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return interval.ValidatePrecisionStep(segmentsArgs.PrecisionStep)
		},
		Run: func(cmd *cobra.Command, args []string) {
			segmentsArgs.Literal = args[0]
			globalArgs.SubCmd = SubCommand{
				Name:         "segments",
				SegmentsArgs: segmentsArgs,
			}
		},
	}

	cmd.Flags().Uint8VarP(&segmentsArgs.PrecisionStep, "precision-step", "p", interval.DefaultPrecisionStep,
		"Bits per trie level.")

	return cmd
}

// newRootCmd builds the command tree writing into globalArgs
func newRootCmd(globalArgs *Args) *cobra.Command {
	rootCmd := createRootCmd(globalArgs)

	rootCmd.AddCommand(createCreateCmd(globalArgs))
	rootCmd.AddCommand(createDropCmd(globalArgs))
	rootCmd.AddCommand(createIndexCmd(globalArgs))
	rootCmd.AddCommand(createMergeCmd(globalArgs))
	rootCmd.AddCommand(createSearchCmd(globalArgs))
	rootCmd.AddCommand(createSegmentsCmd(globalArgs))

	return rootCmd
}

// ParseArgs parses command line arguments and returns Args struct
func ParseArgs() (*Args, error) {
	return ParseArgsFrom(os.Args[1:])
}

// ParseArgsFrom parses argv (without the program name)
func ParseArgsFrom(argv []string) (*Args, error) {
	globalArgs := &Args{}

	rootCmd := newRootCmd(globalArgs)
	rootCmd.SetArgs(argv)

	if err := rootCmd.Execute(); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}

	return globalArgs, nil
}
