package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"kukan/src/args"
	"kukan/src/commands"
	"kukan/src/database"
)

const (
	// Default log levels
	defaultDebugLogLevel   = "debug"
	defaultReleaseLogLevel = "info"
)

// asyncMain is the main async function that handles the application logic
func asyncMain(ctx context.Context, arguments *args.Args) error {
	if !arguments.SubCmd.NeedsDB() {
		if arguments.SubCmd.Name == "segments" {
			return commands.RunSegments(arguments.SubCmd.SegmentsArgs, os.Stdout)
		}
		// No subcommand provided, help was shown
		return nil
	}

	// Get database URL from args or environment
	dbURL := arguments.DB
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return fmt.Errorf("database url must be provided using either --db or DATABASE_URL env var")
		}
	}

	db, err := database.CreateDatabaseAdapter(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	switch arguments.SubCmd.Name {
	case "create":
		return commands.RunCreate(ctx, arguments.SubCmd.CreateArgs, db)
	case "drop":
		return commands.RunDrop(ctx, arguments.SubCmd.DropArgs, db)
	case "index":
		return commands.RunIndex(ctx, arguments.SubCmd.IndexArgs, db)
	case "merge":
		return commands.RunMerge(ctx, arguments.SubCmd.MergeArgs, db)
	case "search":
		return commands.RunSearch(ctx, arguments.SubCmd.SearchArgs, db)
	default:
		return fmt.Errorf("unknown subcommand: %s", arguments.SubCmd.Name)
	}
}

// setupLogging configures the logging system
func setupLogging() {
	var defaultLogLevel string
	if os.Getenv("DEBUG") == "true" {
		defaultLogLevel = defaultDebugLogLevel
	} else {
		defaultLogLevel = defaultReleaseLogLevel
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = defaultLogLevel
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using info level", logLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Logs go to stderr, search results to stdout
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	setupLogging()

	arguments, err := args.ParseArgs()
	if err != nil {
		// cobra already printed the error and usage
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := asyncMain(ctx, arguments); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}
