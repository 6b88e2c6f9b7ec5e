// Package main is the kioku CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku"
	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/pkg/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "add":
		runAdd()
	case "query":
		runQuery()
	case "contextualize":
		runContext()
	case "watch":
		runWatch()
	case "stats":
		runStats()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kioku - local retrieval-augmented generation engine

Usage:
  kioku add [-config path] [-category name] [-source name] <file|->
  kioku query [-config path] [-k n] [-min-similarity s] [-category name] [-json] <query>
  kioku contextualize [-config path] [-k n] <query>
  kioku watch [-config path] [-debug] <dir> [dir...]
  kioku stats [-config path] [-json]
  kioku clear [-config path]
  kioku version
`)
}

// loadConfig loads config from path. When path is the default and a
// config.yaml exists in the current directory, that one wins, so running
// kioku from a project directory picks up the project's config.
func loadConfig(path string) (*kioku.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				return kioku.Load(fallback)
			}
		}
		if _, err := os.Stat(path); err != nil {
			// No config anywhere: run fully in memory.
			return kioku.DefaultConfig(), nil
		}
	}
	return kioku.Load(path)
}

func openEngine(configPath string, debug bool) (*kioku.Engine, *zap.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	engine, err := kioku.New(cfg, kioku.WithLogger(logger))
	if err != nil {
		fmt.Printf("Failed to open engine: %v\n", err)
		os.Exit(1)
	}
	return engine, logger
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "", "document category")
	source := fs.String("source", "", "document source label")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku add <file|->")
		os.Exit(1)
	}

	var text []byte
	var err error
	name := fs.Arg(0)
	if name == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(name)
		if *source == "" {
			*source = name
		}
	}
	if err != nil {
		fmt.Printf("Failed to read input: %v\n", err)
		os.Exit(1)
	}

	engine, logger := openEngine(*configPath, false)
	defer logger.Sync()
	defer engine.Close()

	ids, err := engine.AddDocument(context.Background(), models.DocumentInput{
		Text:     string(text),
		Category: *category,
		Source:   *source,
	})
	if err != nil {
		fmt.Printf("Failed to add document: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added %d chunks\n", len(ids))
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("k", 0, "number of results (0 = config default)")
	minSim := fs.Float64("min-similarity", 0, "similarity threshold (0 = config default)")
	category := fs.String("category", "", "restrict to category")
	jsonOut := fs.Bool("json", false, "JSON output")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku query <query>")
		os.Exit(1)
	}

	engine, logger := openEngine(*configPath, false)
	defer logger.Sync()
	defer engine.Close()

	results, err := engine.Retrieve(context.Background(), fs.Arg(0), &models.RetrieveOptions{
		TopK:          *topK,
		MinSimilarity: *minSim,
		Category:      *category,
	})
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	if err := cli.WriteResults(os.Stdout, results, format); err != nil {
		fmt.Printf("Failed to write results: %v\n", err)
		os.Exit(1)
	}
}

func runContext() {
	fs := flag.NewFlagSet("contextualize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("k", 0, "number of passages (0 = config default)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku contextualize <query>")
		os.Exit(1)
	}

	engine, logger := openEngine(*configPath, false)
	defer logger.Sync()
	defer engine.Close()

	block, err := engine.GenerateContext(context.Background(), fs.Arg(0),
		&models.RetrieveOptions{TopK: *topK})
	if err != nil {
		fmt.Printf("Failed to generate context: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(block)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku watch <dir> [dir...]")
		os.Exit(1)
	}

	engine, logger := openEngine(*configPath, *debug)
	defer logger.Sync()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Watch(ctx, fs.Args()); err != nil {
		fmt.Printf("Failed to start watching: %v\n", err)
		os.Exit(1)
	}
	logger.Info("watching", zap.Strings("dirs", fs.Args()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	jsonOut := fs.Bool("json", false, "JSON output")
	_ = fs.Parse(os.Args[2:])

	engine, logger := openEngine(*configPath, false)
	defer logger.Sync()
	defer engine.Close()

	stats, err := engine.Stats(context.Background())
	if err != nil {
		fmt.Printf("Failed to read stats: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Printf("Failed to write stats: %v\n", err)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	engine, logger := openEngine(*configPath, false)
	defer logger.Sync()
	defer engine.Close()

	if err := engine.Clear(context.Background()); err != nil {
		fmt.Printf("Failed to clear: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Cleared all documents")
}
