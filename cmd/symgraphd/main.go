package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gnana997/symgraph/pkg/engine"
	"github.com/gnana997/symgraph/pkg/indexconfig"
	"github.com/gnana997/symgraph/pkg/logging"
	"github.com/gnana997/symgraph/pkg/query"
	"github.com/gnana997/symgraph/pkg/querylog"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "index":
		runIndex(os.Args[2:], false)
	case "watch":
		runIndex(os.Args[2:], true)
	case "query":
		runQuery(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "version":
		fmt.Printf("symgraphd %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func buildEngine(root string) *engine.Engine {
	cfg, err := indexconfig.Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.DefaultConfig())
	logging.SetDefault(logger)

	eng, err := engine.New(root, cfg, logger, engine.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct engine: %v\n", err)
		os.Exit(1)
	}
	if err := eng.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load index state: %v\n", err)
		os.Exit(1)
	}
	return eng
}

func workspaceRoot(args []string) string {
	for _, arg := range args {
		if arg != "" && arg[0] != '-' {
			abs, err := filepath.Abs(arg)
			if err == nil {
				return abs
			}
			return arg
		}
	}
	wd, _ := os.Getwd()
	return wd
}

func runIndex(args []string, keepWatching bool) {
	root := workspaceRoot(args)
	eng := buildEngine(root)
	defer eng.Close()

	result, err := eng.EnsureUpToDate(context.Background(), func(processed, total int) {
		fmt.Fprintf(os.Stderr, "\rindexing %d/%d", processed, total)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\nscanned %d, indexed %d, skipped %d, removed %d\n",
		result.Scanned, result.Dispatched, result.Skipped, result.Removed)

	if !keepWatching {
		return
	}
	if err := eng.StartWatching(); err != nil {
		fmt.Fprintf(os.Stderr, "watcher failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "watching for changes, ctrl-c to stop")
	select {}
}

func runQuery(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: symgraphd query <def|refs|search> <arg...> [--root path]")
		os.Exit(1)
	}

	mode := args[0]
	root := flagValueOr(args, "--root", "")
	if root == "" {
		root, _ = os.Getwd()
	}
	eng := buildEngine(root)
	defer eng.Close()

	svc := query.NewService(eng, nil)
	ctx := context.Background()

	switch mode {
	case "def":
		printJSON(svc.FindDefinitions(ctx, args[1]))
	case "refs":
		if len(args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: symgraphd query refs <file> <line> <character>")
			os.Exit(1)
		}
		line := mustUint(args[2])
		char := mustUint(args[3])
		printJSON(svc.FindReferences(ctx, args[1], line, char, false))
	case "search":
		printJSON(svc.SearchSymbols(ctx, args[1], 25))
	default:
		fmt.Fprintf(os.Stderr, "unknown query mode: %s\n", mode)
		os.Exit(1)
	}
}

func runServe(args []string) {
	root := workspaceRoot(args)
	eng := buildEngine(root)
	defer eng.Close()

	if _, err := eng.EnsureUpToDate(context.Background(), nil); err != nil {
		fmt.Fprintf(os.Stderr, "initial indexing failed: %v\n", err)
		os.Exit(1)
	}
	if err := eng.StartWatching(); err != nil {
		fmt.Fprintf(os.Stderr, "watcher failed: %v\n", err)
		os.Exit(1)
	}

	logPath := flagValueOr(args, "--call-log", "")
	var callLog *querylog.Logger
	if logPath != "" {
		var err error
		callLog, err = querylog.New(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open call log: %v\n", err)
			os.Exit(1)
		}
	}

	svc := query.NewService(eng, nil)
	srv := query.NewServer(svc, callLog)
	defer srv.Close()

	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	root := workspaceRoot(args)
	eng := buildEngine(root)
	defer eng.Close()
	printJSON(eng.Stats())
}

func flagValueOr(args []string, flag, fallback string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return fallback
}

func mustUint(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expected a number, got %q\n", s)
		os.Exit(1)
	}
	return uint32(n)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println(`symgraphd — workspace symbol indexing engine

Usage:
  symgraphd index [path]                     index a workspace once
  symgraphd watch [path]                     index then keep watching
  symgraphd query def <name> [--root path]   definitions of a name
  symgraphd query refs <file> <line> <char>  references at a position
  symgraphd query search <fuzzy>             fuzzy symbol search
  symgraphd serve [path] [--call-log file]   MCP stdio server
  symgraphd stats [path]                     index counters
  symgraphd version                          print version`)
}
