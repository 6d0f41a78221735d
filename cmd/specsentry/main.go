package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dfalgout/specsentry/internal/cache"
	"github.com/dfalgout/specsentry/internal/collab"
	"github.com/dfalgout/specsentry/internal/config"
	"github.com/dfalgout/specsentry/internal/engine"
	"github.com/dfalgout/specsentry/internal/logger"
	"github.com/dfalgout/specsentry/internal/rpc"
	"github.com/dfalgout/specsentry/internal/spec"
	"github.com/dfalgout/specsentry/internal/status"
	"github.com/dfalgout/specsentry/internal/tools"
	"github.com/dfalgout/specsentry/internal/watch"
)

const usage = `specsentry - spec verification and drift detection

Usage:
  specsentry <command> [flags] [spec]

Commands:
  status    report check statuses and staleness for a spec
  verify    run a spec's checks (skips passing checks unless -force)
  reset     return a spec's checks to unchecked (-check for one)
  add       append a new unchecked requirement to a spec
  audit     reconcile declared checks against mined capabilities
  repair    detect renamed tracked files and rewrite references
  snapshot  capture a fresh content-hash snapshot of tracked files
  clean     collect orphaned cache rows (-force deletes everything)
  watch     flag specs stale as tracked files change
  serve     expose the tools over JSON-RPC 2.0 on stdio
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	root, err := os.Getwd()
	if err != nil {
		fatal(err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		fatal(err)
	}

	logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	if err := cfg.EnsureDirectories(); err != nil {
		fatal(err)
	}

	store, err := cache.NewStore(cfg.Cache.DBPath, cfg.Cache.MemoSize)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	eng := engine.New(cfg, store, engine.Collaborators{
		Reasoner:    &collab.ExecReasoner{Command: cfg.Collab.ReasonerCmd},
		Consistency: consistencyReasoner(cfg),
		Outcomes:    &collab.ShellOutcomes{Dir: cfg.Root},
		Extractor:   &collab.ExecExtractor{Command: cfg.Collab.ExtractorCmd},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, eng, os.Args[1], os.Args[2:]); err != nil {
		fatal(err)
	}
}

func consistencyReasoner(cfg *config.Config) status.ReasoningService {
	if len(cfg.Collab.ConsistencyCmd) > 0 {
		return &collab.ExecReasoner{Command: cfg.Collab.ConsistencyCmd}
	}
	return &collab.ExecReasoner{Command: cfg.Collab.ReasonerCmd}
}

func run(ctx context.Context, cfg *config.Config, eng *engine.Engine, command string, args []string) error {
	switch command {
	case "status":
		doc, err := openArg(eng, command, args)
		if err != nil {
			return err
		}
		report, err := eng.Status(doc)
		if err != nil {
			return err
		}
		return emit(report)

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ExitOnError)
		force := fs.Bool("force", false, "re-verify checks that already pass")
		check := fs.String("check", "", "verify only the check with this id")
		fs.Parse(args)
		doc, err := openArg(eng, command, fs.Args())
		if err != nil {
			return err
		}
		result, err := eng.Verify(ctx, doc, status.RunPolicy{Force: *force, Only: *check})
		if result != nil {
			if emitErr := emit(result); emitErr != nil {
				return emitErr
			}
		}
		if err != nil {
			return err
		}
		if verifyFailed(result, *check) {
			os.Exit(1)
		}
		return nil

	case "reset":
		fs := flag.NewFlagSet("reset", flag.ExitOnError)
		check := fs.String("check", "", "reset only the check with this id")
		fs.Parse(args)
		doc, err := openArg(eng, command, fs.Args())
		if err != nil {
			return err
		}
		outcome, err := eng.Reset(doc, *check)
		if err != nil {
			return err
		}
		return emit(outcome)

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		require := fs.String("require", "", "requirement text for the new check")
		test := fs.String("test", "", "optional test snippet for structured specs")
		fs.Parse(args)
		doc, err := openArg(eng, command, fs.Args())
		if err != nil {
			return err
		}
		check, err := eng.AddCheck(doc, *require, *test)
		if err != nil {
			return err
		}
		return emit(map[string]any{"id": check.ID, "require": check.Require})

	case "audit":
		fs := flag.NewFlagSet("audit", flag.ExitOnError)
		warnOnly := fs.Bool("warn-only", cfg.Drift.WarnOnly, "report drift without failing")
		fs.Parse(args)
		doc, err := openArg(eng, command, fs.Args())
		if err != nil {
			return err
		}
		report, err := eng.Audit(ctx, doc)
		if err != nil {
			return err
		}
		if err := emit(report); err != nil {
			return err
		}
		if report.Failed(*warnOnly) {
			os.Exit(1)
		}
		return nil

	case "repair":
		fs := flag.NewFlagSet("repair", flag.ExitOnError)
		auto := fs.Bool("auto", false, "apply high-confidence renames unattended")
		remember := fs.Bool("remember", false, "persist -auto as the spec's default")
		confirm := fs.String("confirm", "", "apply a pending rename as old=new, regardless of confidence")
		snapshot := fs.Bool("snapshot", false, "take a fresh hash snapshot after applying")
		fs.Parse(args)
		doc, err := openArg(eng, command, fs.Args())
		if err != nil {
			return err
		}
		if *confirm != "" {
			oldPath, newPath, ok := strings.Cut(*confirm, "=")
			if !ok || oldPath == "" || newPath == "" {
				return fmt.Errorf("repair: -confirm wants old=new, got %q", *confirm)
			}
			outcome, err := eng.ConfirmRename(doc, oldPath, newPath)
			if err != nil {
				return err
			}
			if *snapshot {
				if err := eng.Snapshot(doc); err != nil {
					return err
				}
			}
			return emit(outcome)
		}
		if *remember {
			if err := eng.SetAutoRepair(doc, *auto); err != nil {
				return err
			}
		}
		outcome, err := eng.Repair(doc, *auto)
		if err != nil {
			return err
		}
		if outcome.SnapshotAdvised && *snapshot {
			if err := eng.Snapshot(doc); err != nil {
				return err
			}
		}
		return emit(outcome)

	case "snapshot":
		doc, err := openArg(eng, command, args)
		if err != nil {
			return err
		}
		if err := eng.Snapshot(doc); err != nil {
			return err
		}
		return emit(map[string]any{"snapshotted": len(doc.Spec.Files)})

	case "clean":
		fs := flag.NewFlagSet("clean", flag.ExitOnError)
		force := fs.Bool("force", false, "delete all cache rows unconditionally")
		fs.Parse(args)
		outcome, err := eng.Clean(*force)
		if err != nil {
			return err
		}
		return emit(outcome)

	case "watch":
		return runWatch(ctx, cfg, eng)

	case "serve":
		registry, err := tools.NewEngineRegistry(eng)
		if err != nil {
			return err
		}
		err = rpc.NewServer(registry).Serve(ctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// verifyFailed decides the verify exit status. A whole-spec run fails
// unless every check passes; a single-check run fails only when one of
// the checks it actually ran came back failed.
func verifyFailed(result *status.RunResult, check string) bool {
	if check == "" {
		return !result.Success
	}
	for _, r := range result.Results {
		if r.Status == spec.StatusFail {
			return true
		}
	}
	return false
}

func openArg(eng *engine.Engine, command string, args []string) (*spec.Document, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s: spec path or name required", command)
	}
	return eng.Open(args[0])
}

func runWatch(ctx context.Context, cfg *config.Config, eng *engine.Engine) error {
	w, err := watch.New(watch.Config{
		DebounceWindow: cfg.Watch.DebounceWindow,
		IgnorePatterns: cfg.Watch.IgnorePatterns,
	}, func(paths []string) {
		for _, p := range paths {
			logger.Warn("tracked file changed; spec results may be stale", "path", p)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	docs, err := specDocs(cfg, eng)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		for _, f := range doc.Spec.Files {
			if err := w.Track(filepath.Join(cfg.Root, f)); err != nil {
				logger.Warn("cannot watch tracked file", "path", f, "error", err)
			}
		}
	}

	w.Start(ctx)
	<-ctx.Done()
	return nil
}

func specDocs(cfg *config.Config, eng *engine.Engine) ([]*spec.Document, error) {
	entries, err := os.ReadDir(cfg.SpecDir)
	if err != nil {
		return nil, fmt.Errorf("read spec dir: %w", err)
	}
	var docs []*spec.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		doc, err := eng.Open(filepath.Join(cfg.SpecDir, entry.Name()))
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func emit(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "specsentry: %v\n", err)
	os.Exit(1)
}
