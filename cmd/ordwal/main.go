package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"ordwal/internal/http"
	"ordwal/pkg/backup"
	"ordwal/pkg/config"
	"ordwal/pkg/types"
	"ordwal/pkg/wal"
)

func main() {
	var (
		configPath = flag.String("config", "ordwal.yaml", "path to the YAML config")
		mode       = flag.String("mode", "serve", "mode: serve, dump, backup, restore")
		input      = flag.String("input", "", "archive to restore from")
		output     = flag.String("output", "", "archive to write (backup) or log to create (restore)")
	)
	flag.Parse()

	cfg, err := initConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogger(&cfg)

	switch *mode {
	case "serve":
		err = serve(cfg)
	case "dump":
		err = dump(cfg.WAL, os.Stdout)
	case "backup":
		err = exportLog(cfg.WAL, *output)
	case "restore":
		err = restoreLog(cfg.WAL, *input, *output)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		slog.Error(*mode+" failed", "error", err)
		os.Exit(1)
	}
}

func serve(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	l, err := wal.OpenVersioned(cfg.WAL)
	if err != nil {
		return fmt.Errorf("failed to open wal: %w", err)
	}
	defer l.Close()

	id, err := instanceID(l)
	if err != nil {
		return err
	}
	slog.Info("serving wal", "path", l.Path(), "instance", id, "max_version", l.MaximumVersion())

	server := http.NewServer(l, cfg.Server)
	if err := server.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Warn("error stopping server", "error", err)
	}
	if err := l.Flush(); err != nil {
		return fmt.Errorf("failed to flush wal: %w", err)
	}
	slog.Info("ordwal stopped")
	return nil
}

// archive is a read-only log in either mode.
type archive interface {
	io.WriterTo
	Records() iter.Seq2[wal.RawRecord, error]
	Reserved() []byte
	Close() error
}

func openReadOnly(opts config.Options) (archive, error) {
	opts.ReadOnly = true
	if opts.Versioned {
		l, err := wal.OpenVersioned(opts)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	l, err := wal.Open(opts)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// dump prints one line per committed entry.
func dump(opts config.Options, w io.Writer) error {
	l, err := openReadOnly(opts)
	if err != nil {
		return fmt.Errorf("failed to open wal: %w", err)
	}
	defer l.Close()

	for rec, err := range l.Records() {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, formatRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

func formatRecord(rec wal.RawRecord) string {
	line := fmt.Sprintf("%08x", rec.Pointer.Offset)
	if rec.Batch != 0 {
		line += fmt.Sprintf(" batch@%08x", rec.Batch)
	}
	line += fmt.Sprintf(" v%d %s ", rec.Version, rec.Flags)
	if rec.Flags.IsRange() {
		line += formatStart(rec.Range.Start) + ", " + formatEnd(rec.Range.End)
	} else {
		line += strconv.Quote(string(rec.Key))
	}
	if rec.Value != nil {
		line += " = " + strconv.Quote(string(rec.Value))
	}
	return line
}

func formatStart(b types.Bound) string {
	switch b.Kind {
	case types.Included:
		return "[" + strconv.Quote(string(b.Key))
	case types.Excluded:
		return "(" + strconv.Quote(string(b.Key))
	}
	return "*"
}

func formatEnd(b types.Bound) string {
	switch b.Kind {
	case types.Included:
		return strconv.Quote(string(b.Key)) + "]"
	case types.Excluded:
		return strconv.Quote(string(b.Key)) + ")"
	}
	return "*"
}

func exportLog(opts config.Options, output string) error {
	if output == "" {
		output = opts.Path + ".zst"
	}
	l, err := openReadOnly(opts)
	if err != nil {
		return fmt.Errorf("failed to open wal: %w", err)
	}
	defer l.Close()

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	res, err := backup.Export(f, l)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	slog.Info("backup written", "output", output, "original", res.OriginalSize,
		"compressed", res.CompressedSize, "ratio", res.Ratio(), "elapsed", res.Elapsed)
	return nil
}

func restoreLog(opts config.Options, input, output string) error {
	if input == "" {
		return fmt.Errorf("input archive is required")
	}
	if output == "" {
		output = opts.Path
	}
	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	res, err := backup.Restore(in, output)
	if err != nil {
		return err
	}

	// replay the restored log once so a damaged archive is reported now
	opts.Path = output
	l, err := openReadOnly(opts)
	if err != nil {
		return fmt.Errorf("restored log does not open: %w", err)
	}
	defer l.Close()

	slog.Info("backup restored", "output", output, "size", res.OriginalSize, "elapsed", res.Elapsed)
	return nil
}
