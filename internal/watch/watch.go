// Package watch processes run-sheet PDFs as they land in an inbox
// directory. Each distinct document is processed once; the ledger remembers
// what has been handled across restarts.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jackzampolin/runsheets/internal/ledger"
	"github.com/jackzampolin/runsheets/internal/pdf"
	"github.com/jackzampolin/runsheets/internal/pipeline"
	"github.com/jackzampolin/runsheets/internal/runsheet"
)

// DefaultSettle is how long a file must be quiet before it is processed.
const DefaultSettle = 2 * time.Second

// ProcessFunc runs the pipeline for one file.
type ProcessFunc func(ctx context.Context, path string) (*pipeline.Report, error)

// Options configures a Watcher.
type Options struct {
	Dir     string
	Settle  time.Duration
	Ledger  *ledger.Ledger
	Process ProcessFunc
	Logger  *slog.Logger
}

// Outcome describes what happened to one file.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDeferred  Outcome = "deferred"
)

// Watcher debounces inbox events and hands settled PDFs to Process.
type Watcher struct {
	opts  Options
	ready chan string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch: inbox directory is required")
	}
	if opts.Ledger == nil || opts.Process == nil {
		return nil, errors.New("watch: ledger and process func are required")
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		opts:   opts,
		ready:  make(chan string, 64),
		timers: make(map[string]*time.Timer),
	}, nil
}

// IsPDF reports whether path looks like a run-sheet PDF.
func IsPDF(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".pdf")
}

// Run watches the inbox until ctx is done. PDFs already in the inbox are
// queued on start; the ledger skips any that were handled before.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}

	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", w.opts.Dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && IsPDF(e.Name()) {
			w.schedule(ctx, filepath.Join(w.opts.Dir, e.Name()))
		}
	}

	w.opts.Logger.Info("watching inbox", "dir", w.opts.Dir, "settle", w.opts.Settle)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && IsPDF(ev.Name) {
				w.schedule(ctx, ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watcher error", "error", err)
		case path := <-w.ready:
			if _, err := w.Handle(ctx, path); err != nil {
				w.opts.Logger.Error("failed to handle inbox file", "file", path, "error", err)
			}
		}
	}
}

// IsDocumentError reports whether err is a defect of the PDF itself, one
// that processing the same bytes again cannot fix.
func IsDocumentError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, target := range []error{
		pdf.ErrExtraction,
		runsheet.ErrNoRunsDetected,
		runsheet.ErrRunReappeared,
		runsheet.ErrEmptySegment,
		runsheet.ErrNotPartition,
		runsheet.ErrPageOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.opts.Settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// Handle processes one file unless its content was handled before. Only
// defects of the document itself are recorded as rejections. Anything else,
// such as a broken mapping file, cancellation or a skipped dispatch, leaves
// the ledger untouched so the same document is tried again when it is next
// dropped or the watcher restarts.
func (w *Watcher) Handle(ctx context.Context, path string) (Outcome, error) {
	log := w.opts.Logger.With("file", path)

	doc, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	digest := ledger.Digest(doc)

	seen, err := w.opts.Ledger.Seen(digest)
	if err != nil {
		return "", err
	}
	if seen {
		log.Info("document already processed", "digest", digest)
		return OutcomeDuplicate, nil
	}

	report, err := w.opts.Process(ctx, path)
	switch {
	case err == nil:
	case ctx.Err() != nil || !IsDocumentError(err):
		log.Warn("document deferred, will be retried", "error", err)
		return OutcomeDeferred, nil
	default:
		log.Error("document rejected", "error", err)
		if recErr := w.opts.Ledger.Record(ledger.Entry{
			Digest: digest,
			Source: path,
			Error:  err.Error(),
		}); recErr != nil {
			return OutcomeRejected, recErr
		}
		return OutcomeRejected, nil
	}

	s := report.Summary
	if s.Skipped {
		log.Warn("dispatch skipped, document will be retried", "reason", s.SkipReason)
		return OutcomeDeferred, nil
	}

	if err := w.opts.Ledger.Record(ledger.Entry{
		Digest: digest,
		Source: path,
		Runs:   len(report.Segments),
		Sent:   s.Sent,
		Failed: s.Failed,
	}); err != nil {
		return OutcomeProcessed, err
	}
	log.Info("document processed", "runs", len(report.Segments), "sent", s.Sent, "failed", s.Failed)
	return OutcomeProcessed, nil
}
