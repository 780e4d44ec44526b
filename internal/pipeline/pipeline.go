// Package pipeline runs one source document through extraction, detection,
// splitting, grouping, merging and dispatch.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/runsheets/internal/dispatch"
	"github.com/jackzampolin/runsheets/internal/home"
	"github.com/jackzampolin/runsheets/internal/ledger"
	"github.com/jackzampolin/runsheets/internal/metrics"
	"github.com/jackzampolin/runsheets/internal/pdf"
	"github.com/jackzampolin/runsheets/internal/runsheet"
	"github.com/jackzampolin/runsheets/internal/storage"
)

// SkipDryRun is the skip reason reported for --dry-run.
const SkipDryRun = "dry run"

// TextSource extracts page text from a PDF on disk.
type TextSource interface {
	Pages(ctx context.Context, path string) ([]runsheet.Page, error)
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Home  *home.Dir
	Store storage.ObjectStore
	Text  TextSource
	Pager runsheet.Pager

	// Transport delivers messages. When nil, dispatch is skipped and
	// TransportErr is reported as the reason.
	Transport    dispatch.Transport
	TransportErr error

	Detect   runsheet.DetectOptions
	Dispatch dispatch.Options
	Logger   *slog.Logger
}

// Pipeline processes source documents.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Home == nil {
		return nil, errors.New("pipeline: home directory is required")
	}
	if cfg.Store == nil || cfg.Text == nil || cfg.Pager == nil {
		return nil, errors.New("pipeline: store, text source and pager are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dispatch.Logger == nil {
		cfg.Dispatch.Logger = cfg.Logger
	}
	if cfg.Transport == nil && cfg.TransportErr == nil {
		cfg.TransportErr = errors.New("no transport configured")
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger}, nil
}

// Request describes one invocation.
type Request struct {
	// Source is a local path, file:// or s3:// URI.
	Source  string
	Mapping runsheet.Mapping
	// DryRun stops after merging; nothing is sent.
	DryRun bool
	// Archive, when set, receives one <run>_run.pdf per detected run.
	Archive string
}

// BundleReport describes one recipient's combined document.
type BundleReport struct {
	Recipient string   `json:"recipient" yaml:"recipient"`
	Runs      []string `json:"runs" yaml:"runs"`
	Pages     int      `json:"pages" yaml:"pages"`
	Bytes     int      `json:"bytes" yaml:"bytes"`
}

// Report is the outcome of one Run.
type Report struct {
	ID            string                  `json:"id" yaml:"id"`
	Source        string                  `json:"source" yaml:"source"`
	Digest        string                  `json:"digest" yaml:"digest"`
	Pages         int                     `json:"pages" yaml:"pages"`
	Preamble      int                     `json:"preamble,omitempty" yaml:"preamble,omitempty"`
	Segments      []runsheet.Segment      `json:"segments" yaml:"segments"`
	Reappearances []runsheet.Reappearance `json:"reappearances,omitempty" yaml:"reappearances,omitempty"`
	Bundles       []BundleReport          `json:"bundles" yaml:"bundles"`
	Archived      []string                `json:"archived,omitempty" yaml:"archived,omitempty"`
	Summary       *dispatch.Summary       `json:"summary" yaml:"summary"`
}

// loaded is a fetched source with its extracted pages.
type loaded struct {
	doc    []byte
	digest string
	pages  []runsheet.Page
}

// Run processes one document. Input errors and ErrNoRunsDetected abort
// before anything is sent; per-recipient send failures are reported in the
// summary. The work directory is removed on every exit path.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	id := uuid.NewString()
	logger := p.logger.With("id", id, "source", req.Source)

	workDir, err := p.cfg.Home.EnsureWorkDir(id)
	if err != nil {
		return nil, err
	}
	defer p.cleanup(logger, workDir)

	report, err := p.run(ctx, logger, workDir, req)
	if err != nil {
		metrics.DocumentsFailed.Inc()
		return nil, err
	}
	report.ID = id

	metrics.DocumentsProcessed.Inc()
	metrics.RunsDetected.Add(float64(len(report.Segments)))
	metrics.RunsUnassigned.Add(float64(len(report.Summary.Unassigned)))
	metrics.MessagesSent.Add(float64(report.Summary.Sent))
	metrics.MessagesFailed.Add(float64(report.Summary.Failed))
	if report.Summary.Skipped && report.Summary.SkipReason != SkipDryRun {
		metrics.DispatchSkipped.Inc()
	}
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, workDir string, req Request) (*Report, error) {
	src, err := p.load(ctx, logger, workDir, req.Source)
	if err != nil {
		return nil, err
	}

	det, err := runsheet.Detect(src.pages, p.cfg.Detect)
	if err != nil {
		return nil, err
	}
	logger.Info("detected runs", "runs", det.RunIDs(), "pages", det.PageCount)
	for _, r := range det.Reappearances {
		logger.Warn("run reappeared after another run", "run", r.RunID, "first_page", r.FirstPage+1, "page", r.Page+1)
	}
	if det.Preamble > 0 {
		logger.Warn("pages before first run marker folded into first run", "pages", det.Preamble, "run", det.Segments[0].RunID)
	}

	docs, err := runsheet.Split(src.doc, det, p.cfg.Pager)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		name := filepath.Join(workDir, splitName(d.RunID))
		if err := os.WriteFile(name, d.Document, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write split %s: %w", d.RunID, err)
		}
	}
	logger.Info("split document", "runs", len(docs))

	var archived []string
	if req.Archive != "" {
		archived, err = p.archive(ctx, req.Archive, docs)
		if err != nil {
			return nil, err
		}
		logger.Info("archived runs", "dest", req.Archive, "files", len(archived))
	}

	g := runsheet.Group(docs, req.Mapping)
	for _, id := range g.Unassigned {
		logger.Warn("run has no recipient", "run", id)
	}

	g, err = runsheet.MergeBundles(g, p.cfg.Pager)
	if err != nil {
		return nil, err
	}
	logger.Info("merged bundles", "recipients", len(g.Bundles), "unassigned", len(g.Unassigned))

	var summary *dispatch.Summary
	switch {
	case req.DryRun:
		summary = dispatch.Skip(g, SkipDryRun)
	case p.cfg.Transport == nil:
		logger.Warn("dispatch skipped", "reason", p.cfg.TransportErr)
		summary = dispatch.Skip(g, p.cfg.TransportErr.Error())
	default:
		summary = dispatch.New(p.cfg.Transport, p.cfg.Dispatch).Dispatch(ctx, g)
		logger.Info("dispatch complete", "sent", summary.Sent, "failed", summary.Failed)
	}

	return &Report{
		Source:        req.Source,
		Digest:        src.digest,
		Pages:         det.PageCount,
		Preamble:      det.Preamble,
		Segments:      det.Segments,
		Reappearances: det.Reappearances,
		Bundles:       bundleReports(g),
		Archived:      archived,
		Summary:       summary,
	}, nil
}

// Detect fetches a document and returns its run segments without splitting
// or sending anything.
func (p *Pipeline) Detect(ctx context.Context, source string) (*runsheet.Detection, error) {
	id := uuid.NewString()
	logger := p.logger.With("id", id, "source", source)

	workDir, err := p.cfg.Home.EnsureWorkDir(id)
	if err != nil {
		return nil, err
	}
	defer p.cleanup(logger, workDir)

	src, err := p.load(ctx, logger, workDir, source)
	if err != nil {
		return nil, err
	}
	return runsheet.Detect(src.pages, p.cfg.Detect)
}

func (p *Pipeline) load(ctx context.Context, logger *slog.Logger, workDir, source string) (*loaded, error) {
	doc, err := storage.ReadAll(ctx, p.cfg.Store, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pdf.ErrExtraction, source, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", pdf.ErrExtraction, source)
	}

	local := filepath.Join(workDir, "source.pdf")
	if err := os.WriteFile(local, doc, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage source: %w", err)
	}

	pages, err := p.cfg.Text.Pages(ctx, local)
	if err != nil {
		return nil, err
	}
	logger.Debug("extracted pages", "pages", len(pages), "bytes", len(doc))

	return &loaded{doc: doc, digest: ledger.Digest(doc), pages: pages}, nil
}

func (p *Pipeline) archive(ctx context.Context, dest string, docs []runsheet.RunDocument) ([]string, error) {
	uris := make([]string, 0, len(docs))
	for _, d := range docs {
		uri, err := p.cfg.Store.Put(ctx, storage.Join(dest, splitName(d.RunID)), bytes.NewReader(d.Document))
		if err != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", d.RunID, err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (p *Pipeline) cleanup(logger *slog.Logger, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("failed to remove work directory", "dir", workDir, "error", err)
	}
}

var unsafeName = strings.NewReplacer("/", "_", "\\", "_")

// splitName is the file name of one run's document.
func splitName(runID string) string {
	return unsafeName.Replace(runID) + "_run.pdf"
}

func bundleReports(g runsheet.Grouping) []BundleReport {
	out := make([]BundleReport, 0, len(g.Bundles))
	for _, b := range g.Bundles {
		out = append(out, BundleReport{
			Recipient: b.Recipient,
			Runs:      b.RunIDs(),
			Pages:     b.PageCount(),
			Bytes:     len(b.Merged),
		})
	}
	return out
}
