package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/runsheets/internal/config"
	"github.com/jackzampolin/runsheets/internal/dispatch"
	"github.com/jackzampolin/runsheets/internal/home"
	"github.com/jackzampolin/runsheets/internal/mailer"
	"github.com/jackzampolin/runsheets/internal/mapping"
	"github.com/jackzampolin/runsheets/internal/pdf"
	"github.com/jackzampolin/runsheets/internal/pipeline"
	"github.com/jackzampolin/runsheets/internal/runsheet"
	"github.com/jackzampolin/runsheets/internal/storage"
)

// buildPipeline wires the pipeline from configuration. An incomplete mail
// section does not fail here: dispatch is skipped and reported instead.
func buildPipeline(cfg *config.Config, h *home.Dir, logger *slog.Logger) (*pipeline.Pipeline, error) {
	policy, err := runsheet.ParseReappearPolicy(cfg.Detect.Reappear)
	if err != nil {
		return nil, err
	}

	var transport dispatch.Transport
	transportErr := cfg.Mail.Validate()
	if transportErr == nil {
		client, err := mailer.New(mailer.OptionsFromConfig(cfg.Mail), logger)
		if err != nil {
			return nil, err
		}
		transport = client
	}

	return pipeline.New(pipeline.Config{
		Home:         h,
		Store:        storage.New(logger),
		Text:         pdf.NewTextSource(logger),
		Pager:        pdf.NewPager(),
		Transport:    transport,
		TransportErr: transportErr,
		Detect: runsheet.DetectOptions{
			RunPrefix: cfg.Detect.RunPrefix,
			Reappear:  policy,
		},
		Dispatch: dispatch.Options{
			Concurrency: cfg.Dispatch.Concurrency,
			Greeting:    cfg.Dispatch.Greeting,
			Signature:   cfg.Dispatch.Signature,
			Logger:      logger,
		},
		Logger: logger,
	})
}

// loadMapping reads --mapping and --inline. Inline entries override the
// file's.
func loadMapping(path, inline string) (runsheet.Mapping, error) {
	if path == "" && inline == "" {
		return nil, errors.New("a mapping is required: use --mapping or --inline")
	}

	m := make(runsheet.Mapping)
	if path != "" {
		fm, err := mapping.Load(path)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", path, err)
		}
		for k, v := range fm {
			m[k] = v
		}
	}
	if inline != "" {
		im, err := mapping.ParseInline(inline)
		if err != nil {
			return nil, fmt.Errorf("inline mapping: %w", err)
		}
		for k, v := range im {
			m[k] = v
		}
	}
	return m, nil
}
