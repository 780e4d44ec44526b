package runsheet

import "errors"

// Sentinel errors for detection, splitting and merging.
var (
	ErrNoRunsDetected = errors.New("no runs detected")
	ErrRunReappeared  = errors.New("run reappeared after another run")
	ErrPageOrder      = errors.New("pages are not contiguous from 0")
	ErrEmptySegment   = errors.New("segment has no pages")
	ErrNotPartition   = errors.New("segments do not partition the document")
	ErrEmptyBundle    = errors.New("bundle has no runs")
)
