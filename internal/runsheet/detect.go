package runsheet

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// MarkerToken precedes the run id in a run header line.
	MarkerToken = "Run: "
	// OperatorToken precedes the operator's name on the first page of a run.
	OperatorToken = "Operator name:"
	// DefaultRunPrefix is the run-code prefix that follows MarkerToken.
	DefaultRunPrefix = "SCD"
	// UnknownOperator is used when a run's first page has no operator line.
	UnknownOperator = "Unknown"
)

// ReappearPolicy decides what happens when a run id shows up again after a
// different run has started.
type ReappearPolicy string

const (
	// ReappearMerge treats the marker as a continuation page.
	ReappearMerge ReappearPolicy = "merge"
	// ReappearReject fails detection with ErrRunReappeared.
	ReappearReject ReappearPolicy = "reject"
)

// ParseReappearPolicy validates a configured policy name. Empty means the
// default.
func ParseReappearPolicy(s string) (ReappearPolicy, error) {
	switch ReappearPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReappearMerge:
		return ReappearMerge, nil
	case ReappearReject:
		return ReappearReject, nil
	default:
		return "", fmt.Errorf("unknown reappear policy %q (want merge or reject)", s)
	}
}

// DetectOptions configures Detect.
type DetectOptions struct {
	RunPrefix string
	Reappear  ReappearPolicy
}

// DefaultDetectOptions returns the options used when none are configured.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		RunPrefix: DefaultRunPrefix,
		Reappear:  ReappearMerge,
	}
}

func (o DetectOptions) withDefaults() DetectOptions {
	if o.RunPrefix == "" {
		o.RunPrefix = DefaultRunPrefix
	}
	if o.Reappear == "" {
		o.Reappear = ReappearMerge
	}
	return o
}

// FindMarker looks for a run header on the page. Only the first matching
// line counts; the operator is read from the same page.
func FindMarker(p Page, prefix string) (Marker, bool) {
	needle := MarkerToken + prefix
	lines := strings.Split(p.Text, "\n")
	for _, line := range lines {
		idx := strings.Index(line, needle)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(line[idx+len(MarkerToken):])
		if len(fields) == 0 {
			continue
		}
		return Marker{
			Page:     p.Index,
			RunID:    fields[0],
			Operator: findOperator(lines),
		}, true
	}
	return Marker{}, false
}

func findOperator(lines []string) string {
	for _, line := range lines {
		idx := strings.Index(line, OperatorToken)
		if idx < 0 {
			continue
		}
		if name := strings.TrimSpace(line[idx+len(OperatorToken):]); name != "" {
			return name
		}
		return UnknownOperator
	}
	return UnknownOperator
}

// Detect scans pages in order and returns one segment per distinct run id.
// The first page carrying a run id opens its segment; later pages with the
// same id are continuation pages. Segment ranges partition [0, len(pages)),
// so any pages before the first marker are folded into the first segment.
func Detect(pages []Page, opts DetectOptions) (*Detection, error) {
	opts = opts.withDefaults()

	var (
		segments      []Segment
		reappearances []Reappearance
		seen          = make(map[string]int)
		current       string
	)

	for i, p := range pages {
		if p.Index != i {
			return nil, fmt.Errorf("%w: position %d has index %d", ErrPageOrder, i, p.Index)
		}

		m, ok := FindMarker(p, opts.RunPrefix)
		if !ok {
			continue
		}

		if idx, dup := seen[m.RunID]; dup {
			if m.RunID != current {
				r := Reappearance{RunID: m.RunID, FirstPage: segments[idx].Start, Page: p.Index}
				if opts.Reappear == ReappearReject {
					return nil, fmt.Errorf("%w: %s first seen on page %d, again on page %d",
						ErrRunReappeared, r.RunID, r.FirstPage+1, r.Page+1)
				}
				reappearances = append(reappearances, r)
			}
			current = m.RunID
			continue
		}

		seen[m.RunID] = len(segments)
		segments = append(segments, Segment{
			RunID:    m.RunID,
			Operator: m.Operator,
			Start:    p.Index,
		})
		current = m.RunID
	}

	if len(segments) == 0 {
		return nil, ErrNoRunsDetected
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	// Pages ahead of the first marker belong to the first run so that the
	// segments always cover the whole document.
	preamble := segments[0].Start
	segments[0].Start = 0
	for i := range segments {
		if i+1 < len(segments) {
			segments[i].End = segments[i+1].Start
		} else {
			segments[i].End = len(pages)
		}
	}

	return &Detection{
		Segments:      segments,
		Reappearances: reappearances,
		Preamble:      preamble,
		PageCount:     len(pages),
	}, nil
}

// ValidatePartition checks that segments are non-empty, ordered, touch
// end-to-start, and cover exactly [0, pageCount).
func ValidatePartition(segments []Segment, pageCount int) error {
	if len(segments) == 0 {
		return ErrNoRunsDetected
	}
	next := 0
	for _, s := range segments {
		if s.Start >= s.End {
			return fmt.Errorf("%w: %s [%d, %d)", ErrEmptySegment, s.RunID, s.Start, s.End)
		}
		if s.Start != next {
			return fmt.Errorf("%w: %s starts at %d, expected %d", ErrNotPartition, s.RunID, s.Start, next)
		}
		next = s.End
	}
	if next != pageCount {
		return fmt.Errorf("%w: segments end at %d, document has %d pages", ErrNotPartition, next, pageCount)
	}
	return nil
}
