package runsheet

import "fmt"

// Split slices doc into one document per detected segment, in segment order.
// Empty segments fail fast before anything is sliced.
func Split(doc []byte, det *Detection, pager Pager) ([]RunDocument, error) {
	for _, s := range det.Segments {
		if s.Start >= s.End {
			return nil, fmt.Errorf("%w: %s [%d, %d)", ErrEmptySegment, s.RunID, s.Start, s.End)
		}
	}

	total, err := pager.PageCount(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if err := ValidatePartition(det.Segments, total); err != nil {
		return nil, err
	}

	docs := make([]RunDocument, 0, len(det.Segments))
	for _, s := range det.Segments {
		out, err := pager.Slice(doc, s.Start, s.End)
		if err != nil {
			return nil, fmt.Errorf("failed to slice %s pages %d-%d: %w", s.RunID, s.Start+1, s.End, err)
		}
		docs = append(docs, RunDocument{Segment: s, Document: out})
	}
	return docs, nil
}
