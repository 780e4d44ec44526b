package runsheet

import "fmt"

// Merge concatenates the run documents in order into one document.
func Merge(runs []RunDocument, pager Pager) ([]byte, error) {
	if len(runs) == 0 {
		return nil, ErrEmptyBundle
	}
	docs := make([][]byte, len(runs))
	for i, r := range runs {
		docs[i] = r.Document
	}
	out, err := pager.Merge(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to merge %d runs: %w", len(runs), err)
	}
	return out, nil
}

// MergeBundles returns a copy of g with every bundle's Merged document set.
func MergeBundles(g Grouping, pager Pager) (Grouping, error) {
	out := Grouping{
		Runs:       g.Runs,
		Bundles:    make([]Bundle, len(g.Bundles)),
		Unassigned: append([]string(nil), g.Unassigned...),
	}
	for i, b := range g.Bundles {
		merged, err := Merge(b.Runs, pager)
		if err != nil {
			return Grouping{}, fmt.Errorf("recipient %s: %w", b.Recipient, err)
		}
		out.Bundles[i] = Bundle{
			Recipient: b.Recipient,
			Runs:      append([]RunDocument(nil), b.Runs...),
			Merged:    merged,
		}
	}
	return out, nil
}
