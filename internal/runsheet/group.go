package runsheet

// Group assigns run documents to recipients. Runs are visited in the order
// given (detection order), so bundles appear in the order of their first run
// and each bundle's runs stay in page order. Runs without a mapping entry are
// returned as unassigned.
func Group(docs []RunDocument, m Mapping) Grouping {
	g := Grouping{Runs: len(docs)}
	index := make(map[string]int)

	for _, d := range docs {
		recipient, ok := m[d.RunID]
		if !ok || recipient == "" {
			g.Unassigned = append(g.Unassigned, d.RunID)
			continue
		}
		i, ok := index[recipient]
		if !ok {
			i = len(g.Bundles)
			index[recipient] = i
			g.Bundles = append(g.Bundles, Bundle{Recipient: recipient})
		}
		g.Bundles[i].Runs = append(g.Bundles[i].Runs, d)
	}
	return g
}
