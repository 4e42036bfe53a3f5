package dispatch

// IdentityFilterGraph is a minimal FilterGraph standing in for the
// out-of-scope MIME filter-graph search (spec.md §1 Non-goals). It only
// resolves a chain when the source and destination types already
// match or the destination declares no native type, and that chain is
// always empty (no conversion); production
// deployments wire in the real filter-graph collaborator here instead.
type IdentityFilterGraph struct{}

func (IdentityFilterGraph) Resolve(fromType, toType string) ([]FilterChainEntry, bool) {
	if fromType == toType || toType == "" {
		return nil, true
	}
	return nil, false
}
