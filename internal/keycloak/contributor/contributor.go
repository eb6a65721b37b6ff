// Package contributor defines pluggable providers of identity-provider
// attributes. Contributors are registered statically at startup into an
// ordered list consumed by the aggregator.
package contributor

import "context"

// AttributeContributor produces a partial map of desired external-identity
// attributes for a user and optional workspace context. Implementations
// must not mutate shared state; a returned error causes the contribution to
// be skipped, never the whole aggregation to fail.
type AttributeContributor interface {
	// Name identifies the contributor in collision warnings.
	Name() string
	// Contribute returns the contributor's attribute slice. workspaceID is
	// empty when the user has no current workspace yet.
	Contribute(ctx context.Context, userID, workspaceID string) (map[string][]string, error)
}
