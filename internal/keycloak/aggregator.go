package keycloak

import (
	"context"

	"github.com/rs/zerolog"

	"identity-service/internal/keycloak/contributor"
)

// Aggregator merges all contributors' outputs into one desired-state map.
// Key collisions resolve first-registered-wins with a warning; a failing
// contributor is logged and skipped. Aggregation itself never fails, so a
// partial attribute set is still pushed rather than blocking the sync.
type Aggregator struct {
	contributors []contributor.AttributeContributor
	log          zerolog.Logger
}

// NewAggregator registers the given contributors in order. Registration
// order decides collision winners.
func NewAggregator(log zerolog.Logger, contributors ...contributor.AttributeContributor) *Aggregator {
	return &Aggregator{contributors: contributors, log: log}
}

// Aggregate collects the desired attribute map for the user and optional
// workspace context. Empty values are dropped.
func (a *Aggregator) Aggregate(ctx context.Context, userID, workspaceID string) map[string][]string {
	aggregated := make(map[string][]string)

	for _, c := range a.contributors {
		contribution, err := c.Contribute(ctx, userID, workspaceID)
		if err != nil {
			a.log.Error().Err(err).
				Str("contributor", c.Name()).
				Str("user_id", userID).
				Msg("attribute contributor failed; skipping")
			continue
		}
		for key, value := range contribution {
			if key == "" || len(value) == 0 {
				continue
			}
			if _, exists := aggregated[key]; exists {
				a.log.Warn().
					Str("contributor", c.Name()).
					Str("key", key).
					Str("user_id", userID).
					Msg("attribute key provided by multiple contributors; keeping first")
				continue
			}
			aggregated[key] = value
		}
	}

	a.log.Debug().
		Int("attributes", len(aggregated)).
		Int("contributors", len(a.contributors)).
		Str("user_id", userID).
		Str("workspace_id", workspaceID).
		Msg("aggregated identity attributes")

	return aggregated
}
