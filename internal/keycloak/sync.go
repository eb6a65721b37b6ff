package keycloak

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	"identity-service/internal/metrics"
	userdomain "identity-service/internal/user/domain"
)

// SyncService computes the diff between locally desired identity state and
// the provider's current record, and performs the minimal update: at most
// one replace call, none when the normalized states already match.
type SyncService struct {
	client     Client
	aggregator *Aggregator
	log        zerolog.Logger
}

// NewSyncService returns a sync service over the given client and aggregator.
func NewSyncService(client Client, aggregator *Aggregator, log zerolog.Logger) *SyncService {
	return &SyncService{client: client, aggregator: aggregator, log: log}
}

// SyncAttributes reconciles the subject's provider record with the user's
// local profile and aggregated attributes. The subject must already exist
// in the provider: NotFound propagates as a sync failure. Whether a failure
// unwinds the triggering local change is the caller's policy.
func (s *SyncService) SyncAttributes(ctx context.Context, sub string, user *userdomain.User) error {
	desired := s.aggregator.Aggregate(ctx, user.ID, user.CurrentWorkspaceID)

	rep, err := s.client.GetUser(ctx, sub)
	if err != nil {
		metrics.IdPSyncTotal.WithLabelValues("error").Inc()
		return err
	}

	changed := false
	if user.Email != "" && !strings.EqualFold(user.Email, rep.Email) {
		s.log.Info().Str("sub", sub).Str("from", rep.Email).Str("to", user.Email).Msg("updating subject email")
		rep.Email = user.Email
		changed = true
	}
	if user.GivenName != "" && !strings.EqualFold(user.GivenName, rep.FirstName) {
		s.log.Info().Str("sub", sub).Str("from", rep.FirstName).Str("to", user.GivenName).Msg("updating subject given name")
		rep.FirstName = user.GivenName
		changed = true
	}
	if user.FamilyName != "" && !strings.EqualFold(user.FamilyName, rep.LastName) {
		s.log.Info().Str("sub", sub).Str("from", rep.LastName).Str("to", user.FamilyName).Msg("updating subject family name")
		rep.LastName = user.FamilyName
		changed = true
	}

	if s.upsertAttributes(sub, rep, desired) {
		changed = true
	}

	if !changed {
		metrics.IdPSyncTotal.WithLabelValues("noop").Inc()
		s.log.Debug().Str("sub", sub).Msg("subject already in sync; skipping update")
		return nil
	}

	if err := s.client.UpdateUser(ctx, sub, rep); err != nil {
		metrics.IdPSyncTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.IdPSyncTotal.WithLabelValues("updated").Inc()
	s.log.Info().Str("sub", sub).Str("user_id", user.ID).Msg("subject record updated")
	return nil
}

// upsertAttributes merges desired attributes into the representation.
// Returns true if any attribute changed after normalization. A current
// value stored as one comma-joined string (legacy representation) is split
// and re-normalized before comparing.
func (s *SyncService) upsertAttributes(sub string, rep *Representation, desired map[string][]string) bool {
	attrs := rep.Attributes
	if attrs == nil {
		attrs = make(map[string][]string)
	}
	changed := false

	for key, value := range desired {
		newVal := normalize(value)
		if len(newVal) == 0 {
			continue
		}

		current := normalize(attrs[key])
		if len(current) == 1 && strings.Contains(current[0], ",") {
			current = normalize(strings.Split(current[0], ","))
		}

		if !equalStrings(current, newVal) {
			s.log.Info().
				Str("sub", sub).
				Str("key", key).
				Strs("from", current).
				Strs("to", newVal).
				Msg("updating subject attribute")
			attrs[key] = newVal
			changed = true
		}
	}

	if changed {
		rep.Attributes = attrs
	}
	return changed
}

// Logout invalidates all of the subject's sessions. A missing subject is
// treated as already logged out.
func (s *SyncService) Logout(ctx context.Context, sub string) error {
	err := s.client.Logout(ctx, sub)
	if apperr.IsKind(err, apperr.KindNotFound) {
		s.log.Debug().Str("sub", sub).Msg("subject already absent; logout is a no-op")
		return nil
	}
	return err
}

// DeleteSubject removes the subject's provider record. A missing subject is
// treated as already deleted, so local callers can retry after partial
// failure.
func (s *SyncService) DeleteSubject(ctx context.Context, sub string) error {
	err := s.client.Delete(ctx, sub)
	if apperr.IsKind(err, apperr.KindNotFound) {
		s.log.Debug().Str("sub", sub).Msg("subject already absent; delete is a no-op")
		return nil
	}
	return err
}

// normalize trims entries, drops blanks, de-duplicates, and sorts, so
// semantically equal sets compare equal regardless of order or padding.
func normalize(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
