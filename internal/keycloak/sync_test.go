package keycloak

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	userdomain "identity-service/internal/user/domain"
)

type fakeClient struct {
	rep        *Representation
	getErr     error
	updateErr  error
	logoutErr  error
	deleteErr  error
	updates    int
	lastUpdate *Representation
	logouts    int
	deletes    int
}

func (f *fakeClient) GetUser(ctx context.Context, sub string) (*Representation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	cp := *f.rep
	return &cp, nil
}

func (f *fakeClient) UpdateUser(ctx context.Context, sub string, rep *Representation) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.lastUpdate = rep
	return nil
}

func (f *fakeClient) Logout(ctx context.Context, sub string) error {
	f.logouts++
	return f.logoutErr
}

func (f *fakeClient) Delete(ctx context.Context, sub string) error {
	f.deletes++
	return f.deleteErr
}

type staticContributor struct {
	name  string
	attrs map[string][]string
	err   error
}

func (c staticContributor) Name() string { return c.name }

func (c staticContributor) Contribute(context.Context, string, string) (map[string][]string, error) {
	return c.attrs, c.err
}

func newSync(client *fakeClient, contribs ...staticContributor) *SyncService {
	agg := NewAggregator(zerolog.Nop())
	for _, c := range contribs {
		agg.contributors = append(agg.contributors, c)
	}
	return NewSyncService(client, agg, zerolog.Nop())
}

func testUser() *userdomain.User {
	return &userdomain.User{
		ID:                 "u1",
		Email:              "ada@example.com",
		GivenName:          "Ada",
		FamilyName:         "Lovelace",
		Active:             true,
		CurrentWorkspaceID: "w1",
	}
}

func TestSyncNoopWhenNormalizedStateMatches(t *testing.T) {
	client := &fakeClient{rep: &Representation{
		Email:     "Ada@Example.COM",
		FirstName: "ada",
		LastName:  "LOVELACE",
		Attributes: map[string][]string{
			"roles": {" WRITE", "READ ", "OWNER", "READ"},
		},
	}}
	svc := newSync(client, staticContributor{name: "membership", attrs: map[string][]string{
		"roles": {"OWNER", "READ", "WRITE"},
	}})

	if err := svc.SyncAttributes(context.Background(), "sub1", testUser()); err != nil {
		t.Fatalf("SyncAttributes: %v", err)
	}
	if client.updates != 0 {
		t.Errorf("expected zero update calls, got %d", client.updates)
	}
}

func TestSyncSplitsLegacyCommaJoinedValue(t *testing.T) {
	client := &fakeClient{rep: &Representation{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Attributes: map[string][]string{
			"roles": {"OWNER, READ, WRITE"},
		},
	}}
	svc := newSync(client, staticContributor{name: "membership", attrs: map[string][]string{
		"roles": {"READ", "WRITE", "OWNER"},
	}})

	if err := svc.SyncAttributes(context.Background(), "sub1", testUser()); err != nil {
		t.Fatalf("SyncAttributes: %v", err)
	}
	if client.updates != 0 {
		t.Errorf("legacy comma-joined value must compare equal, got %d updates", client.updates)
	}
}

func TestSyncIssuesSingleReplaceOnDiff(t *testing.T) {
	client := &fakeClient{rep: &Representation{
		Email:     "old@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}}
	svc := newSync(client, staticContributor{name: "membership", attrs: map[string][]string{
		"user_id":      {"u1"},
		"workspace_id": {"w1"},
		"roles":        {"OWNER", "READ", "WRITE"},
	}})

	if err := svc.SyncAttributes(context.Background(), "sub1", testUser()); err != nil {
		t.Fatalf("SyncAttributes: %v", err)
	}
	if client.updates != 1 {
		t.Fatalf("expected exactly one replace call, got %d", client.updates)
	}
	if client.lastUpdate.Email != "ada@example.com" {
		t.Errorf("email not replaced: %q", client.lastUpdate.Email)
	}
	got := client.lastUpdate.Attributes["roles"]
	want := []string{"OWNER", "READ", "WRITE"}
	if !equalStrings(got, want) {
		t.Errorf("roles attribute = %v, want %v", got, want)
	}
}

func TestSyncPropagatesSubjectNotFound(t *testing.T) {
	client := &fakeClient{getErr: apperr.New(apperr.KindNotFound, "subject not found: sub1")}
	svc := newSync(client)

	err := svc.SyncAttributes(context.Background(), "sub1", testUser())
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestAggregatorFirstRegisteredWins(t *testing.T) {
	client := &fakeClient{rep: &Representation{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
	}}
	svc := newSync(client,
		staticContributor{name: "first", attrs: map[string][]string{"team": {"alpha"}}},
		staticContributor{name: "second", attrs: map[string][]string{"team": {"beta"}}},
	)

	if err := svc.SyncAttributes(context.Background(), "sub1", testUser()); err != nil {
		t.Fatalf("SyncAttributes: %v", err)
	}
	if got := client.lastUpdate.Attributes["team"]; !equalStrings(got, []string{"alpha"}) {
		t.Errorf("collision winner = %v, want [alpha]", got)
	}
}

func TestAggregatorSkipsFailingContributor(t *testing.T) {
	client := &fakeClient{rep: &Representation{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
	}}
	svc := newSync(client,
		staticContributor{name: "broken", err: errors.New("boom")},
		staticContributor{name: "working", attrs: map[string][]string{"team": {"alpha"}}},
	)

	if err := svc.SyncAttributes(context.Background(), "sub1", testUser()); err != nil {
		t.Fatalf("one failing contributor must not fail the sync: %v", err)
	}
	if got := client.lastUpdate.Attributes["team"]; !equalStrings(got, []string{"alpha"}) {
		t.Errorf("surviving contribution = %v, want [alpha]", got)
	}
}

func TestLogoutTreatsNotFoundAsSuccess(t *testing.T) {
	client := &fakeClient{logoutErr: apperr.New(apperr.KindNotFound, "gone")}
	svc := newSync(client)
	if err := svc.Logout(context.Background(), "sub1"); err != nil {
		t.Errorf("Logout on missing subject = %v, want nil", err)
	}

	client = &fakeClient{logoutErr: apperr.New(apperr.KindAccessDenied, "forbidden")}
	svc = newSync(client)
	if err := svc.Logout(context.Background(), "sub1"); !apperr.IsKind(err, apperr.KindAccessDenied) {
		t.Errorf("access denied must propagate, got %v", err)
	}
}

func TestDeleteSubjectTreatsNotFoundAsSuccess(t *testing.T) {
	client := &fakeClient{deleteErr: apperr.New(apperr.KindNotFound, "gone")}
	svc := newSync(client)
	if err := svc.DeleteSubject(context.Background(), "sub1"); err != nil {
		t.Errorf("DeleteSubject on missing subject = %v, want nil", err)
	}

	client = &fakeClient{deleteErr: apperr.New(apperr.KindUpstream, "500")}
	svc = newSync(client)
	if err := svc.DeleteSubject(context.Background(), "sub1"); !apperr.IsKind(err, apperr.KindUpstream) {
		t.Errorf("upstream failure must propagate, got %v", err)
	}
}
