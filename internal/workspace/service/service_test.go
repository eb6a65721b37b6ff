package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	"identity-service/internal/events"
	membershipdomain "identity-service/internal/membership/domain"
	"identity-service/internal/role"
	userdomain "identity-service/internal/user/domain"
	"identity-service/internal/workspace/domain"
)

type memWorkspaceRepo struct {
	rows  map[string]*domain.Workspace
	owner map[string]string // workspace id -> user id, drives ListByUser
}

func newMemWorkspaceRepo() *memWorkspaceRepo {
	return &memWorkspaceRepo{rows: make(map[string]*domain.Workspace), owner: make(map[string]string)}
}

func (r *memWorkspaceRepo) GetByID(_ context.Context, id string) (*domain.Workspace, error) {
	w, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *memWorkspaceRepo) ListByUser(_ context.Context, userID string) ([]*domain.Workspace, error) {
	var out []*domain.Workspace
	for id, owner := range r.owner {
		if owner == userID {
			cp := *r.rows[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memWorkspaceRepo) ListNamesByUser(_ context.Context, userID string) ([]string, error) {
	list, _ := r.ListByUser(context.Background(), userID)
	names := make([]string, 0, len(list))
	for _, w := range list {
		names = append(names, w.Name)
	}
	return names, nil
}

func (r *memWorkspaceRepo) Create(_ context.Context, w *domain.Workspace) error {
	cp := *w
	r.rows[w.ID] = &cp
	return nil
}

func (r *memWorkspaceRepo) UpdateStatus(_ context.Context, id string, status domain.Status) (*domain.Workspace, error) {
	w, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	w.Status = status
	cp := *w
	return &cp, nil
}

func (r *memWorkspaceRepo) Delete(_ context.Context, id string) error {
	delete(r.rows, id)
	delete(r.owner, id)
	return nil
}

type fakeMemberships struct {
	byPair    map[string]*membershipdomain.WorkspaceMembership
	created   []string // "user/workspace"
	createErr error
}

func newFakeMemberships() *fakeMemberships {
	return &fakeMemberships{byPair: make(map[string]*membershipdomain.WorkspaceMembership)}
}

func (f *fakeMemberships) Create(_ context.Context, userID, workspaceID string, roles role.Set) (*membershipdomain.WorkspaceMembership, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	m := &membershipdomain.WorkspaceMembership{
		ID: "m-" + userID, UserID: userID, WorkspaceID: workspaceID,
		Roles: roles, Status: membershipdomain.StatusActive,
	}
	f.byPair[userID+"/"+workspaceID] = m
	f.created = append(f.created, userID+"/"+workspaceID)
	return m, nil
}

func (f *fakeMemberships) GetByUserAndWorkspace(_ context.Context, userID, workspaceID string) (*membershipdomain.WorkspaceMembership, error) {
	return f.byPair[userID+"/"+workspaceID], nil
}

func (f *fakeMemberships) ListByWorkspace(_ context.Context, workspaceID string) ([]*membershipdomain.WorkspaceMembership, error) {
	var out []*membershipdomain.WorkspaceMembership
	for _, m := range f.byPair {
		if m.WorkspaceID == workspaceID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeUsers struct {
	rows map[string]*userdomain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	u, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetCurrentWorkspace(_ context.Context, userID, workspaceID string) (*userdomain.User, error) {
	u, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	u.CurrentWorkspaceID = workspaceID
	cp := *u
	return &cp, nil
}

type fakeSync struct {
	calls int
	err   error
}

func (f *fakeSync) SyncAttributes(context.Context, string, *userdomain.User) error {
	f.calls++
	return f.err
}

type recordingProducer struct {
	published []events.Envelope
}

func (p *recordingProducer) Publish(_ context.Context, env events.Envelope) error {
	p.published = append(p.published, env)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type fixture struct {
	svc         *WorkspaceService
	repo        *memWorkspaceRepo
	memberships *fakeMemberships
	users       *fakeUsers
	sync        *fakeSync
	producer    *recordingProducer
}

func newFixture() fixture {
	repo := newMemWorkspaceRepo()
	memberships := newFakeMemberships()
	users := &fakeUsers{rows: map[string]*userdomain.User{
		"u1": {ID: "u1", Email: "ada@example.com", GivenName: "Ada", FamilyName: "Lovelace", Active: true},
	}}
	sync := &fakeSync{}
	producer := &recordingProducer{}
	svc := NewWorkspaceService(repo, memberships, users, sync, producer, zerolog.Nop())
	return fixture{svc: svc, repo: repo, memberships: memberships, users: users, sync: sync, producer: producer}
}

func TestProvisionCreatesWorkspaceAndFounderMembership(t *testing.T) {
	f := newFixture()
	w, err := f.svc.Provision(context.Background(), "u1", "Research")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if w.Status != domain.StatusProvisioning {
		t.Errorf("status = %s, want PROVISIONING", w.Status)
	}
	if w.Plan != domain.PlanStarter {
		t.Errorf("plan = %s, want STARTER", w.Plan)
	}

	m := f.memberships.byPair["u1/"+w.ID]
	if m == nil {
		t.Fatal("founder membership not created")
	}
	if got := m.Roles.Names(); len(got) != 3 || got[0] != "OWNER" || got[1] != "READ" || got[2] != "WRITE" {
		t.Errorf("founder roles = %v, want [OWNER READ WRITE]", got)
	}

	if len(f.producer.published) != 1 || f.producer.published[0].Type != events.TopicWorkspaceProvisioning {
		t.Errorf("published = %+v, want one workspace.provisioning", f.producer.published)
	}
}

func TestProvisionCleansUpWhenFounderMembershipFails(t *testing.T) {
	f := newFixture()
	f.memberships.createErr = errors.New("insert failed")

	if _, err := f.svc.Provision(context.Background(), "u1", "Research"); err == nil {
		t.Fatal("expected founder membership failure to propagate")
	}
	if len(f.repo.rows) != 0 {
		t.Errorf("workspace rows left behind after failed provisioning: %d", len(f.repo.rows))
	}
	if len(f.producer.published) != 0 {
		t.Errorf("no event must be published for an unwound provisioning, got %d", len(f.producer.published))
	}
}

func TestProvisionDefaultDedupesName(t *testing.T) {
	f := newFixture()
	for i, name := range []string{"Ada Lovelace's Workspace", "Ada Lovelace's Workspace 2"} {
		id := string(rune('a' + i))
		f.repo.rows[id] = &domain.Workspace{ID: id, Name: name, Status: domain.StatusActive, Plan: domain.PlanStarter}
		f.repo.owner[id] = "u1"
	}

	user, _ := f.users.GetByID(context.Background(), "u1")
	w, err := f.svc.ProvisionDefault(context.Background(), user)
	if err != nil {
		t.Fatalf("ProvisionDefault: %v", err)
	}
	if w.Name != "Ada Lovelace's Workspace 3" {
		t.Errorf("name = %q, want the next free numeric suffix", w.Name)
	}
}

func TestActivate(t *testing.T) {
	f := newFixture()
	f.repo.rows["w1"] = &domain.Workspace{ID: "w1", Status: domain.StatusProvisioning, Plan: domain.PlanStarter}

	w, err := f.svc.Activate(context.Background(), "w1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if w.Status != domain.StatusActive {
		t.Errorf("status = %s, want ACTIVE", w.Status)
	}

	if _, err := f.svc.Activate(context.Background(), "nope"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestDeleteEmitsWorkspaceDeleted(t *testing.T) {
	f := newFixture()
	f.repo.rows["w1"] = &domain.Workspace{ID: "w1", Name: "Research", Status: domain.StatusActive, Plan: domain.PlanStarter}

	if err := f.svc.Delete(context.Background(), "w1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := f.repo.rows["w1"]; ok {
		t.Error("workspace row still present")
	}
	last := f.producer.published[len(f.producer.published)-1]
	if last.Type != events.TopicWorkspaceDeleted || last.Key != "w1" {
		t.Errorf("last event = %s key=%s, want workspace.deleted keyed w1", last.Type, last.Key)
	}

	if err := f.svc.Delete(context.Background(), "w1"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("second delete kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestSwitchRequiresMembership(t *testing.T) {
	f := newFixture()
	f.repo.rows["w1"] = &domain.Workspace{ID: "w1", Status: domain.StatusActive, Plan: domain.PlanStarter}

	_, err := f.svc.Switch(context.Background(), "sub1", "u1", "w1")
	if !apperr.IsKind(err, apperr.KindAccessDenied) {
		t.Fatalf("kind = %v, want access_denied", apperr.KindOf(err))
	}
	if f.users.rows["u1"].CurrentWorkspaceID != "" {
		t.Error("current workspace changed despite denial")
	}
}

func TestSwitchUpdatesCurrentWorkspaceAndSyncs(t *testing.T) {
	f := newFixture()
	f.repo.rows["w1"] = &domain.Workspace{ID: "w1", Status: domain.StatusActive, Plan: domain.PlanStarter}
	f.memberships.Create(context.Background(), "u1", "w1", role.NewSet(role.Read))

	w, err := f.svc.Switch(context.Background(), "sub1", "u1", "w1")
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if w.ID != "w1" {
		t.Errorf("returned workspace %s, want w1", w.ID)
	}
	if f.users.rows["u1"].CurrentWorkspaceID != "w1" {
		t.Error("current workspace not persisted")
	}
	if f.sync.calls != 1 {
		t.Errorf("sync calls = %d, want 1", f.sync.calls)
	}
}

func TestSwitchSurvivesSyncFailure(t *testing.T) {
	f := newFixture()
	f.repo.rows["w1"] = &domain.Workspace{ID: "w1", Status: domain.StatusActive, Plan: domain.PlanStarter}
	f.memberships.Create(context.Background(), "u1", "w1", role.NewSet(role.Read))
	f.sync.err = errors.New("provider down")

	if _, err := f.svc.Switch(context.Background(), "sub1", "u1", "w1"); err != nil {
		t.Fatalf("switch must stand when only the sync fails: %v", err)
	}
	if f.users.rows["u1"].CurrentWorkspaceID != "w1" {
		t.Error("current workspace not persisted")
	}
}
