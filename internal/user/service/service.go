// Package service implements user bootstrap, profile updates, and account
// deletion, keeping the local record and the identity provider in step.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"identity-service/internal/apperr"
	"identity-service/internal/auth"
	"identity-service/internal/events"
	membershipdomain "identity-service/internal/membership/domain"
	"identity-service/internal/user/domain"
	"identity-service/internal/user/repository"
	workspacedomain "identity-service/internal/workspace/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WorkspaceProvisioner creates a user's first workspace during bootstrap.
type WorkspaceProvisioner interface {
	ProvisionDefault(ctx context.Context, user *domain.User) (*workspacedomain.Workspace, error)
}

// MembershipLifecycle is the slice of the membership service used to tear
// down a user's memberships when the account is deleted.
type MembershipLifecycle interface {
	ListByUser(ctx context.Context, userID string) ([]*membershipdomain.WorkspaceMembership, error)
	Delete(ctx context.Context, userID, workspaceID string, force bool) error
}

// IdentitySync reconciles the provider record with the local user.
type IdentitySync interface {
	SyncAttributes(ctx context.Context, sub string, user *domain.User) error
	Logout(ctx context.Context, sub string) error
	DeleteSubject(ctx context.Context, sub string) error
}

// UserService orchestrates the user account lifecycle.
type UserService struct {
	users       repository.Repository
	workspaces  WorkspaceProvisioner
	memberships MembershipLifecycle
	sync        IdentitySync
	producer    events.Producer
	log         zerolog.Logger
}

// NewUserService returns a UserService with the given dependencies.
func NewUserService(
	users repository.Repository,
	workspaces WorkspaceProvisioner,
	memberships MembershipLifecycle,
	sync IdentitySync,
	producer events.Producer,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		users:       users,
		workspaces:  workspaces,
		memberships: memberships,
		sync:        sync,
		producer:    producer,
		log:         log,
	}
}

// Bootstrap materializes the authenticated subject as a local user. The
// operation is idempotent: an existing user is returned as-is, a concurrent
// first login is resolved by re-reading after the unique-email conflict.
// New users get a default workspace and a provider attribute sync; if that
// sync fails the freshly created row is removed again so a retry starts
// clean.
func (s *UserService) Bootstrap(ctx context.Context, claims auth.Claims) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		return nil, err
	}

	created := false
	if user == nil {
		now := time.Now().UTC()
		user = &domain.User{
			ID:         uuid.New().String(),
			Email:      claims.Email,
			GivenName:  claims.GivenName,
			FamilyName: claims.FamilyName,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := user.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.KindBadRequest, err, "invalid user")
		}
		switch err := s.users.Create(ctx, user); {
		case apperr.IsKind(err, apperr.KindConflict):
			// Another login for the same email won the race.
			user, err = s.users.GetByEmail(ctx, claims.Email)
			if err != nil {
				return nil, err
			}
			if user == nil {
				return nil, apperr.New(apperr.KindUnknown, "user vanished after conflicting bootstrap: %s", claims.Email)
			}
		case err != nil:
			return nil, err
		default:
			created = true
		}
	}

	if user.CurrentWorkspaceID == "" {
		workspace, err := s.workspaces.ProvisionDefault(ctx, user)
		if err != nil {
			s.compensateBootstrap(ctx, user, created)
			return nil, err
		}
		pointed, err := s.users.SetCurrentWorkspace(ctx, user.ID, workspace.ID)
		if err != nil {
			s.compensateBootstrap(ctx, user, created)
			return nil, err
		}
		if pointed == nil {
			s.compensateBootstrap(ctx, user, created)
			return nil, apperr.New(apperr.KindUnknown, "user vanished during bootstrap")
		}
		user = pointed
	}

	if err := s.sync.SyncAttributes(ctx, claims.Subject, user); err != nil {
		s.compensateBootstrap(ctx, user, created)
		return nil, err
	}

	if created {
		outbox := events.NewOutbox(s.producer, s.log)
		outbox.Enqueue(events.NewFromContext(ctx, events.TopicUserCreated, user.ID, userPayload(user, "", false)))
		outbox.Flush(ctx)
		s.log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("user bootstrapped")
	}
	return user, nil
}

// compensateBootstrap removes a user row created within the current call
// after a later bootstrap step failed, so the next login retries from
// scratch. Memberships created along the way go first; their deletion
// events let the orphan resolver reclaim the default workspace.
// Pre-existing users are left untouched.
func (s *UserService) compensateBootstrap(ctx context.Context, user *domain.User, created bool) {
	if !created {
		return
	}
	memberships, err := s.memberships.ListByUser(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("bootstrap compensation failed; row left behind")
		return
	}
	for _, m := range memberships {
		if err := s.memberships.Delete(ctx, user.ID, m.WorkspaceID, true); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Str("workspace_id", m.WorkspaceID).Msg("bootstrap compensation failed; row left behind")
			return
		}
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("bootstrap compensation failed; row left behind")
		return
	}
	s.log.Warn().Str("user_id", user.ID).Msg("bootstrap unwound after downstream failure")
}

// Get returns the user or NotFound.
func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found: %s", userID)
	}
	return user, nil
}

// GetByEmail returns the user with the given email or NotFound.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found: %s", email)
	}
	return user, nil
}

// UpdateInput carries a partial profile update; nil fields stay unchanged.
type UpdateInput struct {
	Email      *string `validate:"omitempty,email"`
	GivenName  *string `validate:"omitempty,min=1,max=255"`
	FamilyName *string `validate:"omitempty,min=1,max=255"`
}

// Update applies a profile change locally and pushes it to the provider.
// An email change is propagated with the previous address so downstream
// caches can invalidate; a sync failure reverts the local write.
func (s *UserService) Update(ctx context.Context, sub, userID string, in UpdateInput) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err, "invalid update")
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := *current

	emailChanged := false
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != current.Email {
			other, err := s.users.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if other != nil && other.ID != userID {
				return nil, apperr.New(apperr.KindConflict, "email already in use: %s", email)
			}
			current.Email = email
			emailChanged = true
		}
	}
	if in.GivenName != nil {
		current.GivenName = strings.TrimSpace(*in.GivenName)
	}
	if in.FamilyName != nil {
		current.FamilyName = strings.TrimSpace(*in.FamilyName)
	}
	if err := current.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err, "invalid user")
	}

	updated, err := s.users.Update(ctx, current)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found: %s", userID)
	}

	if err := s.sync.SyncAttributes(ctx, sub, updated); err != nil {
		// The provider is the source of truth for the profile. Put the
		// previous values back so the two stores do not drift apart.
		if _, revertErr := s.users.Update(ctx, &previous); revertErr != nil {
			s.log.Error().Err(revertErr).Str("user_id", userID).Msg("revert after failed sync also failed")
		}
		return nil, err
	}

	outbox := events.NewOutbox(s.producer, s.log)
	oldEmail := ""
	if emailChanged {
		oldEmail = previous.Email
	}
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicUserUpdated, updated.ID, userPayload(updated, oldEmail, emailChanged)))
	outbox.Flush(ctx)

	s.log.Info().Str("user_id", userID).Bool("email_changed", emailChanged).Msg("user profile updated")
	return updated, nil
}

// Delete removes the account: every membership goes with force (the
// last-workspace guard does not apply to account deletion), the provider
// sessions are revoked and the subject removed, then the local row is
// deleted. The steps are ordered so a retry after partial failure converges;
// provider-side NotFound is treated as already done.
func (s *UserService) Delete(ctx context.Context, sub, userID string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if err := s.memberships.Delete(ctx, userID, m.WorkspaceID, true); err != nil {
			return err
		}
	}

	if err := s.sync.Logout(ctx, sub); err != nil {
		return err
	}
	if err := s.sync.DeleteSubject(ctx, sub); err != nil {
		return err
	}

	outbox := events.NewOutbox(s.producer, s.log)
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	outbox.Enqueue(events.NewFromContext(ctx, events.TopicUserDeleted, userID, userPayload(user, user.Email, true)))
	outbox.Flush(ctx)

	s.log.Info().Str("user_id", userID).Str("email", user.Email).Msg("user deleted")
	return nil
}

func userPayload(u *domain.User, oldEmail string, invalidate bool) events.UserPayload {
	return events.UserPayload{
		UserID:             u.ID,
		Email:              u.Email,
		OldEmail:           oldEmail,
		GivenName:          u.GivenName,
		FamilyName:         u.FamilyName,
		Active:             u.Active,
		CurrentWorkspaceID: u.CurrentWorkspaceID,
		Invalidate:         invalidate,
	}
}
