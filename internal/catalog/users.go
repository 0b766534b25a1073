package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

// MinPasswordLength applies to every password the client sends
const MinPasswordLength = 6

// Users keeps the account view in step with the server
type Users struct {
	api   Requester
	auth  Authenticator
	locks keyedMutex
	view  view[models.User]
}

func NewUsers(api Requester, auth Authenticator) *Users {
	return &Users{api: api, auth: auth}
}

func (u *Users) List(ctx context.Context) ([]models.User, error) {
	if !u.auth.Authenticated() {
		return nil, gateway.NotAuthenticated()
	}

	items, err := u.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	u.view.replace(items)
	return items, nil
}

func (u *Users) Create(ctx context.Context, draft models.UserDraft) (models.User, error) {
	if !u.auth.Authenticated() {
		return models.User{}, gateway.NotAuthenticated()
	}
	if strings.TrimSpace(draft.Email) == "" {
		return models.User{}, gateway.Invalid("email", "email is required")
	}
	if err := validatePassword("password", draft.Password); err != nil {
		return models.User{}, err
	}

	var created models.User
	if err := u.api.PostJSON(ctx, "/users", draft, &created); err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("User created", "id", created.ID, "email", created.Email)

	u.refresh(ctx)
	return created, nil
}

// Update changes the fields set in patch. A nil Password leaves the
// password as it is.
func (u *Users) Update(ctx context.Context, id int64, patch models.UserPatch) (models.User, error) {
	if !u.auth.Authenticated() {
		return models.User{}, gateway.NotAuthenticated()
	}
	if patch.IsEmpty() {
		return models.User{}, gateway.Invalid("patch", "Nothing to update")
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return models.User{}, gateway.Invalid("email", "email must not be blank")
	}
	if patch.Password != nil {
		if err := validatePassword("password", *patch.Password); err != nil {
			return models.User{}, err
		}
	}

	unlock := u.locks.lock(id)
	defer unlock()

	var updated models.User
	if err := u.api.PutJSON(ctx, userPath(id), patch, &updated); err != nil {
		return models.User{}, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	slog.Info("User updated", "id", id)

	u.refresh(ctx)
	return updated, nil
}

func (u *Users) Remove(ctx context.Context, id int64) error {
	if !u.auth.Authenticated() {
		return gateway.NotAuthenticated()
	}

	unlock := u.locks.lock(id)
	defer unlock()

	if err := u.api.Delete(ctx, userPath(id), nil); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	slog.Info("User deleted", "id", id)

	u.refresh(ctx)
	return nil
}

// View returns a copy of the current user view
func (u *Users) View() []models.User {
	return u.view.snapshot()
}

func (u *Users) Stale() bool {
	return u.view.isStale()
}

func (u *Users) fetch(ctx context.Context) ([]models.User, error) {
	items := []models.User{}
	if err := u.api.Get(ctx, "/users", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (u *Users) refresh(ctx context.Context) {
	items, err := u.fetch(ctx)
	if err != nil {
		slog.Warn("Unable to refresh users", "err", err)
		u.view.markStale()
		return
	}
	u.view.replace(items)
}

func validatePassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return gateway.Invalid(field, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func userPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10)
}
