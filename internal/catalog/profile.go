package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

// Session is what Profile needs from the session manager
type Session interface {
	Authenticated() bool
	Identity() string
	Logout()
}

// ProfileResult is the outcome of a profile update
type ProfileResult struct {
	User models.User
	// ReauthRequired is set when the email changed. The session has already
	// been ended; the caller must log in again with the new email.
	ReauthRequired bool
}

// Profile manages the signed-in user's own account
type Profile struct {
	api     Requester
	session Session
}

func NewProfile(api Requester, session Session) *Profile {
	return &Profile{api: api, session: session}
}

func (p *Profile) Update(ctx context.Context, patch models.ProfilePatch) (ProfileResult, error) {
	if !p.session.Authenticated() {
		return ProfileResult{}, gateway.NotAuthenticated()
	}
	if patch.Email == nil && patch.Name == nil {
		return ProfileResult{}, gateway.Invalid("patch", "Nothing to update")
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return ProfileResult{}, gateway.Invalid("email", "email must not be blank")
	}

	// the token is scoped to the identity it was issued for
	identity := p.session.Identity()
	emailChanged := patch.Email != nil && *patch.Email != identity

	var updated models.User
	if err := p.api.PutJSON(ctx, "/profile", patch, &updated); err != nil {
		return ProfileResult{}, fmt.Errorf("failed to update profile: %w", err)
	}

	result := ProfileResult{User: updated, ReauthRequired: emailChanged}
	if emailChanged {
		slog.Info("Email changed, login required", "old", identity, "new", updated.Email)
		p.session.Logout()
	} else {
		slog.Info("Profile updated", "email", updated.Email)
	}
	return result, nil
}

// ChangePassword ends the session on success since the server may have
// invalidated the token. A rejected current password leaves it alone.
func (p *Profile) ChangePassword(ctx context.Context, current, next string) error {
	if err := validatePassword("new_password", next); err != nil {
		return err
	}
	if !p.session.Authenticated() {
		return gateway.NotAuthenticated()
	}

	body := models.PasswordChange{CurrentPassword: current, NewPassword: next}
	if err := p.api.PostJSON(ctx, "/change-password", body, nil); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	slog.Info("Password changed, login required")
	p.session.Logout()
	return nil
}
