package api

import (
	"context"
	"net/http"

	"github.com/wolfeidau/fpconsole/internal/models"
)

// Users wraps the /users/ endpoints, both the session lifecycle and admin management.
type Users struct {
	c Doer
}

// Login authenticates with the backend, which answers with a session cookie.
func (u *Users) Login(ctx context.Context, creds models.Credentials) error {
	return u.c.Do(ctx, http.MethodPost, "/users/login/", nil, creds, nil)
}

// Register creates an account for the caller.
func (u *Users) Register(ctx context.Context, reg models.Registration) error {
	return u.c.Do(ctx, http.MethodPost, "/users/register/", nil, reg, nil)
}

// Logout ends the backend session.
func (u *Users) Logout(ctx context.Context) error {
	return u.c.Do(ctx, http.MethodPost, "/users/logout/", nil, nil, nil)
}

// Me returns the current user and profile.
func (u *Users) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := u.c.Do(ctx, http.MethodGet, "/users/me/", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *Users) List(ctx context.Context) (*models.Page[models.User], error) {
	var page models.Page[models.User]
	if err := u.c.Do(ctx, http.MethodGet, "/users/", nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (u *Users) Create(ctx context.Context, in models.UserInput) (*models.User, error) {
	var user models.User
	if err := u.c.Do(ctx, http.MethodPost, "/users/", nil, in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *Users) Update(ctx context.Context, id int64, in models.UserInput) (*models.User, error) {
	var user models.User
	if err := u.c.Do(ctx, http.MethodPatch, "/users/"+itoa(id)+"/", nil, in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *Users) Delete(ctx context.Context, id int64) error {
	return u.c.Do(ctx, http.MethodDelete, "/users/"+itoa(id)+"/", nil, nil, nil)
}

// ResetPassword resets the password of the target user. The backend reply,
// which may carry the new password, is returned untouched.
func (u *Users) ResetPassword(ctx context.Context, targetID int64) (map[string]any, error) {
	var out map[string]any
	if err := u.c.Do(ctx, http.MethodPost, "/users/reset_password/", nil, map[string]int64{"target_id": targetID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
