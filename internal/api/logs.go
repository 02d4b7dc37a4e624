package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wolfeidau/fpconsole/internal/models"
)

// Logs wraps the /logs/ endpoints.
type Logs struct {
	c Doer
}

func (l *Logs) List(ctx context.Context, params url.Values) (*models.Page[models.LogEntry], error) {
	var page models.Page[models.LogEntry]
	if err := l.c.Do(ctx, http.MethodGet, "/logs/", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (l *Logs) Search(ctx context.Context, params url.Values) (*models.Page[models.LogEntry], error) {
	var page models.Page[models.LogEntry]
	if err := l.c.Do(ctx, http.MethodGet, "/logs/search/", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// The backend has no endpoint for the action vocabulary, it is defined here.
var logActionTypes = []models.ActionType{
	{Value: "login", Display: "Login"},
	{Value: "logout", Display: "Logout"},
	{Value: "create_user", Display: "Create user"},
	{Value: "update_user", Display: "Update user"},
	{Value: "delete_user", Display: "Delete user"},
	{Value: "reset_password", Display: "Reset password"},
	{Value: "create_task", Display: "Create task"},
	{Value: "update_task", Display: "Update task"},
	{Value: "delete_task", Display: "Delete task"},
	{Value: "submit_fingerprint", Display: "Submit fingerprint"},
	{Value: "update_fingerprint", Display: "Update fingerprint"},
	{Value: "delete_fingerprint", Display: "Delete fingerprint"},
	{Value: "approve_fingerprint", Display: "Review fingerprint"},
}

// LogActionTypes returns the log action vocabulary without calling the backend.
func LogActionTypes() []models.ActionType {
	out := make([]models.ActionType, len(logActionTypes))
	copy(out, logActionTypes)
	return out
}
