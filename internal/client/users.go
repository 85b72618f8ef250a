package client

import (
	"context"
	"net/http"
	"net/url"

	"order-workflow/internal/model"
)

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.call(ctx, http.MethodGet, "/api/usuarios", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) ListCarriers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.call(ctx, http.MethodGet, "/api/usuarios/transportistas", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	var user model.User
	if err := c.call(ctx, http.MethodPost, "/api/usuarios", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch model.UpdateUserRequest) (*model.User, error) {
	var user model.User
	if err := c.call(ctx, http.MethodPut, "/api/usuarios/"+escape(id), patch, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListLog returns the activity log, newest first. An empty category returns every entry.
func (c *Client) ListLog(ctx context.Context, category model.LogCategory) ([]model.ActivityLogEntry, error) {
	q := url.Values{}
	if category != "" {
		q.Set("tipo", string(category))
	}
	var entries []model.ActivityLogEntry
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/usuarios/log", query: q}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
