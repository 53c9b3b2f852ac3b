// Package api is the HTTP client for the collaborator backend: the
// pull-based source of truth for notifications and the invitation
// endpoints the reconciler drives.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/boardsync/boardsync/internal/model"
)

// NotificationPage is the server's answer to a notification fetch: the
// latest N entries plus the authoritative totals. UnreadCount may exceed the
// unread entries in Notifications when older unread items fall outside the
// window.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	Total         int                  `json:"total"`
	UnreadCount   int                  `json:"unreadCount"`
}

// Client talks to the collaborator backend with a bearer credential.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the given base URL and session credential.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchNotifications retrieves the latest notifications and the
// authoritative unread count.
func (c *Client) FetchNotifications(ctx context.Context, limit int) (*NotificationPage, error) {
	var page NotificationPage
	url := fmt.Sprintf("%s/api/notifications?limit=%d", c.baseURL, limit)
	if err := c.do(ctx, http.MethodGet, url, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UnreadCount retrieves only the authoritative unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	url := c.baseURL + "/api/notifications/unread-count"
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkNotificationRead flags a single notification read server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/api/notifications/%s/read", c.baseURL, id)
	return c.do(ctx, http.MethodPut, url, nil, nil)
}

// MarkAllNotificationsRead flags every notification of the session's user
// read server-side, including those outside any fetched window.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, c.baseURL+"/api/notifications/read-all", nil, nil)
}

// AcceptInvitation accepts a team invitation by invitation id.
func (c *Client) AcceptInvitation(ctx context.Context, invitationID string) error {
	url := fmt.Sprintf("%s/api/teams/invitations/%s/accept", c.baseURL, invitationID)
	return c.do(ctx, http.MethodPost, url, nil, nil)
}

// RejectInvitation rejects a team invitation by invitation id.
func (c *Client) RejectInvitation(ctx context.Context, invitationID string) error {
	url := fmt.Sprintf("%s/api/teams/invitations/%s/reject", c.baseURL, invitationID)
	return c.do(ctx, http.MethodPost, url, nil, nil)
}

// do performs one round trip, decoding a JSON body into out when non-nil.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("api returned status %d for %s %s", resp.StatusCode, method, url)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
