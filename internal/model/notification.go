// Package model defines the wire-level data types shared between the
// push channel, the HTTP collaborator, and the reconciler.
package model

import "time"

// Known notification types. The set is open-ended: anything the server
// sends outside this list is treated as a generic notification.
const (
	TypeTeamInvite     = "team_invite"
	TypeMemberJoined   = "member_joined"
	TypeInviteRejected = "invite_rejected"
)

// Data map keys populated by the server for invite-style notifications.
const (
	dataKeyInvitationID = "invitationId"
	dataKeyTeamID       = "teamId"
)

// Notification is a single entry in a user's notification feed. Entries are
// immutable except for the Read flag, which only ever transitions false->true.
// The client never deletes notifications; the server archives them.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsInvite reports whether this notification carries an actionable team
// invitation (pending invites only; a read invite is no longer actionable).
func (n *Notification) IsInvite() bool {
	return n.Type == TypeTeamInvite && !n.Read
}

// InvitationID returns the invitation id from the free-form data map, or ""
// when absent or not a string.
func (n *Notification) InvitationID() string {
	return n.dataString(dataKeyInvitationID)
}

// TeamID returns the team id from the free-form data map, or "" when absent.
func (n *Notification) TeamID() string {
	return n.dataString(dataKeyTeamID)
}

func (n *Notification) dataString(key string) string {
	if n.Data == nil {
		return ""
	}
	if v, ok := n.Data[key].(string); ok {
		return v
	}
	return ""
}
