package domain

import (
	"fmt"
	"strings"
	"time"
)

// AccessReason explains an access decision.
type AccessReason string

const (
	AccessReasonAdmin               AccessReason = "admin"
	AccessReasonWhitelisted         AccessReason = "whitelisted"
	AccessReasonChannelMember       AccessReason = "channel_member"
	AccessReasonBanned              AccessReason = "banned"
	AccessReasonNoChannelMembership AccessReason = "no_channel_membership"
	AccessReasonError               AccessReason = "error"
	AccessReasonDisabled            AccessReason = "access_disabled"
	AccessReasonNoChannelsRequired  AccessReason = "no_channels_required"
)

// AccessDecision is the outcome of the access gate for one request.
type AccessDecision struct {
	Allowed bool         `json:"allowed"`
	Reason  AccessReason `json:"reason"`
}

// Allow returns an allowing decision.
func Allow(reason AccessReason) AccessDecision {
	return AccessDecision{Allowed: true, Reason: reason}
}

// Deny returns a denying decision.
func Deny(reason AccessReason) AccessDecision {
	return AccessDecision{Allowed: false, Reason: reason}
}

// AccessStatus is the per-user access flag stored in the users table.
type AccessStatus int

const (
	AccessStatusBanned      AccessStatus = -1
	AccessStatusNormal      AccessStatus = 0
	AccessStatusWhitelisted AccessStatus = 1
)

// String returns a readable name for the status.
func (s AccessStatus) String() string {
	switch s {
	case AccessStatusBanned:
		return "banned"
	case AccessStatusWhitelisted:
		return "whitelisted"
	}
	return "normal"
}

// ParseAccessStatus parses a status name as produced by String.
func ParseAccessStatus(s string) (AccessStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "banned", "ban":
		return AccessStatusBanned, nil
	case "whitelisted", "whitelist":
		return AccessStatusWhitelisted, nil
	case "normal", "reset":
		return AccessStatusNormal, nil
	}
	return AccessStatusNormal, fmt.Errorf("%w: unknown access status %q", ErrInvalidRequest, s)
}

// Channel is a required channel a user must belong to.
type Channel struct {
	ChannelID int64     `json:"channel_id"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	IsActive  bool      `json:"is_active"`
	AddedBy   int64     `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}
