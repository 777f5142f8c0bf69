package model

import (
	"time"
)

// Action labels an AuditEvent
type Action string

// Audit actions
const (
	ActionLoginSuccess   Action = "LOGIN_SUCCESS"
	ActionLoginFailed    Action = "LOGIN_FAILED"
	ActionKeyNotFound    Action = "KEY_NOT_FOUND"
	ActionKeyCreated     Action = "KEY_CREATED"
	ActionHWIDReset      Action = "HWID_RESET"
	ActionKeyPaused      Action = "KEY_PAUSED"
	ActionKeyResumed     Action = "KEY_RESUMED"
	ActionKeyDeactivated Action = "KEY_DEACTIVATED"
	ActionKeyReactivated Action = "KEY_REACTIVATED"
)

// LoginActions are the actions recorded for client login attempts
var LoginActions = []Action{
	ActionLoginSuccess,
	ActionLoginFailed,
	ActionKeyNotFound,
}

// AuditEvent is one immutable record of a login attempt or administrative
// action. KeyID references a LicenseKey by identifier; the key may not
// exist (KEY_NOT_FOUND events).
type AuditEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	KeyID     string    `gorm:"size:8;index;not null" json:"key_id"`
	Action    Action    `gorm:"size:32;index;not null" json:"action"`
	Success   bool      `gorm:"index;not null" json:"success"`
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
	HWID      string    `gorm:"column:hwid;size:255" json:"hwid,omitempty"`
	IPAddress string    `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"type:text" json:"user_agent,omitempty"`
	Country   string    `gorm:"size:2" json:"country,omitempty"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

// AuditQuery describes a selection of audit events
type AuditQuery struct {
	// KeySearch is a substring of the key identifier
	KeySearch string
	// Success, if set, restricts to successful or failed events
	Success *bool
	// Actions, if not empty, restricts to these actions
	Actions []Action
}

// AuditLogStore is the append-only store for audit events. Events are only
// ever removed together with their key.
type AuditLogStore interface {
	// Append stores new events
	Append(events ...*AuditEvent) error
	// ListByKey returns the newest events for a key, newest first
	ListByKey(keyID string, limit int) ([]AuditEvent, error)
	// List returns one page of matching events, newest first, and the total
	// number of matching events
	List(query AuditQuery, page Page) ([]AuditEvent, int64, error)
	// Count returns the number of matching events
	Count(query AuditQuery) (int64, error)
}
