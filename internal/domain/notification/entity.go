package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeMilestoneNudge      Type = "milestone_nudge"      // Buyer: group milestone reached, invite friends
	TypeContemplated        Type = "contemplated"         // Buyer: selected as the group winner
	TypeGroupCompleted      Type = "group_completed"      // Buyer: contemplation finalized
	TypeCommissionConfirmed Type = "commission_confirmed" // Influencer: referral commission credited
	TypeCreditsConverted    Type = "credits_converted"    // Buyer: expired group payment became credits
)

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Type            `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      sql.NullString  `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationData for linking to entities
type NotificationData struct {
	GroupID      *uuid.UUID `json:"group_id,omitempty"`
	CommissionID *uuid.UUID `json:"commission_id,omitempty"`
	AmountCents  *int64     `json:"amount_cents,omitempty"`
	Milestone    string     `json:"milestone,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *NotificationData) {
	if data != nil {
		n.Data, _ = json.Marshal(data)
	}
}

// GetData decodes data from JSON
func (n *Notification) GetData() *NotificationData {
	if n.Data == nil {
		return &NotificationData{}
	}
	var data NotificationData
	_ = json.Unmarshal(n.Data, &data)
	return &data
}
