package domain

import "time"

// RoleChange records one role replacement performed by an administrator.
type RoleChange struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Previous  []string  `json:"previous"`
	Current   []string  `json:"current"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}
