package fronting

import "time"

// Fronter is one active member entry in the user's current fronting state.
type Fronter struct {
	MemberID    string    `json:"member_id"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CustomFront bool      `json:"custom_front,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}

// Snapshot is the complete fronter list at one instant. A snapshot supersedes
// any previous one; the channel keeps no history.
type Snapshot struct {
	Fronters   []Fronter
	ObservedAt time.Time
}
