package model

type User struct {
	ID    string `json:"id"`
	Tier  Tier   `json:"tier"`
	Ctime int64  `json:"ctime"`
	Mtime int64  `json:"mtime"`
}

// TierOverride is an append-only manual tier assignment. It is active while
// ExpiresAt is after the evaluation instant.
type TierOverride struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Tier      Tier   `json:"tier"`
	Reason    string `json:"reason,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
	Ctime     int64  `json:"ctime"`
}

func (o *TierOverride) ActiveAt(now int64) bool {
	return o.ExpiresAt > now
}
