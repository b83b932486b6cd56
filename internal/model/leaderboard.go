package model

// LeaderboardEntry is one row of the top-N ranking by lifetime total.
type LeaderboardEntry struct {
	Rank          int      `json:"rank"`
	UserID        string   `json:"user_id"`
	DisplayName   string   `json:"display_name"`
	LifetimeTotal int64    `json:"lifetime_total"`
	CosmeticRefs  Equipped `json:"cosmetic_refs"`
}
