package model

import "time"

// RedemptionRecord is an immutable audit entry for a real-world reward redeemed
// by a teacher on behalf of a student.
type RedemptionRecord struct {
	ID         string    `json:"id" bson:"_id"`
	UserID     string    `json:"user_id" bson:"user_id"`
	RewardID   string    `json:"reward_id" bson:"reward_id"`
	Cost       int64     `json:"cost" bson:"cost"`
	RedeemedBy string    `json:"redeemed_by,omitempty" bson:"redeemed_by,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
