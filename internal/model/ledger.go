package model

import "time"

// ItemID identifies a cosmetic item (badge, frame or avatar).
type ItemID string

// Slot is an equipment slot a cosmetic can be displayed in.
type Slot string

const (
	SlotBadge  Slot = "badge"
	SlotFrame  Slot = "frame"
	SlotAvatar Slot = "avatar"
)

// Slots lists every valid equipment slot.
var Slots = []Slot{SlotBadge, SlotFrame, SlotAvatar}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	switch s {
	case SlotBadge, SlotFrame, SlotAvatar:
		return true
	}
	return false
}

// Equipped holds the selected cosmetic per slot. Empty means nothing equipped.
type Equipped struct {
	Badge  ItemID `json:"badge,omitempty" bson:"badge,omitempty"`
	Frame  ItemID `json:"frame,omitempty" bson:"frame,omitempty"`
	Avatar ItemID `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// Get returns the item equipped in slot.
func (e Equipped) Get(slot Slot) ItemID {
	switch slot {
	case SlotBadge:
		return e.Badge
	case SlotFrame:
		return e.Frame
	case SlotAvatar:
		return e.Avatar
	}
	return ""
}

// With returns a copy of e with slot set to item.
func (e Equipped) With(slot Slot, item ItemID) Equipped {
	switch slot {
	case SlotBadge:
		e.Badge = item
	case SlotFrame:
		e.Frame = item
	case SlotAvatar:
		e.Avatar = item
	}
	return e
}

// LedgerRecord is the points and cosmetics state of one user.
type LedgerRecord struct {
	UserID        string    `json:"user_id"`
	Balance       int64     `json:"balance"`
	LifetimeTotal int64     `json:"lifetime_total"`
	Inventory     []ItemID  `json:"inventory"`
	Equipped      Equipped  `json:"equipped"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Owns reports whether item is already in the inventory.
func (r LedgerRecord) Owns(item ItemID) bool {
	for _, owned := range r.Inventory {
		if owned == item {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate the inventory freely.
func (r LedgerRecord) Clone() LedgerRecord {
	out := r
	out.Inventory = make([]ItemID, len(r.Inventory))
	copy(out.Inventory, r.Inventory)
	return out
}

// LedgerDocument is the stored form of a LedgerRecord.
// Body is the JSON document; Version increases by one on every committed write.
type LedgerDocument struct {
	UserID        string
	Body          []byte
	Version       int64
	LifetimeTotal int64
	UpdatedAt     time.Time
}
