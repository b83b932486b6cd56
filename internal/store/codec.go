package store

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"halaqa-points-api/internal/model"
)

// Document field names.
const (
	fieldBalance       = "balance"
	fieldLifetimeTotal = "lifetime_total"
	fieldInventory     = "inventory"
	fieldEquipped      = "equipped"
	fieldUpdatedAt     = "updated_at"
	fieldDocument      = "document"
)

type ledgerBody struct {
	Balance       int64          `json:"balance"`
	LifetimeTotal int64          `json:"lifetime_total"`
	Inventory     []model.ItemID `json:"inventory"`
	Equipped      model.Equipped `json:"equipped"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// EncodeLedger renders a record as a stored JSON document.
func EncodeLedger(rec model.LedgerRecord) ([]byte, error) {
	inv := rec.Inventory
	if inv == nil {
		inv = []model.ItemID{}
	}
	return json.Marshal(ledgerBody{
		Balance:       rec.Balance,
		LifetimeTotal: rec.LifetimeTotal,
		Inventory:     inv,
		Equipped:      rec.Equipped,
		UpdatedAt:     rec.UpdatedAt,
	})
}

// DecodeLedger reads a stored document leniently. Fields that are missing,
// non-numeric, non-finite, fractional or negative are coerced to safe values
// and their names are returned in repaired. It never fails: an unreadable
// document decodes as the zero state with "document" reported as repaired.
func DecodeLedger(userID string, body []byte) (rec model.LedgerRecord, repaired []string) {
	rec = model.LedgerRecord{UserID: userID, Inventory: []model.ItemID{}}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return rec, []string{fieldDocument}
	}

	var ok bool
	if rec.Balance, ok = coerceCount(fields[fieldBalance]); !ok {
		repaired = append(repaired, fieldBalance)
	}
	if rec.LifetimeTotal, ok = coerceCount(fields[fieldLifetimeTotal]); !ok {
		repaired = append(repaired, fieldLifetimeTotal)
	}
	if rec.Inventory, ok = coerceInventory(fields[fieldInventory]); !ok {
		repaired = append(repaired, fieldInventory)
	}
	if rec.Equipped, ok = coerceEquipped(fields[fieldEquipped]); !ok {
		repaired = append(repaired, fieldEquipped)
	}
	if raw, present := fields[fieldUpdatedAt]; present {
		_ = json.Unmarshal(raw, &rec.UpdatedAt)
	}

	return rec, repaired
}

// coerceCount returns ok=false when the stored value had to be repaired.
func coerceCount(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}

	clean := true
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
		clean = false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, clean
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	n := int64(f)
	return n, clean && float64(n) == f
}

func coerceInventory(raw json.RawMessage) ([]model.ItemID, bool) {
	inv := []model.ItemID{}
	if len(raw) == 0 || string(raw) == "null" {
		return inv, false
	}

	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return inv, false
	}

	ok := true
	seen := make(map[model.ItemID]struct{}, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString || s == "" {
			ok = false
			continue
		}
		id := model.ItemID(s)
		if _, dup := seen[id]; dup {
			ok = false
			continue
		}
		seen[id] = struct{}{}
		inv = append(inv, id)
	}
	return inv, ok
}

func coerceEquipped(raw json.RawMessage) (model.Equipped, bool) {
	var eq model.Equipped
	if len(raw) == 0 || string(raw) == "null" {
		return eq, true
	}

	var slots map[string]interface{}
	if err := json.Unmarshal(raw, &slots); err != nil {
		return eq, false
	}

	ok := true
	for name, v := range slots {
		slot := model.Slot(name)
		s, isString := v.(string)
		if !slot.Valid() || (v != nil && !isString) {
			ok = false
			continue
		}
		eq = eq.With(slot, model.ItemID(s))
	}
	return eq, ok
}
