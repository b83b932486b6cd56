package store

import (
	"testing"

	"halaqa-points-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := model.LedgerRecord{
		UserID:        "u1",
		Balance:       40,
		LifetimeTotal: 100,
		Inventory:     []model.ItemID{"frame_gold", "badge_star"},
		Equipped:      model.Equipped{Frame: "frame_gold"},
	}

	body, err := EncodeLedger(rec)
	require.NoError(t, err)

	got, repaired := DecodeLedger("u1", body)
	assert.Empty(t, repaired)
	assert.Equal(t, rec.Balance, got.Balance)
	assert.Equal(t, rec.LifetimeTotal, got.LifetimeTotal)
	assert.Equal(t, rec.Inventory, got.Inventory)
	assert.Equal(t, rec.Equipped, got.Equipped)
}

func TestDecodeLedger_NumericRepair(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		balance  int64
		repaired bool
	}{
		{"nan string", `{"balance":"NaN","lifetime_total":5,"inventory":[]}`, 0, true},
		{"null", `{"balance":null,"lifetime_total":5,"inventory":[]}`, 0, true},
		{"missing", `{"lifetime_total":5,"inventory":[]}`, 0, true},
		{"numeric string", `{"balance":"120","lifetime_total":5,"inventory":[]}`, 120, true},
		{"fraction", `{"balance":12.7,"lifetime_total":5,"inventory":[]}`, 12, true},
		{"negative", `{"balance":-5,"lifetime_total":5,"inventory":[]}`, 0, true},
		{"infinity string", `{"balance":"Infinity","lifetime_total":5,"inventory":[]}`, 0, true},
		{"boolean", `{"balance":true,"lifetime_total":5,"inventory":[]}`, 0, true},
		{"object", `{"balance":{"v":1},"lifetime_total":5,"inventory":[]}`, 0, true},
		{"clean", `{"balance":42,"lifetime_total":5,"inventory":[]}`, 42, false},
		{"integral float", `{"balance":42.0,"lifetime_total":5,"inventory":[]}`, 42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, repaired := DecodeLedger("u1", []byte(tt.body))
			assert.Equal(t, tt.balance, rec.Balance)
			assert.Equal(t, int64(5), rec.LifetimeTotal)
			if tt.repaired {
				assert.Contains(t, repaired, "balance")
			} else {
				assert.NotContains(t, repaired, "balance")
			}
		})
	}
}

func TestDecodeLedger_UnreadableDocument(t *testing.T) {
	rec, repaired := DecodeLedger("u1", []byte(`not json`))
	assert.Equal(t, []string{"document"}, repaired)
	assert.Equal(t, "u1", rec.UserID)
	assert.Zero(t, rec.Balance)
	assert.Zero(t, rec.LifetimeTotal)
	assert.NotNil(t, rec.Inventory)
	assert.Empty(t, rec.Inventory)
}

func TestDecodeLedger_InventoryCleanup(t *testing.T) {
	rec, repaired := DecodeLedger("u1", []byte(`{"balance":1,"lifetime_total":1,"inventory":["a",7,"a","",null,"b"]}`))
	assert.Equal(t, []model.ItemID{"a", "b"}, rec.Inventory)
	assert.Equal(t, []string{"inventory"}, repaired)
}

func TestDecodeLedger_Equipped(t *testing.T) {
	rec, repaired := DecodeLedger("u1", []byte(`{"balance":1,"lifetime_total":1,"inventory":[],"equipped":{"badge":"badge_star","hat":"x","frame":3}}`))
	assert.Equal(t, model.ItemID("badge_star"), rec.Equipped.Badge)
	assert.Empty(t, rec.Equipped.Frame)
	assert.Equal(t, []string{"equipped"}, repaired)
}
