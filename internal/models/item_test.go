package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItemRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateItemRequest
		wantKey string
	}{
		{"valid", CreateItemRequest{Name: "Milk", Quantity: 1}, ""},
		{"missing name", CreateItemRequest{Quantity: 1}, "name"},
		{"zero quantity", CreateItemRequest{Name: "Milk", Quantity: 0}, "quantity"},
		{"negative quantity", CreateItemRequest{Name: "Milk", Quantity: -2}, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.Validate()
			if tt.wantKey == "" {
				assert.Empty(t, errs)
			} else {
				assert.Contains(t, errs, tt.wantKey)
			}
		})
	}
}

func TestUpdateItemRequestValidate(t *testing.T) {
	name := ""
	negative := -1
	zero := 0

	assert.Contains(t, (&UpdateItemRequest{Name: &name}).Validate(), "name")
	assert.Contains(t, (&UpdateItemRequest{Quantity: &negative}).Validate(), "quantity")
	assert.Empty(t, (&UpdateItemRequest{Quantity: &zero}).Validate(), "zero is a delete request, not invalid")
	assert.Empty(t, (&UpdateItemRequest{}).Validate(), "fully omitted update is a no-op")
}

func TestBulkItemRowValidate(t *testing.T) {
	valid := BulkItemRow{Name: "Flour", Quantity: 2, DateAdded: "2024-01-15"}
	assert.Empty(t, valid.Validate())

	noDate := BulkItemRow{Name: "Flour", Quantity: 2}
	assert.Empty(t, noDate.Validate(), "date is optional")

	assert.Contains(t, (&BulkItemRow{Quantity: 2}).Validate(), "Item Name")
	assert.Contains(t, (&BulkItemRow{Name: "Flour"}).Validate(), "Quantity Purchased")
	assert.Contains(t, (&BulkItemRow{Name: "Flour", Quantity: 1, DateAdded: "soon"}).Validate(), "Date Added")
}

func TestParseImportDate(t *testing.T) {
	day, err := ParseImportDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), day)

	stamp, err := ParseImportDate("2024-01-15T08:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC), stamp)

	_, err = ParseImportDate("15/01/2024")
	assert.Error(t, err)
}

func TestSnapshotCopiesDeletionDates(t *testing.T) {
	now := time.Now().UTC()
	item := Item{
		Name:             "Milk",
		Quantity:         2,
		DateAdded:        now,
		DateDeletedArray: []time.Time{now},
		Address:          "123 Main St",
	}

	snap := item.Snapshot()
	require.Len(t, snap.DeletionDates, 1)

	// Mutating the snapshot must not touch the item's history.
	snap.DeletionDates[0] = snap.DeletionDates[0].Add(time.Hour)
	assert.Equal(t, now, item.DateDeletedArray[0])
}
