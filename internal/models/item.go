package models

import (
	"time"
)

// Item is a single tracked inventory entry. Items are partitioned by the
// owning household address, not by user id.
type Item struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Quantity         int         `json:"quantity"`
	DateAdded        time.Time   `json:"dateAdded"`
	DateDeleted      *time.Time  `json:"dateDeleted"`
	DateDeletedArray []time.Time `json:"dateDeletedArray"`
	ImageURL         string      `json:"imageUrl,omitempty"`
	Address          string      `json:"address"`
}

type CreateItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	ImageURL string `json:"imageUrl"`
}

func (r *CreateItemRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Item name is required"
	}
	if r.Quantity < 1 {
		errors["quantity"] = "Quantity must be at least 1"
	}

	return errors
}

// UpdateItemRequest is a partial update: nil fields keep their stored value.
// Quantity 0 is a delete request, handled by the service.
type UpdateItemRequest struct {
	Name     *string `json:"name"`
	Quantity *int    `json:"quantity"`
}

func (r *UpdateItemRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Item name cannot be empty"
	}
	if r.Quantity != nil && *r.Quantity < 0 {
		errors["quantity"] = "Quantity cannot be negative"
	}

	return errors
}

// BulkItemRow is one row of an imported spreadsheet. The JSON keys mirror
// the column headers of the upload format.
type BulkItemRow struct {
	Name      string `json:"Item Name"`
	Quantity  int    `json:"Quantity Purchased"`
	DateAdded string `json:"Date Added"`
}

func (r *BulkItemRow) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["Item Name"] = "Item name is required"
	}
	if r.Quantity < 1 {
		errors["Quantity Purchased"] = "Quantity must be at least 1"
	}
	if r.DateAdded != "" {
		if _, err := ParseImportDate(r.DateAdded); err != nil {
			errors["Date Added"] = "Date must be RFC3339 or YYYY-MM-DD"
		}
	}

	return errors
}

// ParseImportDate accepts the two date formats seen in import files.
func ParseImportDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// ItemSnapshot is the flattened, immutable form of an item handed to the
// audit ledger at creation/import time.
type ItemSnapshot struct {
	Name          string
	Quantity      int
	DateAdded     time.Time
	Address       string
	DateDeleted   *time.Time
	DeletionDates []time.Time
}

// Snapshot flattens the item for the ledger.
func (i *Item) Snapshot() ItemSnapshot {
	dates := make([]time.Time, len(i.DateDeletedArray))
	copy(dates, i.DateDeletedArray)
	return ItemSnapshot{
		Name:          i.Name,
		Quantity:      i.Quantity,
		DateAdded:     i.DateAdded,
		Address:       i.Address,
		DateDeleted:   i.DateDeleted,
		DeletionDates: dates,
	}
}
