package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/homestack/backend/internal/models"
)

var (
	ErrItemNotFound = errors.New("item not found")
)

// RecentItemsLimit caps the "recently added" listing.
const RecentItemsLimit = 3

// ValidationError reports user-correctable input problems keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ItemStore is the persistence contract the item service depends on.
// InsertBatch is atomic: either every item is stored or none are.
// Lookups scoped by owner treat a wrong owner the same as a missing item.
type ItemStore interface {
	Insert(item *models.Item) (*models.Item, error)
	InsertBatch(items []models.Item) ([]models.Item, error)
	FindByOwner(address string) ([]models.Item, error)
	FindOneByIDAndOwner(id, address string) (*models.Item, error)
	FindByID(id string) (*models.Item, error)
	FindAll() ([]models.Item, error)
	Save(item *models.Item) error
	DeleteByID(id string) error
}

// LedgerSink receives a snapshot of every created item. Appends are
// best-effort; the service logs failures and never propagates them.
type LedgerSink interface {
	Append(snapshot models.ItemSnapshot) error
}

// ItemService owns the item lifecycle rules: creation, quantity
// decrement-or-delete, partial updates, soft-delete bookkeeping and bulk
// import. Every owner-scoped operation takes the caller's resolved address.
type ItemService struct {
	store  ItemStore
	ledger LedgerSink
}

func NewItemService(store ItemStore, ledger LedgerSink) *ItemService {
	return &ItemService{
		store:  store,
		ledger: ledger,
	}
}

// List returns every item stored under the owner's address. Soft-deleted
// items stay listed; only hard deletion removes them.
func (s *ItemService) List(address string) ([]models.Item, error) {
	return s.store.FindByOwner(address)
}

// ListRecent returns the owner's items newest-first by dateAdded, capped at
// limit. Ties keep their store order (stable sort).
func (s *ItemService) ListRecent(address string, limit int) ([]models.Item, error) {
	if limit <= 0 {
		limit = RecentItemsLimit
	}

	items, err := s.store.FindByOwner(address)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DateAdded.After(items[j].DateAdded)
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ListAll returns every item regardless of owner. Backs the administrative
// listing route; it has no tenancy filter.
func (s *ItemService) ListAll() ([]models.Item, error) {
	return s.store.FindAll()
}

// Add creates a single item under the owner's address and forwards a
// snapshot to the ledger.
func (s *ItemService) Add(address string, req *models.CreateItemRequest) (*models.Item, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	item := &models.Item{
		Name:             req.Name,
		Quantity:         req.Quantity,
		DateAdded:        time.Now().UTC(),
		DateDeletedArray: []time.Time{},
		ImageURL:         req.ImageURL,
		Address:          address,
	}

	stored, err := s.store.Insert(item)
	if err != nil {
		return nil, err
	}

	s.appendToLedger(stored)
	return stored, nil
}

// DecrementOrDelete lowers the item's quantity by one, or hard-deletes it
// when the quantity is already one. Returns the updated item, or nil with
// deleted=true when the record was removed.
func (s *ItemService) DecrementOrDelete(address, itemID string) (*models.Item, bool, error) {
	item, err := s.store.FindOneByIDAndOwner(itemID, address)
	if err != nil {
		return nil, false, err
	}

	if item.Quantity > 1 {
		item.Quantity--
		if err := s.store.Save(item); err != nil {
			return nil, false, err
		}
		return item, false, nil
	}

	if err := s.store.DeleteByID(item.ID); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// Update replaces the provided fields of the item. A quantity of zero is a
// delete request: the record is hard-deleted and deleted=true is returned.
func (s *ItemService) Update(address, itemID string, req *models.UpdateItemRequest) (*models.Item, bool, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return nil, false, &ValidationError{Fields: fields}
	}

	item, err := s.store.FindOneByIDAndOwner(itemID, address)
	if err != nil {
		return nil, false, err
	}

	if req.Quantity != nil && *req.Quantity == 0 {
		if err := s.store.DeleteByID(item.ID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	if err := s.store.Save(item); err != nil {
		return nil, false, err
	}
	return item, false, nil
}

// BulkAdd imports a batch of rows under the owner's address. The batch is
// all-or-nothing: any malformed row rejects the whole import before a single
// insert happens. Each stored item is forwarded to the ledger individually.
func (s *ItemService) BulkAdd(address string, rows []models.BulkItemRow) ([]models.Item, error) {
	now := time.Now().UTC()

	items := make([]models.Item, 0, len(rows))
	for i, row := range rows {
		if fields := row.Validate(); len(fields) > 0 {
			keyed := make(map[string]string, len(fields))
			for k, v := range fields {
				keyed[fmt.Sprintf("row %d: %s", i, k)] = v
			}
			return nil, &ValidationError{Fields: keyed}
		}

		dateAdded := now
		if row.DateAdded != "" {
			// Validate already confirmed the format.
			parsed, _ := models.ParseImportDate(row.DateAdded)
			dateAdded = parsed
		}

		items = append(items, models.Item{
			Name:             row.Name,
			Quantity:         row.Quantity,
			DateAdded:        dateAdded,
			DateDeletedArray: []time.Time{},
			Address:          address,
		})
	}

	stored, err := s.store.InsertBatch(items)
	if err != nil {
		return nil, err
	}

	for i := range stored {
		s.appendToLedger(&stored[i])
	}
	return stored, nil
}

// SoftDelete stamps the item as deleted without removing it. The deletion
// timestamp is appended to the item's deletion history, so dateDeleted is
// always the latest entry of dateDeletedArray.
//
// Note: this path looks the item up by id only, with no owner scoping. That
// matches the behavior the route has always had; see DESIGN.md.
func (s *ItemService) SoftDelete(itemID string) (*models.Item, error) {
	item, err := s.store.FindByID(itemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item.DateDeleted = &now
	item.DateDeletedArray = append(item.DateDeletedArray, now)

	if err := s.store.Save(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) appendToLedger(item *models.Item) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Append(item.Snapshot()); err != nil {
		log.Printf("[ItemService] ledger append failed for item %s: %v", item.ID, err)
	}
}
