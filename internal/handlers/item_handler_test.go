package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/homestack/backend/internal/middleware"
	"github.com/homestack/backend/internal/models"
	"github.com/homestack/backend/internal/services"
)

const testJWTSecret = "handler-test-secret"

// fakeItemStore is an in-memory services.ItemStore for handler tests.
type fakeItemStore struct {
	items map[string]*models.Item
	order []string
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[string]*models.Item)}
}

func (s *fakeItemStore) Insert(item *models.Item) (*models.Item, error) {
	stored := *item
	stored.ID = uuid.New().String()
	s.items[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	out := stored
	return &out, nil
}

func (s *fakeItemStore) InsertBatch(items []models.Item) ([]models.Item, error) {
	stored := make([]models.Item, 0, len(items))
	for i := range items {
		inserted, err := s.Insert(&items[i])
		if err != nil {
			return nil, err
		}
		stored = append(stored, *inserted)
	}
	return stored, nil
}

func (s *fakeItemStore) FindByOwner(address string) ([]models.Item, error) {
	out := make([]models.Item, 0)
	for _, id := range s.order {
		if item, ok := s.items[id]; ok && item.Address == address {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *fakeItemStore) FindOneByIDAndOwner(id, address string) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok || item.Address != address {
		return nil, services.ErrItemNotFound
	}
	out := *item
	return &out, nil
}

func (s *fakeItemStore) FindByID(id string) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, services.ErrItemNotFound
	}
	out := *item
	return &out, nil
}

func (s *fakeItemStore) FindAll() ([]models.Item, error) {
	out := make([]models.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out, nil
}

func (s *fakeItemStore) Save(item *models.Item) error {
	if _, ok := s.items[item.ID]; !ok {
		return services.ErrItemNotFound
	}
	stored := *item
	s.items[item.ID] = &stored
	return nil
}

func (s *fakeItemStore) DeleteByID(id string) error {
	delete(s.items, id)
	for i, stored := range s.order {
		if stored == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// fakeUserDirectory serves the two fixed test households.
type fakeUserDirectory struct {
	users map[string]*models.User
}

func (d *fakeUserDirectory) Register(req *models.RegisterRequest) (*models.User, error) {
	return nil, fmt.Errorf("not supported in this fake")
}

func (d *fakeUserDirectory) Login(req *models.LoginRequest) (*models.User, error) {
	return nil, fmt.Errorf("not supported in this fake")
}

func (d *fakeUserDirectory) GetByID(id string) (*models.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return user, nil
}

type testEnv struct {
	router *chi.Mux
	store  *fakeItemStore
	items  *services.ItemService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeItemStore()
	itemService := services.NewItemService(store, nil)
	users := &fakeUserDirectory{users: map[string]*models.User{
		"user-main": {ID: "user-main", Email: "main@example.com", Address: "123 Main St"},
		"user-oak":  {ID: "user-oak", Email: "oak@example.com", Address: "456 Oak Ave"},
	}}
	images := services.NewImageService(t.TempDir())
	handler := NewItemHandler(itemService, users, images, 10)

	r := chi.NewRouter()
	r.Route("/api/items", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.JWTAuth(testJWTSecret))
			r.Get("/", handler.ListItems)
			r.Get("/recent", handler.ListRecentItems)
			r.Post("/bulk", handler.BulkAddItems)
			r.Post("/add-item", handler.AddItem)
			r.Delete("/{id}", handler.DecrementOrDeleteItem)
			r.Put("/{id}", handler.UpdateItem)
		})
		r.Put("/delete/{id}", handler.SoftDeleteItem)
		r.Get("/all", handler.ListAllItems)
	})

	return &testEnv{router: r, store: store, items: itemService}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) seedItem(t *testing.T, address, name string, quantity int) *models.Item {
	t.Helper()
	item, err := e.items.Add(address, &models.CreateItemRequest{Name: name, Quantity: quantity})
	require.NoError(t, err)
	return item
}

func TestListItemsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "123 Main St", "Milk", 2)
	env.seedItem(t, "456 Oak Ave", "Bread", 1)

	rec := env.do(t, http.MethodGet, "/api/items/", "user-main", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var items []models.Item
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Milk", items[0].Name)
}

func TestListItemsRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/items/", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListItemsUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/items/", "ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecrementRoute(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "123 Main St", "Milk", 2)

	rec := env.do(t, http.MethodDelete, "/api/items/"+item.ID, "user-main", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "Item quantity decreased", resp.Message)

	rec = env.do(t, http.MethodDelete, "/api/items/"+item.ID, "user-main", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeEnvelope(t, rec)
	assert.Equal(t, "Item deleted successfully", resp.Message)

	rec = env.do(t, http.MethodDelete, "/api/items/"+item.ID, "user-main", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecrementRouteWrongTenant(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "123 Main St", "Milk", 2)

	rec := env.do(t, http.MethodDelete, "/api/items/"+item.ID, "user-oak", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign items look absent, not forbidden")
}

func TestUpdateRoute(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "123 Main St", "Milk", 2)

	body := bytes.NewBufferString(`{"name":"Oat Milk","quantity":5}`)
	rec := env.do(t, http.MethodPut, "/api/items/"+item.ID, "user-main", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "Item updated successfully", resp.Message)

	stored, err := env.store.FindByID(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oat Milk", stored.Name)
	assert.Equal(t, 5, stored.Quantity)
}

func TestUpdateRouteQuantityZeroDeletes(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "123 Main St", "Milk", 2)

	body := bytes.NewBufferString(`{"quantity":0}`)
	rec := env.do(t, http.MethodPut, "/api/items/"+item.ID, "user-main", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "Item deleted successfully", resp.Message)

	_, err := env.store.FindByID(item.ID)
	assert.Error(t, err)
}

func TestUpdateRouteNegativeQuantity(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "123 Main St", "Milk", 2)

	body := bytes.NewBufferString(`{"quantity":-3}`)
	rec := env.do(t, http.MethodPut, "/api/items/"+item.ID, "user-main", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkRoute(t *testing.T) {
	env := newTestEnv(t)

	body := bytes.NewBufferString(`[
		{"Item Name":"Flour","Quantity Purchased":2,"Date Added":"2024-01-15"},
		{"Item Name":"Sugar","Quantity Purchased":1}
	]`)
	rec := env.do(t, http.MethodPost, "/api/items/bulk", "user-main", body, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	items, err := env.store.FindByOwner("123 Main St")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestBulkRouteRejectsBadRowWholesale(t *testing.T) {
	env := newTestEnv(t)

	body := bytes.NewBufferString(`[
		{"Item Name":"Flour","Quantity Purchased":2},
		{"Item Name":"","Quantity Purchased":1}
	]`)
	rec := env.do(t, http.MethodPost, "/api/items/bulk", "user-main", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	items, err := env.store.FindAll()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddItemRouteMultipart(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("name", "Milk"))
	require.NoError(t, form.WriteField("quantity", "3"))
	require.NoError(t, form.Close())

	rec := env.do(t, http.MethodPost, "/api/items/add-item", "user-main", &buf, form.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code)

	items, err := env.store.FindByOwner("123 Main St")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestAddItemRouteBadQuantity(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("name", "Milk"))
	require.NoError(t, form.WriteField("quantity", "plenty"))
	require.NoError(t, form.Close())

	rec := env.do(t, http.MethodPost, "/api/items/add-item", "user-main", &buf, form.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSoftDeleteRouteNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "123 Main St", "Milk", 2)

	rec := env.do(t, http.MethodPut, "/api/items/delete/"+item.ID, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.FindByID(item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DateDeleted)
	assert.Len(t, stored.DateDeletedArray, 1)
}

func TestSoftDeleteRouteMissingItem(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/items/delete/no-such-id", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAllRouteSpansOwners(t *testing.T) {
	env := newTestEnv(t)
	env.seedItem(t, "123 Main St", "Milk", 2)
	env.seedItem(t, "456 Oak Ave", "Bread", 1)

	rec := env.do(t, http.MethodGet, "/api/items/all", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var items []models.Item
	require.NoError(t, json.Unmarshal(data, &items))
	assert.Len(t, items, 2)
}

func TestRecentRouteReturnsTopThree(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		item := env.seedItem(t, "123 Main St", fmt.Sprintf("item-%d", i), 1)
		// Space the timestamps out so the order is unambiguous.
		stored, err := env.store.FindByID(item.ID)
		require.NoError(t, err)
		stored.DateAdded = time.Date(2024, 3, 1, 12, i, 0, 0, time.UTC)
		require.NoError(t, env.store.Save(stored))
	}

	rec := env.do(t, http.MethodGet, "/api/items/recent", "user-main", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var items []models.Item
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 3)
	assert.Equal(t, "item-4", items[0].Name)
	assert.Equal(t, "item-3", items[1].Name)
	assert.Equal(t, "item-2", items[2].Name)
}
