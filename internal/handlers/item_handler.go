package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homestack/backend/internal/middleware"
	"github.com/homestack/backend/internal/models"
	"github.com/homestack/backend/internal/services"
)

type ItemHandler struct {
	items     *services.ItemService
	users     UserDirectory
	images    *services.ImageService
	maxSizeMB int64
}

func NewItemHandler(items *services.ItemService, users UserDirectory, images *services.ImageService, maxSizeMB int64) *ItemHandler {
	return &ItemHandler{
		items:     items,
		users:     users,
		images:    images,
		maxSizeMB: maxSizeMB,
	}
}

// resolveAddress maps the authenticated caller to their owning address.
// Every owner-scoped route goes through this exactly once.
func (h *ItemHandler) resolveAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return "", false
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		if err == services.ErrUserNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
			return "", false
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to resolve user"))
		return "", false
	}

	return user.Address, true
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	address, ok := h.resolveAddress(w, r)
	if !ok {
		return
	}

	items, err := h.items.List(address)
	if err != nil {
		log.Printf("[ListItems] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to fetch items"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(items))
}

func (h *ItemHandler) ListRecentItems(w http.ResponseWriter, r *http.Request) {
	address, ok := h.resolveAddress(w, r)
	if !ok {
		return
	}

	items, err := h.items.ListRecent(address, services.RecentItemsLimit)
	if err != nil {
		log.Printf("[ListRecentItems] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to fetch recent items"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(items))
}

// DecrementOrDeleteItem handles DELETE /items/{id}: one unit is consumed,
// and the item disappears entirely once the last unit goes.
func (h *ItemHandler) DecrementOrDeleteItem(w http.ResponseWriter, r *http.Request) {
	address, ok := h.resolveAddress(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")

	item, deleted, err := h.items.DecrementOrDelete(address, itemID)
	if err != nil {
		if err == services.ErrItemNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Item not found"))
			return
		}
		log.Printf("[DecrementOrDeleteItem] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete item"))
		return
	}

	if deleted {
		writeJSON(w, http.StatusOK, models.NewMessageResponse("Item deleted successfully", nil))
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Item quantity decreased", item))
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	address, ok := h.resolveAddress(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")

	var req models.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	item, deleted, err := h.items.Update(address, itemID, &req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
			return
		}
		if err == services.ErrItemNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Item not found"))
			return
		}
		log.Printf("[UpdateItem] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update item"))
		return
	}

	if deleted {
		writeJSON(w, http.StatusOK, models.NewMessageResponse("Item deleted successfully", nil))
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Item updated successfully", item))
}

// BulkAddItems imports rows parsed from a spreadsheet upload. The whole
// batch is rejected if any row fails validation.
func (h *ItemHandler) BulkAddItems(w http.ResponseWriter, r *http.Request) {
	address, ok := h.resolveAddress(w, r)
	if !ok {
		return
	}

	var rows []models.BulkItemRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	items, err := h.items.BulkAdd(address, rows)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
			return
		}
		log.Printf("[BulkAddItems] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to add items from file"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(items))
}

// AddItem handles the multipart single-add form: name, quantity and an
// optional image file under the "image" field.
func (h *ItemHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	address, ok := h.resolveAddress(w, r)
	if !ok {
		return
	}

	// Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeMB*1024*1024)

	if err := r.ParseMultipartForm(h.maxSizeMB * 1024 * 1024); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("File too large or invalid form data"))
		return
	}

	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
			"quantity": "Quantity must be a number",
		}))
		return
	}

	req := models.CreateItemRequest{
		Name:     r.FormValue("name"),
		Quantity: quantity,
	}

	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()

		upload, err := h.images.Save(file)
		if err != nil {
			if err == services.ErrInvalidImage {
				writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid image type. Allowed: JPEG, PNG, GIF, WebP"))
				return
			}
			log.Printf("[AddItem] Image upload error: %v", err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload image"))
			return
		}
		req.ImageURL = upload.URL
	}

	item, err := h.items.Add(address, &req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
			return
		}
		log.Printf("[AddItem] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to add item"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(item))
}

// SoftDeleteItem stamps the item as deleted without removing it. The route
// has never been owner-scoped; see DESIGN.md before tightening it.
func (h *ItemHandler) SoftDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	item, err := h.items.SoftDelete(itemID)
	if err != nil {
		if err == services.ErrItemNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Item not found"))
			return
		}
		log.Printf("[SoftDeleteItem] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete item"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewMessageResponse("Item deleted successfully", item))
}

// ListAllItems returns every item across all addresses. Administrative
// route, unauthenticated; see DESIGN.md.
func (h *ItemHandler) ListAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListAll()
	if err != nil {
		log.Printf("[ListAllItems] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to fetch items"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(items))
}
