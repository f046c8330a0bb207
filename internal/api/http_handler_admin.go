package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
	"storefront-service/internal/orders"
	"storefront-service/internal/settings"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
)

func (h *HTTPHandler) registerAdminRoutes(r chi.Router) {
	r.Get("/overview", h.GetOverview)
	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory)
		r.Get("/", h.ListCategories)
		r.Put("/{categoryId}", h.UpdateCategory)
		r.Delete("/{categoryId}", h.DeleteCategory)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
		})
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListAllOrders)
		r.Get("/export", h.ExportOrders) // before /{orderId}
		r.Patch("/{orderId}/status", h.UpdateOrderStatus)
	})
	r.Get("/returns", h.ListReturns)
	r.Patch("/returns/{returnId}/status", h.UpdateReturnStatus)
	r.Put("/settings/coupon", h.UpdateCoupon)
}

type overviewResponse struct {
	domain.OrderStats
	TotalProducts int             `json:"total_products"`
	RecentOrders  []orderResponse `json:"recent_orders"`
}

// GetOverview serves the dashboard figures and the newest orders.
func (h *HTTPHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.orders.Overview(r.Context(), h.productStore)
	if err != nil {
		h.log.WithError(err).Error("GetOverview failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to load dashboard")
		return
	}
	respondWithJSON(w, http.StatusOK, overviewResponse{
		OrderStats:    ov.OrderStats,
		TotalProducts: ov.TotalProducts,
		RecentOrders:  newOrderResponses(ov.RecentOrders),
	})
}

// --- Category Handlers ---

// CategoryInput defines the expected input for creating or updating a category.
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

var categoryMessages = map[string]string{
	"name.required": "Name is required",
	"name.max":      "Name must be less than 100 characters",
	"description":   "Description must be less than 500 characters",
	"image_url":     "Please enter a valid URL",
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := h.validate.Struct(input); err != nil {
		respondWithFieldErrors(w, http.StatusBadRequest, "Validation failed", validation.FieldErrors(err, categoryMessages))
		return
	}

	category := &domain.Category{
		Name:        input.Name,
		Slug:        domain.Slugify(input.Name),
		Description: input.Description,
		ImageURL:    input.ImageURL,
	}

	createdCategory, err := h.categoryStore.CreateCategory(r.Context(), category)
	if err != nil {
		if errors.Is(err, store.ErrCategorySlugExists) {
			respondWithError(w, http.StatusConflict, "A category with this name already exists")
			return
		}
		h.log.WithError(err).Error("CreateCategory store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	h.log.WithField("category_id", createdCategory.ID).Info("category created")
	respondWithJSON(w, http.StatusCreated, createdCategory)
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	if !validID(categoryID) {
		respondWithError(w, http.StatusBadRequest, "Invalid category ID format")
		return
	}

	var input CategoryInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := h.validate.Struct(input); err != nil {
		respondWithFieldErrors(w, http.StatusBadRequest, "Validation failed", validation.FieldErrors(err, categoryMessages))
		return
	}

	category := &domain.Category{
		ID:          categoryID,
		Name:        input.Name,
		Slug:        domain.Slugify(input.Name),
		Description: input.Description,
		ImageURL:    input.ImageURL,
	}

	updatedCategory, err := h.categoryStore.UpdateCategory(r.Context(), category)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusNotFound, "Category not found")
		case errors.Is(err, store.ErrCategorySlugExists):
			respondWithError(w, http.StatusConflict, "A category with this name already exists")
		default:
			h.log.WithError(err).WithField("category_id", categoryID).Error("UpdateCategory store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to update category")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, updatedCategory)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryId")
	if !validID(categoryID) {
		respondWithError(w, http.StatusBadRequest, "Invalid category ID format")
		return
	}

	if err := h.categoryStore.DeleteCategory(r.Context(), categoryID); err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondWithError(w, http.StatusNotFound, "Category not found")
			return
		}
		h.log.WithError(err).WithField("category_id", categoryID).Error("DeleteCategory store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to delete category")
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Product Handlers ---

// ProductInput defines the expected input for creating or updating a product.
type ProductInput struct {
	Name          string              `json:"name" validate:"required,max=200"`
	Description   *string             `json:"description" validate:"omitempty,max=2000"`
	Price         decimal.Decimal     `json:"price" validate:"gt=0,lte=10000000"`
	OriginalPrice decimal.NullDecimal `json:"original_price" validate:"omitempty,gte=0"`
	ImageURLs     []string            `json:"image_urls" validate:"omitempty,dive,url"`
	StockStatus   domain.StockStatus  `json:"stock_status" validate:"required,oneof=in_stock out_of_stock low_stock"`
	CategoryID    *string             `json:"category_id" validate:"omitempty,uuid"`
	Featured      bool                `json:"featured"`
	Returnable    *bool               `json:"returnable"`
	MeeshoLink    *string             `json:"meesho_link" validate:"omitempty,url"`
}

var productMessages = map[string]string{
	"name.required":  "Name is required",
	"name.max":       "Name must be less than 200 characters",
	"description":    "Description must be less than 2000 characters",
	"price.gt":       "Price must be greater than 0",
	"price.lte":      "Price is too high",
	"original_price": "Original price must be positive",
	"image_urls":     "Every image must be a valid URL",
	"stock_status":   "Stock status must be in_stock, out_of_stock or low_stock",
	"category_id":    "Invalid category",
	"meesho_link":    "Please enter a valid URL",
}

func (in ProductInput) product(id string) *domain.Product {
	returnable := true
	if in.Returnable != nil {
		returnable = *in.Returnable
	}
	images := in.ImageURLs
	if images == nil {
		images = []string{}
	}
	p := &domain.Product{
		Description: in.Description,
		Returnable:  returnable,
		MeeshoLink:  in.MeeshoLink,
	}
	p.ID = id
	p.Name = in.Name
	p.Slug = domain.Slugify(in.Name)
	p.Price = in.Price
	p.OriginalPrice = in.OriginalPrice
	p.ImageURLs = images
	p.StockStatus = in.StockStatus
	p.Featured = in.Featured
	if in.CategoryID != nil {
		p.Category = &domain.CategoryRef{ID: *in.CategoryID}
	}
	return p
}

func (h *HTTPHandler) decodeProductInput(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var input ProductInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return input, false
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := h.validate.Struct(input); err != nil {
		respondWithFieldErrors(w, http.StatusBadRequest, "Validation failed", validation.FieldErrors(err, productMessages))
		return input, false
	}
	return input, true
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProductInput(w, r)
	if !ok {
		return
	}

	createdProduct, err := h.productStore.CreateProduct(r.Context(), input.product(""))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrProductSlugExists):
			respondWithError(w, http.StatusConflict, "A product with this name already exists")
		case errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusBadRequest, "Invalid category_id: category does not exist.")
		default:
			h.log.WithError(err).Error("CreateProduct store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to create product")
		}
		return
	}

	h.log.WithField("product_id", createdProduct.ID).Info("product created")
	respondWithJSON(w, http.StatusCreated, createdProduct)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if !validID(productID) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	product, err := h.productStore.GetProductByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.log.WithError(err).WithField("product_id", productID).Error("GetProductByID store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if !validID(productID) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	input, ok := h.decodeProductInput(w, r)
	if !ok {
		return
	}

	updatedProduct, err := h.productStore.UpdateProduct(r.Context(), input.product(productID))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrProductNotFound):
			respondWithError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, store.ErrProductSlugExists):
			respondWithError(w, http.StatusConflict, "A product with this name already exists")
		case errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusBadRequest, "Invalid category_id: category does not exist.")
		default:
			h.log.WithError(err).WithField("product_id", productID).Error("UpdateProduct store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to update product")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, updatedProduct)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if !validID(productID) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	if err := h.productStore.DeleteProduct(r.Context(), productID); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.log.WithError(err).WithField("product_id", productID).Error("DeleteProduct store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Order Administration ---

func (h *HTTPHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.log.WithError(err).Error("ListAllOrders failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve orders")
		return
	}
	if status := r.URL.Query().Get("status"); status != "" && status != "all" {
		filtered := list[:0]
		for _, o := range list {
			if string(o.OrderStatus) == status {
				filtered = append(filtered, o)
			}
		}
		list = filtered
	}
	respondWithJSON(w, http.StatusOK, newOrderResponses(list))
}

// ExportOrders streams every order as a CSV attachment.
func (h *HTTPHandler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.log.WithError(err).Error("ExportOrders failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to export orders")
		return
	}
	filename := "orders-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if err := orders.ExportCSV(w, list); err != nil {
		h.log.WithError(err).Error("writing orders CSV failed")
	}
}

// StatusInput carries a new order or return status.
type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if !validID(orderID) {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}
	var input StatusInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	err := h.orders.UpdateStatus(r.Context(), orderID, domain.OrderStatus(input.Status))
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidStatus):
			respondWithError(w, http.StatusBadRequest, "Unknown order status")
		case errors.Is(err, store.ErrOrderNotFound):
			respondWithError(w, http.StatusNotFound, "Order not found")
		default:
			h.log.WithError(err).WithField("order_id", orderID).Error("UpdateOrderStatus failed")
			respondWithError(w, http.StatusServiceUnavailable, "Failed to update order status")
		}
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListReturns(r.Context())
	if err != nil {
		h.log.WithError(err).Error("ListReturns failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve return requests")
		return
	}
	if list == nil {
		list = []domain.ReturnRequest{}
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) UpdateReturnStatus(w http.ResponseWriter, r *http.Request) {
	returnID := chi.URLParam(r, "returnId")
	if !validID(returnID) {
		respondWithError(w, http.StatusBadRequest, "Invalid return ID format")
		return
	}
	var input StatusInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	err := h.orders.UpdateReturnStatus(r.Context(), returnID, domain.ReturnStatus(input.Status))
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidReturnStatus):
			respondWithError(w, http.StatusBadRequest, "Unknown return status")
		case errors.Is(err, store.ErrReturnNotFound):
			respondWithError(w, http.StatusNotFound, "Return request not found")
		default:
			h.log.WithError(err).WithField("return_id", returnID).Error("UpdateReturnStatus failed")
			respondWithError(w, http.StatusServiceUnavailable, "Failed to update return status")
		}
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var input domain.CouponSettings
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	c, err := h.settings.UpdateCoupon(r.Context(), input)
	if err != nil {
		var verrs settings.ValidationErrors
		if errors.As(err, &verrs) {
			respondWithFieldErrors(w, http.StatusUnprocessableEntity, "Validation failed", verrs)
			return
		}
		h.log.WithError(err).Error("UpdateCoupon failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to save coupon settings")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}
