package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
	"storefront-service/internal/wishlist"
)

// --- Cart Handlers ---

func (h *HTTPHandler) deviceCart(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	c, err := h.carts.Get(deviceFrom(r.Context()))
	if err != nil {
		h.log.WithError(err).Error("cart unavailable")
		respondWithError(w, http.StatusInternalServerError, "Failed to open cart")
		return nil, false
	}
	return c, true
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.deviceCart(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

// CartAddInput defines the expected input for adding a product to the cart.
type CartAddInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

// AddToCart snapshots the product as it is now and adds it to the cart. A
// quantity below 1 adds one.
func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var input CartAddInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	product, err := h.productStore.GetProductByID(r.Context(), input.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.log.WithError(err).WithField("product_id", input.ProductID).Error("AddToCart product lookup failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to add item to cart")
		return
	}
	if product.StockStatus == domain.StockOutOfStock {
		respondWithError(w, http.StatusConflict, "Product is out of stock")
		return
	}

	c, ok := h.deviceCart(w, r)
	if !ok {
		return
	}
	c.AddItem(domain.SnapshotOf(product.ProductSummary), input.Quantity)
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

// CartQuantityInput sets the quantity of a cart line. Zero or less removes it;
// the quantity must always be sent.
type CartQuantityInput struct {
	Quantity *int `json:"quantity" validate:"required"`
}

var quantityMessages = map[string]string{"quantity": "is required"}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var input CartQuantityInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		respondWithFieldErrors(w, http.StatusBadRequest, "Validation failed", validation.FieldErrors(err, quantityMessages))
		return
	}
	c, ok := h.deviceCart(w, r)
	if !ok {
		return
	}
	c.UpdateQuantity(chi.URLParam(r, "productId"), *input.Quantity)
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.deviceCart(w, r)
	if !ok {
		return
	}
	c.RemoveItem(chi.URLParam(r, "productId"))
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.deviceCart(w, r)
	if !ok {
		return
	}
	c.Clear()
	respondWithJSON(w, http.StatusOK, c.Snapshot())
}

// --- Wishlist Handlers ---

type wishlistResponse struct {
	Items []string `json:"items"`
	// Pending lists the items whose addition is still being saved.
	Pending []string `json:"pending"`
}

func newWishlistResponse(wl *wishlist.Store) wishlistResponse {
	resp := wishlistResponse{Items: wl.Items(), Pending: []string{}}
	for _, id := range resp.Items {
		if wl.IsPending(id) {
			resp.Pending = append(resp.Pending, id)
		}
	}
	return resp
}

type wishlistToggleResponse struct {
	ProductID  string `json:"product_id"`
	InWishlist bool   `json:"in_wishlist"`
}

// userWishlist returns the loaded wishlist of the signed-in user, or a
// signed-out one for anonymous requests.
func (h *HTTPHandler) userWishlist(r *http.Request) (*wishlist.Store, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		return wishlist.New(h.wishlistStore, "", h.log), nil
	}
	wl, err := h.wishlists.Get(id.UserID)
	if err != nil {
		return nil, err
	}
	if !wl.Loaded() {
		if err := wl.Load(r.Context()); err != nil {
			return nil, err
		}
	}
	return wl, nil
}

func (h *HTTPHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.userWishlist(r)
	if err != nil {
		h.log.WithError(err).Error("GetWishlist failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to load wishlist")
		return
	}
	respondWithJSON(w, http.StatusOK, newWishlistResponse(wl))
}

func (h *HTTPHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if !validID(productID) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	wl, err := h.userWishlist(r)
	if err != nil {
		h.log.WithError(err).Error("wishlist unavailable")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to update wishlist")
		return
	}

	member, err := wl.Toggle(r.Context(), productID)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, wishlistToggleResponse{ProductID: productID, InWishlist: member})
	case errors.Is(err, wishlist.ErrSignInRequired):
		respondWithError(w, http.StatusUnauthorized, "Please sign in to add items to your wishlist")
	case errors.Is(err, wishlist.ErrTogglePending):
		respondWithError(w, http.StatusConflict, "Wishlist update already in progress")
	case errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, "Product not found")
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"product_id": productID,
			"user_id":    wl.UserID(),
		}).Error("ToggleWishlist failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to update wishlist")
	}
}

// --- Checkout Handler ---

type checkoutResponse struct {
	Order       *domain.Order `json:"order"`
	OrderNumber string        `json:"order_number"`
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var address domain.ShippingAddress
	if err := decodeJSON(r, &address); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	c, ok := h.deviceCart(w, r)
	if !ok {
		return
	}
	id, _ := IdentityFrom(r.Context())

	order, err := h.checkout.PlaceOrder(r.Context(), id.UserID, c, address)
	if err != nil {
		var verrs checkout.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			respondWithFieldErrors(w, http.StatusUnprocessableEntity, "Please correct the highlighted fields", verrs)
		case errors.Is(err, checkout.ErrSignInRequired):
			respondWithError(w, http.StatusUnauthorized, "Please sign in to place an order")
		case errors.Is(err, checkout.ErrEmptyCart):
			respondWithError(w, http.StatusConflict, "Your cart is empty")
		default:
			h.log.WithError(err).WithField("user_id", id.UserID).Error("Checkout failed")
			respondWithError(w, http.StatusServiceUnavailable, "Failed to place order. Please try again.")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, checkoutResponse{Order: order, OrderNumber: order.Number()})
}
