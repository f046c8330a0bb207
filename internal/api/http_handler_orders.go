package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront-service/internal/domain"
	"storefront-service/internal/orders"
	"storefront-service/internal/reviews"
	"storefront-service/internal/store"
)

// --- Order Handlers ---

type orderResponse struct {
	domain.Order
	OrderNumber string          `json:"order_number"`
	Timeline    orders.Timeline `json:"timeline"`
}

func newOrderResponse(o domain.Order) orderResponse {
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return orderResponse{Order: o, OrderNumber: o.Number(), Timeline: orders.TimelineFor(o.OrderStatus)}
}

func newOrderResponses(list []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, newOrderResponse(o))
	}
	return out
}

func (h *HTTPHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	list, err := h.orders.ListForUser(r.Context(), id.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", id.UserID).Error("ListMyOrders failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve orders")
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderResponses(list))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if !validID(orderID) {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}
	id, _ := IdentityFrom(r.Context())

	o, err := h.orders.Get(r.Context(), orderID, id.UserID, id.IsAdmin)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.log.WithError(err).WithField("order_id", orderID).Error("GetOrder failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve order")
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderResponse(*o))
}

// ReturnInput is a customer's return request for a delivered order.
type ReturnInput struct {
	Reason string `json:"reason"`
}

func (h *HTTPHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if !validID(orderID) {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}
	var input ReturnInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	id, _ := IdentityFrom(r.Context())

	req, err := h.orders.RequestReturn(r.Context(), orderID, id.UserID, input.Reason)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidReason):
			respondWithFieldErrors(w, http.StatusUnprocessableEntity, "Validation failed",
				map[string]string{"reason": "Reason must be 10 to 500 characters"})
		case errors.Is(err, store.ErrOrderNotFound):
			respondWithError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, orders.ErrNotReturnable):
			respondWithError(w, http.StatusConflict, "Only delivered orders can be returned")
		case errors.Is(err, store.ErrReturnExists):
			respondWithError(w, http.StatusConflict, "A return has already been requested for this order")
		default:
			h.log.WithError(err).WithField("order_id", orderID).Error("RequestReturn failed")
			respondWithError(w, http.StatusServiceUnavailable, "Failed to request return")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, req)
}

// --- Review Handlers ---

func (h *HTTPHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product")
	if !validID(productID) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	summary, err := h.reviews.List(r.Context(), productID)
	if err != nil {
		h.log.WithError(err).WithField("product_id", productID).Error("ListReviews failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve reviews")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product")
	if !validID(productID) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	var input reviews.Input
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	id, _ := IdentityFrom(r.Context())

	review, err := h.reviews.Submit(r.Context(), productID, id.UserID, id.Name, input)
	if err != nil {
		var verrs reviews.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			respondWithFieldErrors(w, http.StatusUnprocessableEntity, "Validation failed", verrs)
		case errors.Is(err, reviews.ErrSignInRequired):
			respondWithError(w, http.StatusUnauthorized, "Please sign in to write a review")
		case errors.Is(err, reviews.ErrAlreadyReviewed):
			respondWithError(w, http.StatusConflict, "You have already reviewed this product")
		case errors.Is(err, store.ErrProductNotFound):
			respondWithError(w, http.StatusNotFound, "Product not found")
		default:
			h.log.WithError(err).WithField("product_id", productID).Error("SubmitReview failed")
			respondWithError(w, http.StatusServiceUnavailable, "Failed to submit review")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

// --- Settings Handlers ---

func (h *HTTPHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.settings.Coupon(r.Context())
	if err != nil {
		h.log.WithError(err).Error("GetCoupon failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve coupon")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}
