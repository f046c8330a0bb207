package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
	"storefront-service/internal/localstore"
	"storefront-service/internal/orders"
	"storefront-service/internal/reviews"
	"storefront-service/internal/session"
	"storefront-service/internal/settings"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
	"storefront-service/internal/wishlist"
)

const (
	featuredLimit    = 8
	maxFeaturedLimit = 24
	relatedLimit     = 4
)

// Dependencies are the collaborators of the HTTP handlers.
type Dependencies struct {
	Categories store.CategoryStorer
	Products   store.ProductStorer
	Wishlists  store.WishlistStorer
	Orders     store.OrderStorer
	Reviews    store.ReviewStorer
	Settings   store.SettingsStorer
	// LocalState persists carts between restarts, keyed per device.
	LocalState      localstore.Store
	Auth            *Authenticator
	DefaultMaxPrice decimal.Decimal
	// SessionTTL is how long an unused cart, browsing session or wishlist stays in memory.
	SessionTTL time.Duration
	Log        logrus.FieldLogger
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	categoryStore store.CategoryStorer
	productStore  store.ProductStorer
	wishlistStore store.WishlistStorer

	catalog  *catalog.Catalog
	checkout *checkout.Service
	orders   *orders.Service
	reviews  *reviews.Service
	settings *settings.Service
	auth     *Authenticator

	browse    *session.Registry[*catalog.Session]
	carts     *session.Registry[*cart.Store]
	wishlists *session.Registry[*wishlist.Store]

	defaultFilter catalog.Filter
	validate      *validator.Validate
	log           logrus.FieldLogger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(d Dependencies) *HTTPHandler {
	log := d.Log.WithField("component", "http")
	src := struct {
		store.CategoryStorer
		store.ProductStorer
	}{d.Categories, d.Products}
	h := &HTTPHandler{
		categoryStore: d.Categories,
		productStore:  d.Products,
		wishlistStore: d.Wishlists,
		catalog:       catalog.New(src, d.Log),
		checkout:      checkout.NewService(d.Orders, d.Log),
		orders:        orders.NewService(d.Orders, d.Log),
		reviews:       reviews.NewService(d.Reviews, d.Log),
		settings:      settings.NewService(d.Settings, d.Log),
		auth:          d.Auth,
		defaultFilter: catalog.DefaultFilter(d.DefaultMaxPrice),
		validate:      validation.New(),
		log:           log,
	}

	h.browse = session.NewRegistry[*catalog.Session]("browse", d.SessionTTL, func(device string) (*catalog.Session, error) {
		return catalog.NewSession(h.catalog, h.defaultFilter, catalog.ModePaged, d.Log.WithField("device", device)), nil
	}, nil, d.Log)
	h.carts = session.NewRegistry[*cart.Store]("cart", d.SessionTTL, func(device string) (*cart.Store, error) {
		return cart.New(d.LocalState, cart.StorageKey+":"+device, d.Log), nil
	}, nil, d.Log)
	h.wishlists = session.NewRegistry[*wishlist.Store]("wishlist", d.SessionTTL, func(userID string) (*wishlist.Store, error) {
		return wishlist.New(d.Wishlists, userID, d.Log), nil
	}, func(_ string, w *wishlist.Store) {
		w.SignOut()
	}, d.Log)
	return h
}

// RunSweepers evicts idle sessions every interval until ctx is done.
func (h *HTTPHandler) RunSweepers(ctx context.Context, interval time.Duration) {
	go h.browse.Run(ctx, interval)
	go h.carts.Run(ctx, interval)
	go h.wishlists.Run(ctx, interval)
}

// SessionCounts reports how many browsing sessions, carts and wishlists are
// held in memory.
func (h *HTTPHandler) SessionCounts() map[string]int {
	return map[string]int{
		"browse":   h.browse.Len(),
		"cart":     h.carts.Len(),
		"wishlist": h.wishlists.Len(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithFieldErrors(w http.ResponseWriter, code int, message string, fields map[string]string) {
	respondWithJSON(w, code, ErrorResponse{Error: message, Fields: fields})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logrus.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// --- Catalog Handlers ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.log.WithError(err).Error("ListCategories failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respondWithJSON(w, http.StatusOK, categories)
}

// filterFromQuery applies the filter parameters present in r on top of base.
func filterFromQuery(r *http.Request, base catalog.Filter) (catalog.Filter, map[string]string) {
	q := r.URL.Query()
	f := base
	bad := map[string]string{}

	if _, ok := q["category"]; ok {
		f = f.WithCategory(q.Get("category"))
	}
	if _, ok := q["search"]; ok {
		f = f.WithSearch(q.Get("search"))
	}
	if s := q.Get("sort"); s != "" {
		f = f.WithSort(catalog.ParseSortKey(s))
	}

	lo, hi := f.PriceMin, f.PriceMax
	if s := q.Get("price_min"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			bad["price_min"] = "must be a number"
		}
		lo = d
	}
	if s := q.Get("price_max"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			bad["price_max"] = "must be a number"
		}
		hi = d
	}
	f = f.WithPriceRange(lo, hi)

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil {
			bad["page"] = "must be a whole number"
		}
		f = f.WithPage(page)
	}

	if len(bad) > 0 {
		return f, bad
	}
	return f, nil
}

// ListProducts is a stateless numbered-page listing.
func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, bad := filterFromQuery(r, h.defaultFilter)
	if bad != nil {
		respondWithFieldErrors(w, http.StatusBadRequest, "Invalid filter", bad)
		return
	}

	result, err := h.catalog.Page(r.Context(), f)
	if err != nil {
		var ferr *catalog.FilterError
		if errors.As(err, &ferr) {
			respondWithFieldErrors(w, http.StatusBadRequest, "Invalid filter", ferr.Fields)
			return
		}
		h.log.WithError(err).Error("ListProducts failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve products")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) ListFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = featuredLimit
	}
	if limit > maxFeaturedLimit {
		limit = maxFeaturedLimit
	}

	products, err := h.catalog.Featured(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("ListFeaturedProducts failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to fetch featured products")
		return
	}
	if products == nil {
		products = []domain.ProductSummary{}
	}
	respondWithJSON(w, http.StatusOK, products)
}

type productDetailResponse struct {
	Product *domain.Product         `json:"product"`
	Related []domain.ProductSummary `json:"related"`
}

func (h *HTTPHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "product")

	product, err := h.catalog.ProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.log.WithError(err).WithField("slug", slug).Error("GetProductBySlug failed")
		respondWithError(w, http.StatusServiceUnavailable, "Failed to retrieve product")
		return
	}

	related, err := h.catalog.Related(r.Context(), product.ProductSummary, relatedLimit)
	if err != nil {
		h.log.WithError(err).WithField("slug", slug).Warn("related products unavailable")
		related = nil
	}
	if related == nil {
		related = []domain.ProductSummary{}
	}
	respondWithJSON(w, http.StatusOK, productDetailResponse{Product: product, Related: related})
}

// --- Browse Handlers ---

func (h *HTTPHandler) browseSession(r *http.Request) (*catalog.Session, error) {
	return h.browse.Get(deviceFrom(r.Context()))
}

// Browse applies the mode and filter parameters to the device's browsing
// session and loads what it should show.
func (h *HTTPHandler) Browse(w http.ResponseWriter, r *http.Request) {
	sess, err := h.browseSession(r)
	if err != nil {
		h.log.WithError(err).Error("browse session unavailable")
		respondWithError(w, http.StatusInternalServerError, "Failed to open browsing session")
		return
	}

	// The session is only touched once the whole request is known to be valid.
	f, bad := filterFromQuery(r, sess.Filter())
	if bad != nil {
		respondWithFieldErrors(w, http.StatusBadRequest, "Invalid filter", bad)
		return
	}
	if err := f.Validate(); err != nil {
		var ferr *catalog.FilterError
		if errors.As(err, &ferr) {
			respondWithFieldErrors(w, http.StatusBadRequest, "Invalid filter", ferr.Fields)
			return
		}
		h.log.WithError(err).Error("filter validation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to apply filter")
		return
	}

	if m := r.URL.Query().Get("mode"); m != "" {
		sess.SetMode(catalog.ParseMode(m))
	}
	if err := sess.SetFilter(f); err != nil {
		var ferr *catalog.FilterError
		if errors.As(err, &ferr) {
			respondWithFieldErrors(w, http.StatusBadRequest, "Invalid filter", ferr.Fields)
			return
		}
		h.log.WithError(err).Error("SetFilter failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to apply filter")
		return
	}

	view, err := sess.Load(r.Context())
	h.respondWithView(w, view, err)
}

// BrowseMore appends the next window in infinite mode. A device without a
// browsing session has nothing to extend.
func (h *HTTPHandler) BrowseMore(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.browse.Peek(deviceFrom(r.Context()))
	if !ok {
		respondWithJSON(w, http.StatusBadRequest, browseErrorResponse{Error: "Load more is only available in infinite mode"})
		return
	}
	view, err := sess.LoadMore(r.Context())
	h.respondWithView(w, view, err)
}

type browseErrorResponse struct {
	Error     string       `json:"error"`
	Retryable bool         `json:"retryable"`
	View      catalog.View `json:"view"`
}

func (h *HTTPHandler) respondWithView(w http.ResponseWriter, view catalog.View, err error) {
	var ferr *catalog.FetchError
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, view)
	case errors.Is(err, catalog.ErrNotInfinite):
		respondWithJSON(w, http.StatusBadRequest, browseErrorResponse{Error: "Load more is only available in infinite mode", View: view})
	case errors.Is(err, catalog.ErrLoadInFlight), errors.Is(err, catalog.ErrSuperseded):
		respondWithJSON(w, http.StatusConflict, browseErrorResponse{Error: "A newer request is loading products", Retryable: true, View: view})
	case errors.As(err, &ferr):
		respondWithJSON(w, http.StatusServiceUnavailable, browseErrorResponse{
			Error:     "Failed to load products",
			Retryable: ferr.Retryable(),
			View:      view,
		})
	default:
		h.log.WithError(err).Error("browse load failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to load products")
	}
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.auth.Identify)

		r.Get("/categories", h.ListCategories)
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/featured", h.ListFeaturedProducts) // before /{product}
			r.Route("/{product}", func(r chi.Router) {
				r.Get("/", h.GetProductBySlug)
				r.Get("/reviews", h.ListReviews)
				r.With(RequireUser).Post("/reviews", h.SubmitReview)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(DeviceID)
			r.Get("/browse", h.Browse)
			r.Post("/browse/more", h.BrowseMore)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/", h.AddToCart)
				r.Delete("/", h.ClearCart)
				r.Patch("/items/{productId}", h.UpdateCartItem)
				r.Delete("/items/{productId}", h.RemoveCartItem)
			})
			r.With(RequireUser).Post("/checkout", h.Checkout)
		})

		r.With(RequireUser).Get("/wishlist", h.GetWishlist)
		r.Post("/wishlist/{productId}/toggle", h.ToggleWishlist)

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.ListMyOrders)
			r.Get("/{orderId}", h.GetOrder)
			r.Post("/{orderId}/returns", h.RequestReturn)
		})

		r.Get("/settings/coupon", h.GetCoupon)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			h.registerAdminRoutes(r)
		})
	})
}
