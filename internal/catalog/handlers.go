package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/acme-checkout/internal/common"
)

// Handler exposes public catalogue endpoints.
type Handler struct {
	catalogue    *Catalogue
	defaultLimit int
	maxLimit     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalogue    *Catalogue
	DefaultLimit int
	MaxLimit     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Handler{catalogue: cfg.Catalogue, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.catalogue == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalogue not configured", nil)
		return
	}
	page, limit := common.ParsePagination(r, h.defaultLimit, h.maxLimit)
	all := h.catalogue.List()
	start, end := common.Window(page, limit, len(all))
	items := make([]View, 0, end-start)
	for _, p := range all[start:end] {
		items = append(items, p.View())
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(all)))
	common.Respond(w, r, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: len(all)},
	})
}

// ProductDetail handles GET /api/v1/products/{code}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.catalogue == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalogue not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	p, err := h.catalogue.Get(code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Respond(w, r, http.StatusOK, map[string]any{"data": p.View()})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var unknown *UnknownProductError
	if errors.As(err, &unknown) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", map[string]any{"code": unknown.Code})
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
