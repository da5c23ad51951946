package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/pkg/common"
	pkgerrors "artion-backend/pkg/errors"
)

// OrphanHandler serves reconciliation of bundles whose compensation failed
type OrphanHandler struct {
	store      ports.OrphanStore
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewOrphanHandler creates a new orphan handler
func NewOrphanHandler(store ports.OrphanStore, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *OrphanHandler {
	return &OrphanHandler{store: store, errHandler: errHandler, logger: logger}
}

// ListOrphans handles GET /orphans
func (h *OrphanHandler) ListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.store.ListOpen(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, orphans)
}

// ResolveOrphan handles POST /orphans/{bundleID}/resolve
func (h *OrphanHandler) ResolveOrphan(w http.ResponseWriter, r *http.Request) {
	bundleID := chi.URLParam(r, "bundleID")
	if err := h.store.Resolve(r.Context(), bundleID); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	h.logger.Info("Orphan resolved", zap.String("bundle_id", bundleID))
	common.RespondJSON(w, http.StatusOK, map[string]string{"bundle_id": bundleID, "status": "resolved"})
}
