package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"artion-backend/application/sagas"
	"artion-backend/application/services"
	"artion-backend/domain/core/entities"
	"artion-backend/domain/core/valueobjects"
	"artion-backend/pkg/auth"
	"artion-backend/pkg/common"
	pkgerrors "artion-backend/pkg/errors"
	"artion-backend/pkg/utils"
)

// SessionHandler exposes bundle-creation sessions over HTTP
type SessionHandler struct {
	registry   *sagas.Registry
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *sagas.Registry, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry:   registry,
		errHandler: errHandler,
		logger:     logger,
	}
}

// OpenSessionResponse is returned when a session starts
type OpenSessionResponse struct {
	SessionID string     `json:"session_id"`
	View      sagas.View `json:"view"`
}

// ReplaceSelectionRequest replaces the whole selection
type ReplaceSelectionRequest struct {
	Items []entities.CandidateItem `json:"items" validate:"dive"`
}

// CommitRequest carries the bundle draft
type CommitRequest struct {
	Name  string `json:"name" validate:"required"`
	Price string `json:"price" validate:"required"`
}

// CommitResponse reports the saga outcome with the resulting view
type CommitResponse struct {
	Outcome entities.SagaOutcome `json:"outcome"`
	View    sagas.View           `json:"view"`
}

// OpenSession handles POST /sessions
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return
	}

	c := h.registry.Open(user.UserID)

	common.RespondJSON(w, http.StatusCreated, OpenSessionResponse{SessionID: c.ID(), View: c.View()})
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, c.View())
}

// CloseSession handles DELETE /sessions/{sessionID}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	h.registry.Close(c.ID())

	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /sessions/{sessionID}/selection/items
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	var item entities.CandidateItem
	if err := common.DecodeJSON(r, &item); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(item); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	asset, err := item.ToAsset()
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	view, err := c.AddAsset(r.Context(), asset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// ReplaceSelection handles PUT /sessions/{sessionID}/selection
func (h *SessionHandler) ReplaceSelection(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ReplaceSelectionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	assets := make([]valueobjects.Asset, 0, len(req.Items))
	for _, item := range req.Items {
		asset, err := item.ToAsset()
		if err != nil {
			h.errHandler.Handle(w, r, err)
			return
		}
		assets = append(assets, asset)
	}

	view, err := c.OnSelectionChanged(r.Context(), assets)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /sessions/{sessionID}/selection/items/{contract}/{tokenID}
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	contract, err := valueobjects.NewContractAddress(chi.URLParam(r, "contract"))
	if err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	tokenID, err := valueobjects.NewTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	view, err := c.RemoveAsset(r.Context(), valueobjects.NewAssetKey(contract, tokenID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// GetAuthorization handles GET /sessions/{sessionID}/authorization
func (h *SessionHandler) GetAuthorization(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	status, err := c.RefreshAuthorization(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, status)
}

// Approve handles POST /sessions/{sessionID}/approve
func (h *SessionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := c.Approve(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, c.View())
}

// Commit handles POST /sessions/{sessionID}/commit
func (h *SessionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return
	}

	var req CommitRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	draft, err := entities.NewBundleDraft(req.Name, req.Price)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	outcome, err := c.Commit(r.Context(), draft, user.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Bundle commit finished",
		zap.String("session_id", c.ID()),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("bundle_id", outcome.BundleID))
	common.RespondJSON(w, http.StatusOK, CommitResponse{Outcome: outcome, View: c.View()})
}

// session resolves the path session for its owner, writing 404 otherwise
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*sagas.Coordinator, bool) {
	id := chi.URLParam(r, "sessionID")
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return nil, false
	}

	c, ok := h.registry.Lookup(id, user.UserID)
	if !ok {
		h.errHandler.Handle(w, r, pkgerrors.NewNotFoundError("session"))
		return nil, false
	}
	return c, true
}

// fail maps coordinator errors onto application errors
func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var partial *services.PartialFailure
	switch {
	case errors.Is(err, sagas.ErrSagaBusy):
		err = pkgerrors.NewConflictError("another step is in progress").WithCode("SAGA_BUSY")
	case errors.Is(err, sagas.ErrNotReady):
		err = pkgerrors.NewConflictError("every contract must be approved before creating the bundle").WithCode("NOT_READY")
	case errors.Is(err, sagas.ErrNothingToApprove):
		err = pkgerrors.NewConflictError("no contract awaits approval").WithCode("NOTHING_TO_APPROVE")
	case errors.Is(err, sagas.ErrDetached):
		err = pkgerrors.NewNotFoundError("session")
	case errors.As(err, &partial):
		contracts := make([]string, 0, len(partial.Contracts()))
		for _, a := range partial.Contracts() {
			contracts = append(contracts, a.Hex())
		}
		err = pkgerrors.NewLedgerError("approve", err).
			WithCode("AUTHORIZATION_FAILED").
			WithDetail("failed_contracts", contracts).
			WithDetail("message", sagas.MessageRetryApproval)
	}
	h.errHandler.Handle(w, r, err)
}
