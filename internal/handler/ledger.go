package handler

import (
	"net/http"
	"strconv"
	"time"

	"halaqa-points-api/internal/middleware"
	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/pkg/apierror"
	"halaqa-points-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// LedgerHandler exposes the points ledger of the current user and the
// teacher-side award and redemption operations.
type LedgerHandler struct {
	store       service.Store
	ledger      *service.LedgerService
	redemptions *service.RedemptionService
	auth        service.Auth
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(s service.Store, auth service.Auth) *LedgerHandler {
	return &LedgerHandler{
		store:       s,
		ledger:      service.NewLedgerService(s),
		redemptions: service.NewRedemptionService(s),
		auth:        auth,
	}
}

// LedgerView is the read model returned to clients.
type LedgerView struct {
	UserID        string         `json:"user_id"`
	Balance       int64          `json:"balance"`
	LifetimeTotal int64          `json:"lifetime_total"`
	Inventory     []model.ItemID `json:"inventory"`
	Equipped      model.Equipped `json:"equipped"`
	Loading       bool           `json:"loading"`
	Error         string         `json:"error,omitempty"`
}

func recordView(rec model.LedgerRecord) LedgerView {
	inv := rec.Inventory
	if inv == nil {
		inv = []model.ItemID{}
	}
	return LedgerView{
		UserID:        rec.UserID,
		Balance:       rec.Balance,
		LifetimeTotal: rec.LifetimeTotal,
		Inventory:     inv,
		Equipped:      rec.Equipped,
	}
}

func stateView(userID string, st service.MirrorState) LedgerView {
	v := LedgerView{
		UserID:        userID,
		Balance:       st.Balance,
		LifetimeTotal: st.LifetimeTotal,
		Inventory:     st.Inventory,
		Equipped:      st.Equipped,
		Loading:       st.Loading,
	}
	if st.Err != nil {
		v.Error = "live updates stopped, reconnect to resume"
	}
	return v
}

// SpendRequest buys a cosmetic item.
type SpendRequest struct {
	Cost   int64  `json:"cost" validate:"required,gt=0"`
	ItemID string `json:"item_id" validate:"required,max=64"`
}

// EquipRequest selects the item shown in a slot. An empty item clears it.
type EquipRequest struct {
	Slot   string `json:"slot" validate:"required,slot"`
	ItemID string `json:"item_id" validate:"max=64"`
}

// CreditRequest awards points.
type CreditRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0,lte=100000"`
}

// RedeemRequest redeems a real-world reward for a student.
type RedeemRequest struct {
	RewardID        string `json:"reward_id" validate:"required,max=64"`
	Cost            int64  `json:"cost" validate:"required,gt=0"`
	ObservedBalance *int64 `json:"observed_balance,omitempty" validate:"omitempty,gte=0"`
}

// RedeemResponse is returned after a successful redemption.
type RedeemResponse struct {
	Redemption model.RedemptionRecord `json:"redemption"`
	Ledger     LedgerView             `json:"ledger"`
}

func (h *LedgerHandler) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := h.auth.CurrentUserID(r.Context())
	if !ok {
		response.Error(w, apierror.Unauthorized("This endpoint requires a user session token"))
		return "", false
	}
	return userID, true
}

// Me handles GET /ledger/me
func (h *LedgerHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	rec, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, recordView(rec))
}

// Stream handles GET /ledger/me/stream and pushes the mirrored ledger on
// every change until the client disconnects or the subscription fails.
func (h *LedgerHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	session := service.NewSession(r.Context(), h.auth, h.store)
	defer session.Close()

	stream, ok := openEventStream(w)
	if !ok {
		return
	}

	updates, push := latest[service.MirrorState]()
	cancel := session.Observe(push)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case st := <-updates:
			if st.Loading {
				continue
			}
			if err := stream.send("ledger", stateView(userID, st)); err != nil {
				return
			}
			if st.Err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// Spend handles POST /ledger/me/spend
func (h *LedgerHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var req SpendRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	rec, err := h.ledger.DebitAndGrant(r.Context(), userID, req.Cost, model.ItemID(req.ItemID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, recordView(rec))
}

// Equip handles POST /ledger/me/equip
func (h *LedgerHandler) Equip(w http.ResponseWriter, r *http.Request) {
	var req EquipRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	rec, err := h.ledger.Equip(r.Context(), userID, model.Slot(req.Slot), model.ItemID(req.ItemID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, recordView(rec))
}

// Credit handles POST /ledger/{user_id}/credit
func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	rec, err := h.ledger.Credit(r.Context(), chi.URLParam(r, "user_id"), req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, recordView(rec))
}

// Redeem handles POST /ledger/{user_id}/redeem
func (h *LedgerHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	redeemedBy := ""
	if caller := middleware.GetTokenDataFromContext(r.Context()); caller != nil {
		redeemedBy = caller.UserID
		if redeemedBy == "" {
			redeemedBy = caller.DisplayName
		}
	}

	audit, rec, err := h.redemptions.Redeem(r.Context(), service.RedeemRequest{
		UserID:          chi.URLParam(r, "user_id"),
		RewardID:        req.RewardID,
		Cost:            req.Cost,
		RedeemedBy:      redeemedBy,
		ObservedBalance: req.ObservedBalance,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Created(w, RedeemResponse{Redemption: audit, Ledger: recordView(rec)})
}

// Redemptions handles GET /ledger/{user_id}/redemptions. Students may only
// read their own history.
func (h *LedgerHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	caller := middleware.GetTokenDataFromContext(r.Context())
	if caller == nil || (!caller.Role.CanAward() && caller.UserID != userID) {
		response.Error(w, apierror.Forbidden("You can only view your own redemptions"))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			response.Error(w, apierror.ValidationError("invalid query", apierror.FieldError{Field: "limit", Message: "limit must be between 1 and 100"}))
			return
		}
		limit = n
	}

	records, err := h.redemptions.History(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, records, limit, len(records))
}
