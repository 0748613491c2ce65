// Package httpapi exposes the marketplace REST API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/hydrochain/marketplace/internal/app"
	"github.com/hydrochain/marketplace/internal/app/services/credits"
	"github.com/hydrochain/marketplace/internal/app/services/partnerships"
	"github.com/hydrochain/marketplace/internal/middleware"
)

var errAuthRequired = fmt.Errorf("authentication required")

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the marketplace REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/api/connect-wallet", h.connectWallet)
	mux.HandleFunc("/api/credits", h.credits)
	mux.HandleFunc("/api/buy", h.buy)
	mux.HandleFunc("/api/sell", h.sell)
	mux.HandleFunc("/api/retire", h.retire)
	mux.HandleFunc("/api/place-bid", h.placeBid)
	mux.HandleFunc("/api/bids", h.bids)
	mux.HandleFunc("/api/bids/", h.bidActions)
	mux.HandleFunc("/api/notifications", h.notifications)
	mux.HandleFunc("/api/notifications/stream", h.notificationStream)
	mux.HandleFunc("/api/notifications/mark-read/", h.markNotificationRead)
	mux.HandleFunc("/api/notifications/mark-all-read", h.markAllNotificationsRead)
	mux.HandleFunc("/api/dashboard", h.dashboard)
	mux.HandleFunc("/api/marketplace", h.marketplace)
	mux.HandleFunc("/api/profile", h.profile)
	mux.HandleFunc("/api/partnerships", h.partnerships)
	mux.HandleFunc("/api/partnerships/", h.partnershipActions)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) connectWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		WalletAddress string `json:"wallet_address"`
		Username      string `json:"username"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Users.ConnectWallet(r.Context(), payload.WalletAddress, payload.Username)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  u,
		"token": token,
	})
}

func (h *handler) credits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			list any
			err  error
		)
		switch r.URL.Query().Get("scope") {
		case "", "market":
			list, err = h.app.Credits.ListForSale(r.Context())
		case "owned":
			userID, ok := h.requireUser(w, r)
			if !ok {
				return
			}
			list, err = h.app.Credits.ListOwned(r.Context(), userID)
		default:
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scope"))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		userID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		var payload struct {
			TokenID             int64   `json:"token_id"`
			ProjectName         string  `json:"project_name"`
			QuantityKg          float64 `json:"quantity_kg"`
			Price               float64 `json:"price"`
			VintageYear         int     `json:"vintage_year"`
			Certification       string  `json:"certification"`
			CertificationLevel  string  `json:"certification_level"`
			ProjectType         string  `json:"project_type"`
			ProjectCountry      string  `json:"project_country"`
			ProjectRegion       string  `json:"project_region"`
			EnvironmentalImpact float64 `json:"environmental_impact"`
			QualityRating       float64 `json:"quality_rating"`
			ForSale             bool    `json:"for_sale"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		c, err := h.app.Credits.Issue(r.Context(), userID, credits.IssueParams{
			TokenID:             payload.TokenID,
			ProjectName:         payload.ProjectName,
			QuantityKg:          payload.QuantityKg,
			Price:               payload.Price,
			VintageYear:         payload.VintageYear,
			Certification:       payload.Certification,
			CertificationLevel:  payload.CertificationLevel,
			ProjectType:         payload.ProjectType,
			ProjectCountry:      payload.ProjectCountry,
			ProjectRegion:       payload.ProjectRegion,
			EnvironmentalImpact: payload.EnvironmentalImpact,
			QualityRating:       payload.QualityRating,
			ForSale:             payload.ForSale,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) buy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		CreditID string `json:"credit_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := h.app.Trading.Buy(r.Context(), userID, payload.CreditID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Purchase completed successfully!",
		"transaction_id": tx.ID,
		"transaction":    tx,
	})
}

func (h *handler) sell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		CreditID string  `json:"credit_id"`
		Price    float64 `json:"price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.app.Trading.Sell(r.Context(), userID, payload.CreditID, payload.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Credit listed for sale at $%.2f", c.Price),
		"credit":  c,
	})
}

func (h *handler) retire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		CreditID string `json:"credit_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.app.Credits.Retire(r.Context(), userID, payload.CreditID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Credit retired successfully",
		"credit":  c,
	})
}

func (h *handler) placeBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		CreditID   string  `json:"credit_id"`
		BidPrice   float64 `json:"bid_price"`
		QuantityKg float64 `json:"quantity_kg"`
		Notes      string  `json:"notes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	b, err := h.app.Bids.Place(r.Context(), userID, payload.CreditID, payload.BidPrice, payload.QuantityKg, payload.Notes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handler) bids(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if creditID := r.URL.Query().Get("credit_id"); creditID != "" {
		list, err := h.app.Bids.ListByCredit(r.Context(), creditID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	list, err := h.app.Bids.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) bidActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/bids"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	bidID := parts[0]

	switch parts[1] {
	case "accept":
		tx, err := h.app.Bids.Accept(r.Context(), userID, bidID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Bid accepted",
			"transaction": tx,
		})
	case "cancel":
		b, err := h.app.Bids.Cancel(r.Context(), userID, bidID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit"))
			return
		}
		limit = parsed
	}

	list, err := h.app.Notifications.List(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications/mark-read"), "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	n, err := h.app.Notifications.MarkRead(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.app.Notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": count})
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	owned, err := h.app.Credits.ListOwned(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	history, err := h.app.Trading.History(r.Context(), userID, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	unread, err := h.app.Notifications.List(r.Context(), userID, true, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":                 u,
		"credits":              owned,
		"recent_transactions":  history,
		"unread_notifications": unread,
	})
}

func (h *handler) marketplace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	listings, err := h.app.Credits.ListForSale(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	stats, err := h.app.Analytics.MarketplaceStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listings": listings,
		"stats":    stats,
	})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		u, err := h.app.Users.Get(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		owned, err := h.app.Credits.ListOwned(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		history, err := h.app.Trading.History(r.Context(), userID, 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		placedBids, err := h.app.Bids.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"user":         u,
			"credits":      owned,
			"transactions": history,
			"bids":         placedBids,
		})

	case http.MethodPut:
		var payload struct {
			Username    *string `json:"username"`
			Email       *string `json:"email"`
			CompanyName *string `json:"company_name"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		u, err := h.app.Users.UpdateProfile(r.Context(), userID, payload.Username, payload.Email, payload.CompanyName)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, u)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) partnerships(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		available, err := h.app.Partnerships.ListAvailableCredits(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		mine, err := h.app.Partnerships.ListByPartner(r.Context(), userID, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"available_credits": available,
			"allocations":       mine,
		})

	case http.MethodPost:
		var payload struct {
			CreditID      string  `json:"credit_id"`
			Type          string  `json:"partnership_type"`
			QuantityKg    float64 `json:"quantity_kg"`
			ReservedPrice float64 `json:"reserved_price"`
			StartsAt      string  `json:"starts_at"`
			EndsAt        string  `json:"ends_at"`
			AutoRenew     bool    `json:"auto_renew"`
			Terms         string  `json:"terms"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		params := partnerships.AllocateParams{
			CreditID:      payload.CreditID,
			PartnerID:     userID,
			Type:          payload.Type,
			QuantityKg:    payload.QuantityKg,
			ReservedPrice: payload.ReservedPrice,
			AutoRenew:     payload.AutoRenew,
			Terms:         payload.Terms,
		}
		var err error
		if params.StartsAt, err = parseTime(payload.StartsAt); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid starts_at: %w", err))
			return
		}
		if params.EndsAt, err = parseTime(payload.EndsAt); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid ends_at: %w", err))
			return
		}

		a, err := h.app.Partnerships.Allocate(r.Context(), params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) partnershipActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/partnerships"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "cancel" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	a, err := h.app.Partnerships.Cancel(r.Context(), userID, parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errAuthRequired)
		return "", false
	}
	return userID, true
}

func parseTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
