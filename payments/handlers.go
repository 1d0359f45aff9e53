package payments

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"scatch/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

var errorResponses = []struct {
	err    error
	status int
	msg    string
}{
	{ErrUnauthenticated, http.StatusUnauthorized, "User not authenticated"},
	{ErrEmptyCart, http.StatusBadRequest, "Cart is empty"},
	{ErrNoValidItems, http.StatusBadRequest, "No valid items in cart"},
	{ErrSellerUnavailable, http.StatusBadRequest, "A product in your cart is no longer sold"},
	{ErrInvalidAmount, http.StatusBadRequest, "Invalid amount"},
	{ErrMissingFields, http.StatusBadRequest, "Missing payment fields"},
	{ErrInvalidSignature, http.StatusBadRequest, "Invalid payment signature"},
	{ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{ErrOrderNotPayable, http.StatusConflict, "Order can no longer be paid"},
	{ErrOrderNotPaid, http.StatusConflict, "Order is not paid yet"},
	{ErrOrderCreation, http.StatusInternalServerError, "Failed to create order"},
}

// respondError maps service errors to statuses; anything unknown is a 500 with fallback.
func respondError(w http.ResponseWriter, err error, fallback string) {
	for _, e := range errorResponses {
		if errors.Is(err, e.err) {
			utils.RespondWithError(w, e.status, e.msg)
			return
		}
	}
	log.Println(fallback+":", err)
	utils.RespondWithError(w, http.StatusInternalServerError, fallback)
}

// CreateOrder handles POST /api/payments/create-order
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	res, err := h.svc.CreateOrder(ctx, userID)
	if err != nil {
		respondError(w, err, "Failed to create order")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"order": utils.M{
			"id":     res.GatewayOrderID,
			"amount": res.Amount,
		},
		"key": res.Key,
	})
}

// VerifyPayment handles POST /api/payments/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req VerifyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing payment fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	order, err := h.svc.VerifyPayment(ctx, userID, req)
	if err != nil {
		respondError(w, err, "Verification failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "order": order})
}

// OwnerRevenue handles GET /api/payments/owner-revenue
func (h *Handler) OwnerRevenue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ownerID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Owner not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rev, err := h.svc.OwnerRevenue(ctx, ownerID)
	if err != nil {
		respondError(w, err, "Server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":     true,
		"totalPaise":  rev.TotalPaise,
		"totalRupees": rev.TotalRupees,
	})
}

// ListOrders handles GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.svc.ListOrders(ctx, userID)
	if err != nil {
		respondError(w, err, "Failed to fetch orders")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "orders": orders})
}

// Receipt handles GET /api/orders/:id/receipt
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	orderID, ok := utils.ParseObjectID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.svc.PaidOrder(ctx, userID, orderID)
	if err != nil {
		respondError(w, err, "Failed to load order")
		return
	}

	pdf, err := RenderReceipt(order)
	if err != nil {
		log.Println("Receipt render error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate receipt")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+order.RazorpayOrderID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
