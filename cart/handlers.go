package cart

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"scatch/models"
	"scatch/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	valuator *Valuator
	users    UserStore
	products ProductStore
}

func NewHandler(valuator *Valuator, users UserStore, products ProductStore) *Handler {
	return &Handler{valuator: valuator, users: users, products: products}
}

type cartLine struct {
	Product   models.ProductView `json:"product"`
	Quantity  int                `json:"quantity"`
	LineTotal float64            `json:"lineTotal"`
}

// GetCart handles GET /api/cart. totalBill is the subtotal before the platform fee.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	val, err := h.valuator.Value(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "User account not found")
			return
		}
		log.Println("Cart API error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch cart")
		return
	}

	lines := make([]cartLine, 0, len(val.Items))
	for _, it := range val.Items {
		lines = append(lines, cartLine{
			Product:   models.NewProductView(it.Product, ""),
			Quantity:  it.Quantity,
			LineTotal: it.Total.InexactFloat64(),
		})
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":     true,
		"cart":        lines,
		"totalBill":   val.Subtotal.InexactFloat64(),
		"platformFee": val.PlatformFee.InexactFloat64(),
		"finalBill":   val.FinalBill.InexactFloat64(),
	})
}

// AddToCart handles POST /api/cart/:productid
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	productID, ok := utils.ParseObjectID(ps.ByName("productid"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := h.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Println("AddToCart product lookup error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}

	if err := h.users.AddToCart(ctx, userID, productID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "User account not found")
			return
		}
		log.Println("AddToCart error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Added to cart"})
}

// UpdateCart handles POST /api/cart/:productid/update with {action: increase|decrease}
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	productID, ok := utils.ParseObjectID(ps.ByName("productid"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var delta int
	switch body.Action {
	case "increase":
		delta = 1
	case "decrease":
		delta = -1
	default:
		utils.RespondWithError(w, http.StatusBadRequest, "Action must be increase or decrease")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.users.ChangeCartQuantity(ctx, userID, productID, delta); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Item not in cart")
			return
		}
		log.Println("UpdateCart error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Cart updated"})
}

// RemoveFromCart handles DELETE /api/cart/:productid
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	productID, ok := utils.ParseObjectID(ps.ByName("productid"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.users.RemoveFromCart(ctx, userID, productID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "User account not found")
			return
		}
		log.Println("RemoveFromCart error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to remove item")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Removed from cart"})
}
