package auth

import (
	"log"
	"net/http"

	"scatch/globals"
	"scatch/models"
	"scatch/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Logout handles POST /api/users/logout and /api/owners/logout.
// Both session cookies are cleared and any presented token is revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(r)
	defer cancel()

	for _, role := range sessionRoles {
		_, claims, err := h.sessions.Resolve(r, role)
		if err != nil {
			continue
		}
		if err := h.sessions.Revoke(ctx, claims); err != nil {
			log.Println("Token revoke error:", err)
		}
	}
	h.sessions.ClearSessionCookies(w)

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Check handles GET /api/auth/check. It never fails with 401; absent sessions are null.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var user *models.User
	var owner *models.Owner

	if p, _, err := h.sessions.Resolve(r, globals.RoleUser); err == nil {
		if id, err := primitive.ObjectIDFromHex(p.ID); err == nil {
			user, _ = h.users.FindByID(ctx, id)
		}
	}
	if p, _, err := h.sessions.Resolve(r, globals.RoleOwner); err == nil {
		if id, err := primitive.ObjectIDFromHex(p.ID); err == nil {
			owner, _ = h.owners.FindByID(ctx, id)
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"user":    user,
		"owner":   owner,
	})
}
