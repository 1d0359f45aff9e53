package auth

import (
	"context"
	"net/http"
	"time"

	"scatch/globals"
	"scatch/middleware"
	"scatch/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserAccounts interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type OwnerAccounts interface {
	Create(ctx context.Context, o *models.Owner) error
	FindByEmail(ctx context.Context, email string) (*models.Owner, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Owner, error)
}

// Handler serves registration, login, logout and session checks for shoppers and sellers.
type Handler struct {
	users    UserAccounts
	owners   OwnerAccounts
	sessions *middleware.Auth
}

func NewHandler(users UserAccounts, owners OwnerAccounts, sessions *middleware.Auth) *Handler {
	return &Handler{users: users, owners: owners, sessions: sessions}
}

func (h *Handler) startSession(w http.ResponseWriter, id primitive.ObjectID, email, role string) (string, error) {
	token, expires, err := h.sessions.Issue(id.Hex(), email, role)
	if err != nil {
		return "", err
	}
	h.sessions.SetSessionCookie(w, role, token, expires)
	return token, nil
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}

var sessionRoles = []string{globals.RoleUser, globals.RoleOwner}
