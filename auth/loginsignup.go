package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"scatch/globals"
	"scatch/models"
	"scatch/utils"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *credentials) normalize() {
	c.Fullname = strings.TrimSpace(c.Fullname)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
}

func (c credentials) validateSignup() string {
	if len(c.Fullname) < 3 {
		return "Full name must be at least 3 characters"
	}
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		return "A valid email is required"
	}
	if c.Password == "" {
		return "Password is required"
	}
	return ""
}

// RegisterUser handles POST /api/users/register
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input credentials
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.normalize()
	if msg := input.validateSignup(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Println("Password hash error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user := &models.User{
		Fullname: input.Fullname,
		Email:    input.Email,
		Password: string(hash),
	}
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			utils.RespondWithError(w, http.StatusConflict, "You already have an account, Please Login!")
			return
		}
		log.Println("User create error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	token, err := h.startSession(w, user.ID, user.Email, globals.RoleUser)
	if err != nil {
		log.Println("Token issue error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// LoginUser handles POST /api/users/login
func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input credentials
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.normalize()
	if input.Email == "" || input.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Println("User lookup error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Email or Password incorrect!")
		return
	}

	token, err := h.startSession(w, user.ID, user.Email, globals.RoleUser)
	if err != nil {
		log.Println("Token issue error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"message": "Login successful",
		"token":   token,
	})
}

// CreateOwner handles POST /api/owners/create
func (h *Handler) CreateOwner(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input credentials
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.normalize()
	if msg := input.validateSignup(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Println("Password hash error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error creating owner!")
		return
	}

	owner := &models.Owner{
		Fullname: input.Fullname,
		Email:    input.Email,
		Password: string(hash),
	}
	if err := h.owners.Create(ctx, owner); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			utils.RespondWithError(w, http.StatusBadRequest, "Owner with this email already exists!")
			return
		}
		log.Println("Owner create error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error creating owner!")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"success": true,
		"message": "Owner created successfully!",
	})
}

// LoginOwner handles POST /api/owners/login
func (h *Handler) LoginOwner(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input credentials
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.normalize()

	ctx, cancel := requestContext(r)
	defer cancel()

	owner, err := h.owners.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Println("Owner lookup error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed!")
		return
	}
	if owner == nil || bcrypt.CompareHashAndPassword([]byte(owner.Password), []byte(input.Password)) != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Email or Password incorrect!")
		return
	}

	token, err := h.startSession(w, owner.ID, owner.Email, globals.RoleOwner)
	if err != nil {
		log.Println("Token issue error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed!")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"message": "Admin login successful",
		"token":   token,
	})
}
