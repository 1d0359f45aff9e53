package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"scatch/globals"
	"scatch/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

// JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Revocations is the denylist of logged-out token ids.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Auth struct {
	secret        []byte
	ttl           time.Duration
	revoked       Revocations
	secureCookies bool
}

// NewAuth builds the session authority. revoked may be nil, which disables logout revocation.
func NewAuth(secret string, ttl time.Duration, revoked Revocations, secureCookies bool) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl, revoked: revoked, secureCookies: secureCookies}
}

// CookieName is the session cookie for a role.
func CookieName(role string) string {
	if role == globals.RoleOwner {
		return "ownertoken"
	}
	return "token"
}

func (a *Auth) Issue(id, email, role string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		UserID: id,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.GetUUID(),
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates signature, expiry and revocation.
func (a *Auth) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}

	if a.revoked != nil && claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			// denylist unavailable: accept the signed token rather than lock everyone out
			log.Println("Revocation lookup error:", err)
		} else if revoked {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke denylists the token until its own expiry.
func (a *Auth) Revoke(ctx context.Context, claims *Claims) error {
	if a.revoked == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return a.revoked.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// tokensFromRequest lists the role's cookie token and then a Bearer token, skipping absent ones.
func tokensFromRequest(r *http.Request, role string) []string {
	var tokens []string
	if c, err := r.Cookie(CookieName(role)); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		if t := strings.TrimSpace(h[7:]); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Resolve authenticates the request for role and returns the principal with its claims.
// A cookie that fails to parse or carries another role does not hide a valid Bearer token.
func (a *Auth) Resolve(r *http.Request, role string) (globals.Principal, *Claims, error) {
	tokens := tokensFromRequest(r, role)
	if len(tokens) == 0 {
		return globals.Principal{}, nil, ErrMissingToken
	}

	var claims *Claims
	var firstErr error
	for _, tok := range tokens {
		c, err := a.Parse(r.Context(), tok)
		if err == nil && c.Role != role {
			err = fmt.Errorf("%w: role %q", ErrInvalidToken, c.Role)
		}
		if err == nil {
			claims = c
			break
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if claims == nil {
		return globals.Principal{}, nil, firstErr
	}
	return globals.Principal{
		ID:      claims.UserID,
		Email:   claims.Email,
		Role:    claims.Role,
		TokenID: claims.ID,
	}, claims, nil
}

// Authenticate admits shoppers.
func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return a.require(globals.RoleUser, next)
}

// AuthenticateOwner admits sellers.
func (a *Auth) AuthenticateOwner(next httprouter.Handle) httprouter.Handle {
	return a.require(globals.RoleOwner, next)
}

func (a *Auth) require(role string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p, _, err := a.Resolve(r, role)
		if err != nil {
			if errors.Is(err, ErrMissingToken) {
				utils.RespondWithError(w, http.StatusUnauthorized, "Please login first")
				return
			}
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}
		next(w, r.WithContext(utils.WithPrincipal(r.Context(), p)), ps)
	}
}

func (a *Auth) SetSessionCookie(w http.ResponseWriter, role, token string, expires time.Time) {
	http.SetCookie(w, a.cookie(CookieName(role), token, expires))
}

func (a *Auth) ClearSessionCookies(w http.ResponseWriter) {
	for _, role := range []string{globals.RoleUser, globals.RoleOwner} {
		c := a.cookie(CookieName(role), "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (a *Auth) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if a.secureCookies {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
