package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"scatch/middleware"
	"scatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return models.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type memOwners struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Owner
}

func (m *memOwners) Create(_ context.Context, o *models.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == o.Email {
			return models.ErrDuplicate
		}
	}
	o.ID = primitive.NewObjectID()
	m.byID[o.ID] = o
	return nil
}

func (m *memOwners) FindByEmail(_ context.Context, email string) (*models.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Email == email {
			return o, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memOwners) FindByID(_ context.Context, id primitive.ObjectID) (*models.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.byID[id]; ok {
		return o, nil
	}
	return nil, models.ErrNotFound
}

func newTestHandler() *Handler {
	return NewHandler(
		&memUsers{byID: map[primitive.ObjectID]*models.User{}},
		&memOwners{byID: map[primitive.ObjectID]*models.Owner{}},
		middleware.NewAuth("test-secret", time.Hour, nil, false),
	)
}

func post(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterAndLoginUser(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.RegisterUser(rec, post(`{"fullname":"Asha Rao","email":"Asha@Example.com","password":"pw12345"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, rec.Body.String(), "pw12345")
	require.NotNil(t, findCookie(rec, "token"))

	rec = httptest.NewRecorder()
	h.RegisterUser(rec, post(`{"fullname":"Asha Rao","email":"asha@example.com","password":"other"}`), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "You already have an account, Please Login!", decode(t, rec)["error"])

	rec = httptest.NewRecorder()
	h.LoginUser(rec, post(`{"email":"asha@example.com","password":"wrong"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Email or Password incorrect!", decode(t, rec)["error"])

	rec = httptest.NewRecorder()
	h.LoginUser(rec, post(`{"email":"asha@example.com","password":"pw12345"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, findCookie(rec, "token"))
}

func TestRegisterValidation(t *testing.T) {
	h := newTestHandler()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short name", `{"fullname":"Al","email":"a@b.test","password":"x"}`, "Full name must be at least 3 characters"},
		{"bad email", `{"fullname":"Alice","email":"nope","password":"x"}`, "A valid email is required"},
		{"no password", `{"fullname":"Alice","email":"a@b.test"}`, "Password is required"},
		{"not json", `{`, "Invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.RegisterUser(rec, post(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec)["error"])
		})
	}
}

func TestOwnerCreateAndLogin(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.CreateOwner(rec, post(`{"fullname":"Seller One","email":"s@shop.test","password":"pw"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.CreateOwner(rec, post(`{"fullname":"Seller One","email":"s@shop.test","password":"pw"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.LoginOwner(rec, post(`{"email":"s@shop.test","password":"pw"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ownerCookie := findCookie(rec, "ownertoken")
	require.NotNil(t, ownerCookie)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	r.AddCookie(ownerCookie)
	rec = httptest.NewRecorder()
	h.Check(rec, r, nil)
	body := decode(t, rec)
	assert.Nil(t, body["user"])
	owner, ok := body["owner"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "s@shop.test", owner["email"])
}

func TestCheckWithoutSession(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/auth/check", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Nil(t, body["user"])
	assert.Nil(t, body["owner"])
}

func TestLogoutClearsBothCookies(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/users/logout", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, findCookie(rec, "token"))
	assert.NotNil(t, findCookie(rec, "ownertoken"))
}
