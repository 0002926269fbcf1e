package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"froidapi/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reza = map[string]string{"username": "Reza", "password": "some_strong_password"}

func register(t *testing.T, env *testEnv) {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/users/register", map[string]string{
		"username": "Reza",
		"email":    "reza@example.com",
		"password": "some_strong_password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	sent := env.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reza@example.com", sent[0].To)
	assert.Equal(t, "Welcome to FroidAPI", sent[0].Subject)

	w := env.do(t, http.MethodPost, "/v1/users/register", map[string]string{
		"username": "Reza", "email": "other@example.com", "password": "some_strong_password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, users.ErrUserExists.Error(), decode[errorBody](t, w).Message)
}

func TestRegisterResponseHidesPassword(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/users/register", map[string]string{
		"username": "Reza", "email": "reza@example.com", "password": "some_strong_password",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	got := decode[map[string]any](t, w)
	assert.Equal(t, "Reza", got["username"])
	assert.Equal(t, "reza@example.com", got["email"])
	assert.NotContains(t, got, "hashed_password")
	assert.NotContains(t, w.Body.String(), "some_strong_password")
}

func TestRegisterInvalid(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]map[string]string{
		"short username":   {"username": "ab", "email": "a@example.com", "password": "some_strong_password"},
		"bad email":        {"username": "Reza", "email": "not-an-email", "password": "some_strong_password"},
		"short password":   {"username": "Reza", "email": "a@example.com", "password": "short"},
		"password w/space": {"username": "Reza", "email": "a@example.com", "password": "has a space in it"},
	} {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/users/register", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users/register", bytes.NewBufferString("{not json"))
	w := serve(env, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/users/register", http.NoBody)
	w = serve(env, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.mail.Sent())
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	w := env.do(t, http.MethodPost, "/v1/users/me", reza)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reza", decode[map[string]any](t, w)["username"])

	w = env.do(t, http.MethodPost, "/v1/users/me", map[string]string{"username": "Reza", "password": "wrong_password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/v1/users/me", map[string]string{"username": "Nobody", "password": "whatever1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/v1/users/me", map[string]string{"username": "Reza"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMe(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	w := env.do(t, http.MethodPost, "/v1/users/me/token/new", reza)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/users/me", reza)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = env.do(t, http.MethodPost, "/v1/users/me", reza)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	w := env.do(t, http.MethodPut, "/v1/users/me/change-password", map[string]string{
		"username": "Reza", "password": "some_strong_password", "new_password": "some_strong_password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "same password")

	w = env.do(t, http.MethodPut, "/v1/users/me/change-password", map[string]string{
		"username": "Reza", "password": "some_strong_password", "new_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "too short")

	w = env.do(t, http.MethodPut, "/v1/users/me/change-password", map[string]string{
		"username": "Reza", "password": "some_strong_password", "new_password": "new_pass_8000",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/users/me", reza)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodPost, "/v1/users/me", map[string]string{"username": "Reza", "password": "new_pass_8000"})
	assert.Equal(t, http.StatusOK, w.Code)

	sent := env.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "FroidAPI: your password was changed", sent[1].Subject)
}

func TestTokenLifecycle(t *testing.T) {
	env := newTestEnv(t)
	register(t, env)

	w := env.do(t, http.MethodPost, "/v1/users/me/token", reza)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, `User "Reza" has no token.`, decode[errorBody](t, w).Message)

	w = env.do(t, http.MethodPost, "/v1/users/me/token/new", reza)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[users.Token](t, w)
	assert.Len(t, created.Token, 32)

	w = env.do(t, http.MethodPost, "/v1/users/me/token/new", reza)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/users/me/token", reza)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.Token, decode[users.Token](t, w).Token)

	w = env.do(t, http.MethodDelete, "/v1/users/me/token/revoke", reza)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/users/me/token/revoke", reza)
	assert.Equal(t, http.StatusNotFound, w.Code)

	sent := env.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "FroidAPI: new API token", sent[1].Subject)
}

func TestUserRoutesWithoutEmailer(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Emailer = nil })
	register(t, env)
	assert.Empty(t, env.mail.Sent())
}
