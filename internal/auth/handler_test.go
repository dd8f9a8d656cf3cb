package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/session"
	"github.com/worklane/worklane/internal/shared"
)

type fakeProvider struct {
	accounts map[string]string
	subjects map[string]*identity.Identity
}

func (p *fakeProvider) VerifyCredentials(ctx context.Context, account, secret string) (*identity.Identity, error) {
	if p.accounts[account] != secret || secret == "" {
		return nil, shared.ErrInvalidCredentials
	}
	return p.subjects[account], nil
}

type staticDirectory map[string]*identity.Identity

func (d staticDirectory) FindByAccount(ctx context.Context, account string) (*identity.Identity, error) {
	subject, ok := d[account]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return subject, nil
}

func (d staticDirectory) FindByID(ctx context.Context, id int64) (*identity.Identity, error) {
	for _, subject := range d {
		if subject.ID == id {
			return subject, nil
		}
	}
	return nil, shared.ErrNotFound
}

type allowAll struct{}

func (allowAll) CanAccess(ctx context.Context, subjectID int64, key string, access rbac.Access) bool {
	return true
}

type discardAudit struct{}

func (discardAudit) Record(ctx context.Context, log shared.AuditLog) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	alice := &identity.Identity{ID: 10, Account: "alice", IsActive: true}
	bob := &identity.Identity{ID: 20, Account: "bob", IsActive: true}
	directory := staticDirectory{"alice": alice, "bob": bob}

	codec := session.NewTokenCodec("test-secret", "worklane", 15*time.Minute)
	sessions := session.NewManager(client, codec, directory, nil, session.Config{
		IdleTimeout: 120 * time.Minute,
		RefreshTTL:  time.Hour,
		BypassTTL:   30 * time.Minute,
	}, slog.New(slog.DiscardHandler), nil)
	controller := session.NewController(sessions, allowAll{}, directory, discardAudit{}, nil, nil)

	provider := &fakeProvider{
		accounts: map[string]string{"alice": "secret123"},
		subjects: map[string]*identity.Identity{"alice": alice},
	}

	handler := NewHandler(slog.New(slog.DiscardHandler), provider, sessions, controller, false, time.Hour)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			bearer := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			if bearer != "" && bearer != req.Header.Get("Authorization") {
				if ac, err := sessions.Verify(req.Context(), bearer); err == nil {
					req = req.WithContext(shared.ContextWithAuth(req.Context(), ac))
				}
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/auth", handler.MountRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sessions
}

func postJSON(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginIssuesTokenAndRefreshCookie(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/auth/login", "", map[string]string{"accountId": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie)
	require.True(t, refreshCookie.HttpOnly)
	require.Equal(t, "/auth", refreshCookie.Path)

	body := decodeBody(t, resp)
	require.NotEmpty(t, body["token"])
	require.Equal(t, "Bearer", body["tokenType"])
}

func TestLoginFailureIsGeneric(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, creds := range []map[string]string{
		{"accountId": "alice", "password": "wrong"},
		{"accountId": "nobody", "password": "secret123"},
	} {
		resp := postJSON(t, srv, "/auth/login", "", creds)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeBody(t, resp)
		require.Equal(t, "account or password is incorrect", body["message"],
			"unknown account and wrong password must be indistinguishable")
	}
}

func TestLoginValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/auth/login", "", map[string]string{"accountId": "alice"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "bad_request", body["error"])
}

func TestRefreshAndLogout(t *testing.T) {
	srv, _ := newTestServer(t)

	login := postJSON(t, srv, "/auth/login", "", map[string]string{"accountId": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	cookies := login.Cookies()
	decodeBody(t, login)

	refresh, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		refresh.AddCookie(c)
	}
	resp, err := srv.Client().Do(refresh)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	require.NotEmpty(t, body["token"])

	logout, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		logout.AddCookie(c)
	}
	resp, err = srv.Client().Do(logout)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp)

	// The refresh credential dies with the session.
	retry, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		retry.AddCookie(c)
	}
	resp, err = srv.Client().Do(retry)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp)
}

func TestVerifyRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/auth/verify")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	decodeBody(t, resp)
}

func TestBypassFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	login := postJSON(t, srv, "/auth/login", "", map[string]string{"accountId": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	token := decodeBody(t, login)["token"].(string)

	resp := postJSON(t, srv, "/auth/bypass", token, map[string]string{"accountId": "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	bypassToken := body["token"].(string)
	require.NotEmpty(t, bypassToken)
	info := body["bypassInfo"].(map[string]any)
	require.Equal(t, "10", info["originalUser"])

	verifyReq, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/bypass/verify", nil)
	require.NoError(t, err)
	verifyReq.Header.Set("Authorization", "Bearer "+bypassToken)
	verifyResp, err := srv.Client().Do(verifyReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, verifyResp.StatusCode)
	verifyBody := decodeBody(t, verifyResp)
	require.Equal(t, true, verifyBody["isBypass"])
	require.Equal(t, "20", verifyBody["currentUser"])

	// Beginning a second bypass on the same session must fail.
	again := postJSON(t, srv, "/auth/bypass", bypassToken, map[string]string{"accountId": "bob"})
	require.Equal(t, http.StatusBadRequest, again.StatusCode)
	require.Equal(t, "bypass_active", decodeBody(t, again)["error"])

	revert := postJSON(t, srv, "/auth/bypass/revert", bypassToken, nil)
	require.Equal(t, http.StatusOK, revert.StatusCode)
	revertToken := decodeBody(t, revert)["token"].(string)

	verifyReq, err = http.NewRequest(http.MethodGet, srv.URL+"/auth/bypass/verify", nil)
	require.NoError(t, err)
	verifyReq.Header.Set("Authorization", "Bearer "+revertToken)
	verifyResp, err = srv.Client().Do(verifyReq)
	require.NoError(t, err)
	verifyBody = decodeBody(t, verifyResp)
	require.Equal(t, false, verifyBody["isBypass"])
}
