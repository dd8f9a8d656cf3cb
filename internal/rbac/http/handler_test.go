package rbachttp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/worklane/worklane/internal/authz"
	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

type fakeStore struct {
	*rbac.MemoryRegistry
}

func (s *fakeStore) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return []rbac.Role{
		{ID: 1, Name: "Administrator", IsActive: true},
		{ID: 2, Name: "Member", IsActive: true},
	}, nil
}

func (s *fakeStore) CreateRole(ctx context.Context, name string) (rbac.Role, error) {
	if name == "Member" {
		return rbac.Role{}, shared.ErrRoleExists
	}
	role := rbac.Role{ID: 3, Name: name, IsActive: true}
	s.AddRole(role)
	return role, nil
}

func (s *fakeStore) UpdateRole(ctx context.Context, id int64, name string, active bool) (rbac.Role, error) {
	if _, err := s.GetRole(ctx, id); err != nil {
		return rbac.Role{}, err
	}
	role := rbac.Role{ID: id, Name: name, IsActive: active}
	s.AddRole(role)
	return role, nil
}

func (s *fakeStore) DeleteRole(ctx context.Context, id int64) error {
	if _, err := s.GetRole(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *fakeStore) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return []rbac.Permission{{ID: 1, Key: shared.PermTaskEntry, Label: "Task Entry"}}, nil
}

func (s *fakeStore) EnsurePermission(ctx context.Context, key, label string) (rbac.Permission, error) {
	return rbac.Permission{ID: 1, Key: key, Label: label}, nil
}

type subjectMap map[int64]*identity.Identity

func (m subjectMap) FindByID(ctx context.Context, id int64) (*identity.Identity, error) {
	subject, ok := m[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return subject, nil
}

func (m subjectMap) CountWithRole(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	for _, subject := range m {
		if subject.RoleID != nil && *subject.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now()
	admin, member := int64(1), int64(2)

	store := &fakeStore{MemoryRegistry: rbac.NewMemoryRegistry()}
	store.AddRole(rbac.Role{ID: 1, Name: "Administrator", IsActive: true})
	store.AddRole(rbac.Role{ID: 2, Name: "Member", IsActive: true})

	ctx := context.Background()
	require.NoError(t, store.SetGrant(ctx, 1, shared.PermRoleManagement, true, true))

	subjects := subjectMap{
		100: {ID: 100, IsActive: true, RoleID: &admin, ApprovedAt: &now},
		200: {ID: 200, IsActive: true, RoleID: &member, ApprovedAt: &now},
	}

	engine := authz.NewEngine(subjects, store, store, identity.NewGate(4), nil, nil)
	mw := authz.Middleware{Engine: engine}
	service := rbac.NewService(store, subjects)
	handler := NewHandler(slog.New(slog.DiscardHandler), service, mw)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if raw := req.Header.Get("X-Subject"); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				require.NoError(t, err)
				ac := shared.AuthContext{SessionID: "test", SubjectID: id, OriginalSubjectID: id}
				req = req.WithContext(shared.ContextWithAuth(req.Context(), ac))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/admin", handler.MountRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, subject string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if subject != "" {
		req.Header.Set("X-Subject", subject)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRolesRequireAuthentication(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodGet, "/admin/roles", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRolesRequireGrant(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodGet, "/admin/roles", "200", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListRoles(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodGet, "/admin/roles", "100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Roles []struct {
			Name string `json:"name"`
		} `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Roles, 2)
}

func TestCreateRoleConflict(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodPost, "/admin/roles", "100", map[string]any{"name": "Member"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteRoleInUse(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodDelete, "/admin/roles/2", "100", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteUnknownRole(t *testing.T) {
	srv := newServer(t)
	resp := do(t, srv, http.MethodDelete, "/admin/roles/42", "100", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGrantRoundTrip(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPut, "/admin/roles/2/grants/task.entry", "100",
		map[string]any{"canRead": false, "canWrite": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/admin/roles/2/grants", "100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Grants []rbac.Grant `json:"grants"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Grants, 1)
	require.True(t, body.Grants[0].CanRead, "write must imply read")
	require.True(t, body.Grants[0].CanWrite)

	resp = do(t, srv, http.MethodDelete, "/admin/roles/2/grants/task.entry", "100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
