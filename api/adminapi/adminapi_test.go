package adminapi

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage"
	"github.com/keygate/keygate/storage/model"
)

const prefix = "/api/v1/admin"

type testAPI struct {
	app   *fiber.App
	svc   *service.Service
	store *storage.Storage
	user  string
	pass  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := storage.NewStorage(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
			UsersHash: storage.Argon2idParams{
				Time:        1,
				MemoryKiB:   1024,
				Parallelism: 1,
				KeyLen:      16,
				SaltLen:     8,
			},
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	cache.UseMemoryCache()

	conf := service.DefaultConfig()
	conf.StatsLifetime = 0
	svc := service.New(store, conf)
	app := fiber.New()
	require.NoError(t, Register(app.Group(prefix), "http://localhost:8080", svc, store.Backends(), nil))
	return &testAPI{
		app:   app,
		svc:   svc,
		store: store,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, prefix+path, r)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if a.user != "" {
		req.Header.Set(
			fiber.HeaderAuthorization,
			"Basic "+base64.StdEncoding.EncodeToString([]byte(a.user+":"+a.pass)),
		)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (a *testAPI) createKeys(t *testing.T, n int) []string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/keys", `{"quantity":`+itoa(n)+`}`)
	require.Equal(t, http.StatusCreated, status, body)
	var ids []string
	for _, id := range body["keys"].([]any) {
		ids = append(ids, id.(string))
	}
	return ids
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func TestDocs(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, prefix+"/openapi.yaml", nil)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http://localhost:8080")
	assert.Contains(t, string(raw), "basicAuth")

	req = httptest.NewRequest(http.MethodGet, prefix+"/docs", nil)
	resp, err = api.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndListKeys(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(t, http.MethodPost, "/keys", "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["keys"], 1)
	assert.EqualValues(t, 30, body["expiration_days"])

	api.createKeys(t, 4)
	status, body = api.do(t, http.MethodGet, "/keys?per_page=2&page=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, body["total"])
	assert.EqualValues(t, 3, body["pages"])
	assert.Len(t, body["keys"], 2)
	first := body["keys"].([]any)[0].(map[string]any)
	assert.Equal(t, "unused", first["status"])
	assert.NotContains(t, first, "version")

	status, body = api.do(t, http.MethodGet, "/keys?status=active", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
	assert.Empty(t, body["keys"])
}

func TestKeyValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	for _, tc := range []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/keys", `{"quantity":0}`, http.StatusBadRequest},
		{http.MethodPost, "/keys", `{"quantity":1001}`, http.StatusBadRequest},
		{http.MethodPost, "/keys", `{"expiration_days":366}`, http.StatusBadRequest},
		{http.MethodPost, "/keys", `{"quantity":`, http.StatusBadRequest},
		{http.MethodGet, "/keys?status=bogus", "", http.StatusBadRequest},
		{http.MethodGet, "/keys/1234", "", http.StatusBadRequest},
		{http.MethodGet, "/keys/12345678", "", http.StatusNotFound},
		{http.MethodDelete, "/keys/12345678", "", http.StatusNotFound},
		{http.MethodPost, "/keys/12345678/pause", "", http.StatusNotFound},
		{http.MethodGet, "/logs?action=NOPE", "", http.StatusBadRequest},
	} {
		status, body := api.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.status, status, "%s %s", tc.method, tc.path)
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["error"])
	}
}

func TestKeyActions(t *testing.T) {
	api := newTestAPI(t)
	id := api.createKeys(t, 1)[0]

	status, body := api.do(t, http.MethodPost, "/keys/"+id+"/pause", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paused", body["key"].(map[string]any)["status"])

	status, body = api.do(t, http.MethodPost, "/keys/"+id+"/resume", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "unused", body["key"].(map[string]any)["status"])

	status, body = api.do(t, http.MethodPost, "/keys/"+id+"/deactivate", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "inactive", body["key"].(map[string]any)["status"])

	status, _ = api.do(t, http.MethodPost, "/keys/"+id+"/reactivate", "")
	require.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodPost, "/keys/"+id+"/reset-hwid", "")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["key"].(map[string]any)["hwid"])

	status, body = api.do(t, http.MethodGet, "/keys/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["key"].(map[string]any)["key_id"])
	assert.Len(t, body["recent_logs"], 6)

	status, _ = api.do(t, http.MethodDelete, "/keys/"+id, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(t, http.MethodGet, "/keys/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBulkPauseAndDeleteAll(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(t, http.MethodDelete, "/keys", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["count"])

	api.createKeys(t, 3)
	status, body = api.do(t, http.MethodPost, "/keys/pause-all", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])

	status, body = api.do(t, http.MethodGet, "/keys?status=paused", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["total"])

	status, body = api.do(t, http.MethodPost, "/keys/resume-all", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])

	status, body = api.do(t, http.MethodDelete, "/keys", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])
}

func TestLogsAndStats(t *testing.T) {
	api := newTestAPI(t)
	id := api.createKeys(t, 2)[0]
	_, err := api.svc.Login(t.Context(), service.LoginRequest{Key: id, HWID: "hw-1"})
	require.NoError(t, err)
	_, err = api.svc.Login(t.Context(), service.LoginRequest{Key: id, HWID: "hw-2"})
	require.NoError(t, err)

	status, body := api.do(t, http.MethodGet, "/logs?key="+id+"&action=LOGIN_FAILED", "")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, body["total"])
	ev := body["logs"].([]any)[0].(map[string]any)
	assert.Equal(t, "hwid mismatch", ev["reason"])

	status, body = api.do(t, http.MethodGet, "/logs?success_only=true", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["total"])

	status, body = api.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, status)
	keys := body["keys"].(map[string]any)
	logins := body["logins"].(map[string]any)
	assert.EqualValues(t, 2, keys["total"])
	assert.EqualValues(t, 1, keys["active"])
	assert.EqualValues(t, 1, keys["unused"])
	assert.EqualValues(t, 2, logins["total"])
	assert.EqualValues(t, 50, logins["success_rate"])
}

func TestLoginSettingsEndpoints(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(t, http.MethodGet, "/settings/login", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["log_not_found"])

	status, _ = api.do(t, http.MethodPut, "/settings/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(t, http.MethodPut, "/settings/login", `{"log_not_found":false}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["log_not_found"])

	_, err := api.svc.Login(t.Context(), service.LoginRequest{Key: "00000001", HWID: "hw"})
	require.NoError(t, err)
	n, err := api.store.AuditStorage().Count(
		model.AuditQuery{Actions: []model.Action{model.ActionKeyNotFound}},
	)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, status, "open without users")

	status, body := api.do(t, http.MethodPost, "/users", `{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "admin", body["user"].(map[string]any)["username"])

	status, body = api.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing credentials", body["error"])

	api.user, api.pass = "admin", "wrong"
	status, _ = api.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	api.pass = "s3cret"
	status, _ = api.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.do(t, http.MethodPost, "/users", `{"username":"admin","password":"x"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = api.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["users"], 1)

	status, _ = api.do(t, http.MethodPut, "/users/admin", `{"disabled":true}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdaptServerURLPort(t *testing.T) {
	assert.Equal(t, "https://example.org:9000", adaptServerURLPort("https://example.org", 9000))
	assert.Equal(t, "http://localhost:9000/x", adaptServerURLPort("http://localhost:8080/x", 9000))
	assert.Equal(t, "", adaptServerURLPort("", 9000))
	assert.Equal(t, "http://localhost:8080", adaptServerURLPort("http://localhost:8080", 0))
}
