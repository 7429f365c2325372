package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/siteops/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/siteops/internal/application"
	"github.com/atvirokodosprendimai/siteops/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api_test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rec := metrics.NewRecorder(prometheus.NewRegistry())
	svc := application.NewERPService(sqlite.NewStore(db), rec)
	require.NoError(t, svc.BootstrapAdmin(ctx, "admin@example.com", "secret"))

	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := httptest.NewServer(NewRouter(svc, Options{Logger: log, Metrics: rec}))
	t.Cleanup(srv.Close)

	api := &testAPI{t: t, server: srv}
	var login struct {
		Token string `json:"token"`
	}
	status := api.do(http.MethodPost, "/api/auth/login", map[string]any{"email": "admin@example.com", "password": "secret"}, &login)
	require.Equal(t, http.StatusOK, status)
	api.token = login.Token
	return api
}

func (a *testAPI) do(method, path string, body any, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return a.send(req, out)
}

func (a *testAPI) send(req *http.Request, out any) int {
	a.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPIRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/sites", nil, nil))
}

func TestAPIAssignmentFlow(t *testing.T) {
	api := newTestAPI(t)

	var site struct{ ID uint }
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/sites", map[string]any{"code": "CH-1", "name": "Pod"}, &site))

	var eq struct{ ID uint }
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/equipment", map[string]any{
		"code": "EXC-01", "hourly_usage_cost": "50.00", "per_100km_usage_cost": "20.00",
	}, &eq))

	in := map[string]any{"date": "2024-03-04", "equipment_id": eq.ID, "site_id": site.ID, "half_day_slot": 1, "hours_worked": "8", "km_driven": "150"}
	var created struct {
		UsageCost string `json:"usage_cost"`
	}
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/assignments", in, &created))
	assert.Equal(t, "430.00", decimal.RequireFromString(created.UsageCost).StringFixed(2))

	var dup map[string]any
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/assignments", in, &dup))

	in["equipment_id"] = 999
	in["half_day_slot"] = 2
	var missing map[string]any
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/assignments", in, &missing))
	assert.Equal(t, "equipment", missing["entity"])

	in["half_day_slot"] = 5
	var bad map[string]any
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/assignments", in, &bad))
	assert.Equal(t, "half_day_slot", bad["field"])

	var list []map[string]any
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/assignments?from=2024-03-01", nil, &list))
	assert.Len(t, list, 1)
}

func TestAPIListsHideDeactivatedRows(t *testing.T) {
	api := newTestAPI(t)

	var site struct{ ID uint }
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/sites", map[string]any{"code": "CH-9", "name": "Old yard"}, &site))
	var eq struct{ ID uint }
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/equipment", map[string]any{"code": "TRK-9"}, &eq))
	var person struct{ ID uint }
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/personnel", map[string]any{"matricule": "M-9", "full_name": "Ion Pop"}, &person))

	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/sites/"+strconv.FormatUint(uint64(site.ID), 10), nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/equipment/"+strconv.FormatUint(uint64(eq.ID), 10), nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/personnel/"+strconv.FormatUint(uint64(person.ID), 10), nil, nil))

	for _, path := range []string{"/api/sites", "/api/equipment", "/api/personnel"} {
		var list []map[string]any
		require.Equal(t, http.StatusOK, api.do(http.MethodGet, path, nil, &list))
		assert.Empty(t, list, path)

		require.Equal(t, http.StatusOK, api.do(http.MethodGet, path+"?active=all", nil, &list))
		assert.Len(t, list, 1, path)

		require.Equal(t, http.StatusOK, api.do(http.MethodGet, path+"?active=false", nil, &list))
		require.Len(t, list, 1, path)
		assert.Equal(t, false, list[0]["active"])
	}

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/sites?active=maybe", nil, nil))
}

func TestAPIResolveReferenceIsIdempotent(t *testing.T) {
	api := newTestAPI(t)

	var first, second struct{ ID uint }
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/references/client/resolve", map[string]any{"key": "Acme"}, &first))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/references/client/resolve", map[string]any{"key": "Acme"}, &second))
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/references/planet/resolve", map[string]any{"key": "Mars"}, nil))
}

func TestAPIImportCSV(t *testing.T) {
	api := newTestAPI(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "sites.csv")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("ChantierID,Intitule,TypeSite\nCH-1,Pod,USINE\n,Missing,\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/imports/sites", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+api.token)

	var report struct {
		Created int `json:"created"`
		Skipped int `json:"skipped"`
	}
	require.Equal(t, http.StatusOK, api.send(req, &report))
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/references/division/resolve", map[string]any{"key": "Productie"}, nil))

	resp, err := http.Get(api.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(api.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "siteops_reference_resolutions_total")
}
