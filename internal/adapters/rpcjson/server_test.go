package rpcjson

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/siteops/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/siteops/internal/application"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	t     *testing.T
	enc   *json.Encoder
	dec   *json.Decoder
	token string
	seq   int
}

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rpc_test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	svc := application.NewERPService(sqlite.NewStore(db), nil)
	require.NoError(t, svc.BootstrapAdmin(ctx, "admin@example.com", "secret"))

	// unix socket paths are length limited, keep it short
	dir, err := os.MkdirTemp("", "siteops")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	log := logrus.New()
	log.SetOutput(io.Discard)
	srv, err := Start(filepath.Join(dir, "rpc.sock"), svc, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("unix", filepath.Join(dir, "rpc.sock"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
	var login struct {
		Token string `json:"token"`
	}
	resp := c.call("auth.login", map[string]any{"email": "admin@example.com", "password": "secret"})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &login))
	c.token = login.Token
	return c
}

func (c *testClient) call(method string, params map[string]any) testResponse {
	c.t.Helper()
	c.seq++
	if c.token != "" {
		params["token"] = c.token
	}
	require.NoError(c.t, c.enc.Encode(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": c.seq}))
	var resp testResponse
	require.NoError(c.t, c.dec.Decode(&resp))
	return resp
}

func TestRPCAssignmentErrorsMapToCodes(t *testing.T) {
	c := newTestClient(t)

	var site, eq struct{ ID uint }
	resp := c.call("sites.create", map[string]any{"code": "CH-1", "name": "Pod"})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &site))

	resp = c.call("equipment.create", map[string]any{"code": "EXC-01", "hourly_usage_cost": "50", "per_100km_usage_cost": "20"})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &eq))

	in := map[string]any{"date": "2024-03-04", "equipment_id": eq.ID, "site_id": site.ID, "half_day_slot": 1, "hours_worked": "8", "km_driven": "150"}
	resp = c.call("assignments.create", in)
	require.Nil(t, resp.Error)

	resp = c.call("assignments.create", in)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeDuplicateSlot, resp.Error.Code)

	in["equipment_id"] = 404
	resp = c.call("assignments.create", in)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	in["half_day_slot"] = 0
	resp = c.call("assignments.create", in)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestRPCRequiresToken(t *testing.T) {
	c := newTestClient(t)
	c.token = ""
	resp := c.call("sites.list", map[string]any{"token": "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}

func TestRPCImportRecords(t *testing.T) {
	c := newTestClient(t)

	resp := c.call("import.run", map[string]any{
		"dataset": "equipment",
		"records": []map[string]any{
			{"line": 2, "values": map[string]string{"EquipID": "EQ-1", "Cout_Usage_1h_lei": "40"}},
			{"line": 3, "values": map[string]string{"EquipID": ""}},
		},
	})
	require.Nil(t, resp.Error)
	var report struct {
		Created int `json:"created"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &report))
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)

	resp = c.call("refs.list", map[string]any{"kind": "site"})
	require.Nil(t, resp.Error)
	var refs []map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &refs))
	require.Len(t, refs, 1)
	assert.Equal(t, "DEPOT-CENTRAL", refs[0]["key"])
}

func TestRPCListSitesHidesDeactivated(t *testing.T) {
	c := newTestClient(t)

	var site struct{ ID uint }
	resp := c.call("sites.create", map[string]any{"code": "CH-9", "name": "Old yard"})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &site))
	require.Nil(t, c.call("sites.delete", map[string]any{"id": site.ID}).Error)

	count := func(params map[string]any) int {
		resp := c.call("sites.list", params)
		require.Nil(t, resp.Error)
		var sites []map[string]any
		require.NoError(t, json.Unmarshal(resp.Result, &sites))
		return len(sites)
	}
	assert.Equal(t, 0, count(map[string]any{}))
	assert.Equal(t, 1, count(map[string]any{"active": "all"}))
	assert.Equal(t, 1, count(map[string]any{"active": false}))
	assert.Equal(t, 0, count(map[string]any{"active": true}))

	resp = c.call("sites.list", map[string]any{"active": 3})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestRPCUnknownMethod(t *testing.T) {
	c := newTestClient(t)
	resp := c.call("graph.trace", map[string]any{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}
