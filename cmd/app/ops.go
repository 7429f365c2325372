package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/atvirokodosprendimai/siteops/internal/adapters/spreadsheet"
	"github.com/go-faster/errors"
)

// endpoint names the same operation on both transports.
type endpoint struct {
	rpc    string
	method string
	path   string
}

// invoke runs ep over the configured transport. params go to the rpc call
// as-is; over HTTP they become the JSON body, or the query string for GET.
// Keys listed in httpNames are renamed for the query string.
func invoke(ctx context.Context, cfg cliConfig, ep endpoint, params map[string]any, httpNames map[string]string, out any) error {
	if cfg.Transport == transportUDS {
		return newRPCClient(cfg.Socket, cfg.Token).call(ctx, ep.rpc, params, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	switch ep.method {
	case http.MethodGet, http.MethodDelete:
		return client.request(ctx, ep.method, ep.path, toQuery(params, httpNames), nil, out)
	default:
		return client.request(ctx, ep.method, ep.path, nil, params, out)
	}
}

func toQuery(params map[string]any, names map[string]string) url.Values {
	q := url.Values{}
	for key, value := range params {
		var s string
		switch v := value.(type) {
		case nil:
			continue
		case string:
			s = v
		case int:
			s = strconv.Itoa(v)
		case uint:
			s = strconv.FormatUint(uint64(v), 10)
		case *uint:
			if v == nil {
				continue
			}
			s = strconv.FormatUint(uint64(*v), 10)
		case *bool:
			if v == nil {
				continue
			}
			s = strconv.FormatBool(*v)
		default:
			continue
		}
		if s == "" {
			continue
		}
		if renamed, ok := names[key]; ok {
			key = renamed
		}
		q.Set(key, s)
	}
	return q
}

func idPath(prefix string, id uint) string {
	return prefix + "/" + strconv.FormatUint(uint64(id), 10)
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	params := map[string]any{"email": email, "password": password, "token_name": tokenName}
	if cfg.Transport == transportUDS {
		return newRPCClient(cfg.Socket, "").call(ctx, "auth.login", params, out)
	}
	params["mode"] = "token"
	return newAPIClient(cfg.Server, "").request(ctx, http.MethodPost, "/api/auth/login", nil, params, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	return invoke(ctx, cfg, endpoint{"auth.whoami", http.MethodGet, "/api/auth/whoami"}, nil, nil, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == transportUDS {
		return nil
	}
	return newAPIClient(cfg.Server, cfg.Token).request(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

func doListReferences(ctx context.Context, cfg cliConfig, kind, q string, limit int, out any) error {
	params := map[string]any{"kind": kind, "q": q, "limit": limit}
	ep := endpoint{"refs.list", http.MethodGet, "/api/references/" + url.PathEscape(kind)}
	if cfg.Transport != transportUDS {
		delete(params, "kind")
	}
	return invoke(ctx, cfg, ep, params, nil, out)
}

func doResolveReference(ctx context.Context, cfg cliConfig, kind string, params map[string]any, out any) error {
	if cfg.Transport == transportUDS {
		params["kind"] = kind
	}
	ep := endpoint{"refs.resolve", http.MethodPost, "/api/references/" + url.PathEscape(kind) + "/resolve"}
	return invoke(ctx, cfg, ep, params, nil, out)
}

// resource groups the CRUD endpoints of one catalog.
type resource struct {
	rpcPrefix string
	path      string
	queryKeys map[string]string
}

var (
	sitesResource     = resource{rpcPrefix: "sites", path: "/api/sites", queryKeys: map[string]string{"site_type": "type"}}
	equipmentResource = resource{rpcPrefix: "equipment", path: "/api/equipment"}
	personnelResource = resource{rpcPrefix: "personnel", path: "/api/personnel"}
)

func (res resource) list(ctx context.Context, cfg cliConfig, filter map[string]any, out any) error {
	return invoke(ctx, cfg, endpoint{res.rpcPrefix + ".list", http.MethodGet, res.path}, filter, res.queryKeys, out)
}

func (res resource) get(ctx context.Context, cfg cliConfig, id uint, out any) error {
	return invoke(ctx, cfg, endpoint{res.rpcPrefix + ".get", http.MethodGet, idPath(res.path, id)}, idParam(cfg, id), nil, out)
}

func (res resource) create(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	return invoke(ctx, cfg, endpoint{res.rpcPrefix + ".create", http.MethodPost, res.path}, in, nil, out)
}

func (res resource) update(ctx context.Context, cfg cliConfig, id uint, in map[string]any, out any) error {
	if cfg.Transport == transportUDS {
		in["id"] = id
	}
	return invoke(ctx, cfg, endpoint{res.rpcPrefix + ".update", http.MethodPatch, idPath(res.path, id)}, in, nil, out)
}

func (res resource) remove(ctx context.Context, cfg cliConfig, id uint) error {
	return invoke(ctx, cfg, endpoint{res.rpcPrefix + ".delete", http.MethodDelete, idPath(res.path, id)}, idParam(cfg, id), nil, nil)
}

func idParam(cfg cliConfig, id uint) map[string]any {
	if cfg.Transport == transportUDS {
		return map[string]any{"id": id}
	}
	return nil
}

func doListAssignments(ctx context.Context, cfg cliConfig, filter map[string]any, out any) error {
	return invoke(ctx, cfg, endpoint{"assignments.list", http.MethodGet, "/api/assignments"}, filter, nil, out)
}

func doCreateAssignment(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	return invoke(ctx, cfg, endpoint{"assignments.create", http.MethodPost, "/api/assignments"}, in, nil, out)
}

func doListExpenses(ctx context.Context, cfg cliConfig, filter map[string]any, out any) error {
	return invoke(ctx, cfg, endpoint{"expenses.list", http.MethodGet, "/api/expenses"}, filter, nil, out)
}

func doCreateExpense(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	return invoke(ctx, cfg, endpoint{"expenses.create", http.MethodPost, "/api/expenses"}, in, nil, out)
}

func doListAuditLogs(ctx context.Context, cfg cliConfig, limit int, out any) error {
	return invoke(ctx, cfg, endpoint{"audit.list", http.MethodGet, "/api/audit/logs"}, map[string]any{"limit": limit}, nil, out)
}

// doImport uploads the file over HTTP. Over the socket the file is read
// here and the parsed records are sent instead.
func doImport(ctx context.Context, cfg cliConfig, dataset, filename string, out any) error {
	if _, err := spreadsheet.FormatOf(filename); err != nil {
		return err
	}
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "open import file")
	}
	defer func() { _ = f.Close() }()

	if cfg.Transport != transportUDS {
		return newAPIClient(cfg.Server, cfg.Token).upload(ctx, "/api/imports/"+url.PathEscape(dataset), filename, f, out)
	}
	records, err := spreadsheet.Read(filename, f)
	if err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}
	return newRPCClient(cfg.Socket, cfg.Token).call(ctx, "import.run", map[string]any{"dataset": dataset, "records": records}, out)
}
