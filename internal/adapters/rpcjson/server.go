package rpcjson

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/application"
	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Error codes beyond the JSON-RPC 2.0 reserved ones.
const (
	CodeInvalidParams = -32602
	CodeNotFound      = -32004
	CodeDuplicateSlot = -32009
	CodeConflict      = -32010
	CodeUnauthorized  = 40100
	CodeForbidden     = 40300
	CodeInternal      = 50000
)

const dateLayout = "2006-01-02"

type Server struct {
	service  *application.ERPService
	log      logrus.FieldLogger
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.ERPService, log logrus.FieldLogger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "listen on rpc socket")
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, log: log, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		start := time.Now()
		entry := s.log.WithField("method", req.Method)
		ctx := logging.WithLogger(context.Background(), entry)
		resp := s.dispatch(ctx, req)
		if resp.Error != nil {
			entry = entry.WithField("code", resp.Error.Code)
		}
		entry.WithField("duration", time.Since(start).String()).Debug("rpc served")

		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

// method binds a permission to a handler. An empty permission only needs a
// valid token.
type method struct {
	permission string
	call       func(ctx context.Context, params json.RawMessage) (any, error)
}

func (s *Server) methods() map[string]method {
	read, write := application.PermRead, application.PermWrite
	return map[string]method{
		"auth.whoami": {"", s.whoAmI},

		"refs.list":    {read, s.listReferences},
		"refs.resolve": {write, s.resolveReference},

		"sites.list":   {read, s.listSites},
		"sites.get":    {read, byID(s.service.GetSite)},
		"sites.create": {write, withInput(s.service.CreateSite)},
		"sites.update": {write, withIDInput(s.service.UpdateSite)},
		"sites.delete": {write, deleteByID(s.service.DeactivateSite)},

		"equipment.list":   {read, s.listEquipment},
		"equipment.get":    {read, byID(s.service.GetEquipment)},
		"equipment.create": {write, withInput(s.service.CreateEquipment)},
		"equipment.update": {write, withIDInput(s.service.UpdateEquipment)},
		"equipment.delete": {write, deleteByID(s.service.DeactivateEquipment)},

		"personnel.list":   {read, s.listPersons},
		"personnel.get":    {read, byID(s.service.GetPerson)},
		"personnel.create": {write, withInput(s.service.CreatePerson)},
		"personnel.update": {write, withIDInput(s.service.UpdatePerson)},
		"personnel.delete": {write, deleteByID(s.service.DeactivatePerson)},

		"assignments.list":   {read, s.listAssignments},
		"assignments.create": {write, withInput(s.service.CreateAssignment)},
		"expenses.list":      {read, s.listExpenses},
		"expenses.create":    {write, withInput(s.service.CreateExpense)},

		"import.run": {write, s.runImport},
		"audit.list": {read, s.listAuditLogs},
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}
	if req.Method == "auth.login" {
		return s.handleAuthLogin(ctx, req)
	}

	m, ok := s.methods()[req.Method]
	if !ok {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
	identity, rpcResp, ok := s.authz(ctx, req, m.permission)
	if !ok {
		return rpcResp
	}
	ctx = context.WithValue(ctx, identityKey{}, identity)
	ctx = application.WithActor(ctx, identity.User.ID)

	result, err := m.call(ctx, req.Params)
	if err != nil {
		return s.errorResponse(ctx, req.ID, err)
	}
	return response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

type identityKey struct{}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, defaultString(p.TokenName, "rpc"), nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: CodeUnauthorized, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: CodeUnauthorized, Message: "unauthorized"}, ID: req.ID}, false
	}
	if permission != "" && !s.service.Can(identity, permission) {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: CodeForbidden, Message: "forbidden"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

func (s *Server) whoAmI(ctx context.Context, _ json.RawMessage) (any, error) {
	identity, _ := ctx.Value(identityKey{}).(domain.Identity)
	return map[string]any{"id": identity.User.ID, "email": identity.User.Email}, nil
}

type listParams struct {
	Q           string `json:"q"`
	Kind        string `json:"kind"`
	SiteType    string `json:"site_type"`
	Status      string `json:"status"`
	Category    string `json:"category"`
	Division    string `json:"division"`
	Active      any    `json:"active"`
	From        string `json:"from"`
	To          string `json:"to"`
	SiteID      *uint  `json:"site_id"`
	EquipmentID *uint  `json:"equipment_id"`
	Limit       int    `json:"limit"`
}

// active accepts true, false, "all" or nothing, the last meaning active
// rows only.
func (p listParams) active() (*bool, error) {
	switch v := p.Active.(type) {
	case nil:
		return application.ActiveFilter("")
	case bool:
		return &v, nil
	case string:
		return application.ActiveFilter(v)
	default:
		return nil, domain.Malformed("active", "must be true, false or all")
	}
}

func decodeList(raw json.RawMessage) (listParams, error) {
	var p listParams
	if !decodeParams(raw, &p) {
		return p, domain.Malformed("params", "invalid params")
	}
	return p, nil
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, domain.Malformed(field, "must be a date formatted YYYY-MM-DD")
	}
	return &t, nil
}

func (s *Server) listReferences(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListReferences(ctx, domain.ReferenceKind(p.Kind), p.Q, p.Limit)
}

func (s *Server) resolveReference(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Kind string `json:"kind"`
		Key  string `json:"key"`
		domain.ReferenceAttrs
	}
	if !decodeParams(raw, &p) {
		return nil, domain.Malformed("params", "invalid params")
	}
	return s.service.ResolveOrCreate(ctx, domain.ReferenceKind(p.Kind), p.Key, p.ReferenceAttrs)
}

func (s *Server) listSites(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	active, err := p.active()
	if err != nil {
		return nil, err
	}
	return s.service.ListSites(ctx, domain.SiteFilter{SiteType: p.SiteType, Status: p.Status, Active: active, Limit: p.Limit})
}

func (s *Server) listEquipment(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	active, err := p.active()
	if err != nil {
		return nil, err
	}
	return s.service.ListEquipment(ctx, domain.EquipmentFilter{CategoryCode: p.Category, Active: active, Limit: p.Limit})
}

func (s *Server) listPersons(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	active, err := p.active()
	if err != nil {
		return nil, err
	}
	return s.service.ListPersons(ctx, domain.PersonFilter{DivisionName: p.Division, Active: active, Limit: p.Limit})
}

func (s *Server) listAssignments(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	filter := domain.AssignmentFilter{SiteID: p.SiteID, EquipmentID: p.EquipmentID, Limit: p.Limit}
	if filter.From, err = parseOptionalDate("from", p.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseOptionalDate("to", p.To); err != nil {
		return nil, err
	}
	return s.service.ListAssignments(ctx, filter)
}

func (s *Server) listExpenses(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	filter := domain.ExpenseFilter{EquipmentID: p.EquipmentID, Limit: p.Limit}
	if filter.From, err = parseOptionalDate("from", p.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseOptionalDate("to", p.To); err != nil {
		return nil, err
	}
	return s.service.ListExpenses(ctx, filter)
}

func (s *Server) listAuditLogs(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListAuditLogs(ctx, p.Limit)
}

// runImport takes records already read by the caller.
func (s *Server) runImport(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Dataset string                `json:"dataset"`
		Records []domain.ImportRecord `json:"records"`
	}
	if !decodeParams(raw, &p) {
		return nil, domain.Malformed("params", "invalid params")
	}
	return s.service.Import(ctx, domain.Dataset(p.Dataset), p.Records)
}

func withInput[In, Out any](fn func(context.Context, In) (Out, error)) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in In
		if !decodeParams(raw, &in) {
			return nil, domain.Malformed("params", "invalid params")
		}
		return fn(ctx, in)
	}
}

type idParams struct {
	ID uint `json:"id"`
}

func decodeID(raw json.RawMessage) (uint, error) {
	var p idParams
	if !decodeParams(raw, &p) || p.ID == 0 {
		return 0, domain.Malformed("id", "must be a positive integer")
	}
	return p.ID, nil
}

func byID[Out any](fn func(context.Context, uint) (Out, error)) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		id, err := decodeID(raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, id)
	}
}

// withIDInput reads the id and the partial update from the same params
// object.
func withIDInput[In, Out any](fn func(context.Context, uint, In) (Out, error)) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		id, err := decodeID(raw)
		if err != nil {
			return nil, err
		}
		var in In
		if !decodeParams(raw, &in) {
			return nil, domain.Malformed("params", "invalid params")
		}
		return fn(ctx, id, in)
	}
}

func deleteByID(fn func(context.Context, uint) error) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		id, err := decodeID(raw)
		if err != nil {
			return nil, err
		}
		if err := fn(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: CodeInvalidParams, Message: "invalid params"}, ID: id}
}

// errorResponse maps the domain error taxonomy onto rpc codes.
func (s *Server) errorResponse(ctx context.Context, id any, err error) response {
	code := CodeInternal
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		code = CodeInvalidParams
	case errors.Is(err, domain.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, domain.ErrDuplicateSlot):
		code = CodeDuplicateSlot
	case errors.Is(err, domain.ErrConflict):
		code = CodeConflict
	case errors.Is(err, domain.ErrUnauthorized):
		code = CodeUnauthorized
	}
	msg := err.Error()
	if code == CodeInternal {
		logging.FromContext(ctx).WithError(err).Error("rpc call failed")
		msg = "internal error"
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: msg}, ID: id}
}
