package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/application"
	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/atvirokodosprendimai/siteops/internal/logging"
	"github.com/atvirokodosprendimai/siteops/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const sessionCookieName = "siteops_session"

type contextKey string

const identityKey contextKey = "identity"

type Options struct {
	Logger        logrus.FieldLogger
	Metrics       *metrics.Recorder
	CORSOrigins   []string
	SessionTTL    time.Duration
	MaxUploadSize int64
}

type Handler struct {
	service *application.ERPService
	opts    Options
}

func NewRouter(service *application.ERPService, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 32 << 20
	}
	h := &Handler{service: service, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", opts.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleAPILogin)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/auth/whoami", h.handleAPIWhoAmI)
		api.With(h.requireAuthAPI(application.PermRead)).Post("/auth/logout", h.handleAPILogout)

		api.With(h.requireAuthAPI(application.PermRead)).Get("/access/users", h.handleAPIListUsers)
		api.With(h.requireAuthAPI("*")).Post("/access/users", h.handleAPICreateUser)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/access/roles", h.handleAPIListRoles)
		api.With(h.requireAuthAPI("*")).Post("/access/assign-role", h.handleAPIAssignRole)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/audit/logs", h.handleAPIListAuditLogs)

		api.Group(func(read chi.Router) {
			read.Use(h.requireAuthAPI(application.PermRead))
			read.Get("/references/{kind}", h.handleListReferences)
			read.Get("/sites", h.handleListSites)
			read.Get("/sites/{id}", h.handleGetSite)
			read.Get("/equipment", h.handleListEquipment)
			read.Get("/equipment/{id}", h.handleGetEquipment)
			read.Get("/personnel", h.handleListPersons)
			read.Get("/personnel/{id}", h.handleGetPerson)
			read.Get("/assignments", h.handleListAssignments)
			read.Get("/expenses", h.handleListExpenses)
		})

		api.Group(func(write chi.Router) {
			write.Use(h.requireAuthAPI(application.PermWrite))
			write.Post("/references/{kind}/resolve", h.handleResolveReference)
			write.Post("/sites", h.handleCreateSite)
			write.Patch("/sites/{id}", h.handleUpdateSite)
			write.Delete("/sites/{id}", h.handleDeleteSite)
			write.Post("/equipment", h.handleCreateEquipment)
			write.Patch("/equipment/{id}", h.handleUpdateEquipment)
			write.Delete("/equipment/{id}", h.handleDeleteEquipment)
			write.Post("/personnel", h.handleCreatePerson)
			write.Patch("/personnel/{id}", h.handleUpdatePerson)
			write.Delete("/personnel/{id}", h.handleDeletePerson)
			write.Post("/assignments", h.handleCreateAssignment)
			write.Post("/expenses", h.handleCreateExpense)
			write.Post("/imports/{dataset}", h.handleImport)
		})
	})

	return r
}

// requestLogger attaches a request-scoped entry to the context and logs
// every request once it completes.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		entry := h.opts.Logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), entry)))

		entry.WithFields(logrus.Fields{
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

func (h *Handler) requireAuthAPI(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := h.authenticateRequest(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			if !h.service.Can(identity, permission) {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = application.WithActor(ctx, identity.User.ID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithField("user_id", identity.User.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.service.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.service.LoginWithSession(r.Context(), req.Email, req.Password, h.opts.SessionTTL)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "mode": "session"})
		return
	}

	u, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "token": token, "mode": "token"})
}

func (h *Handler) handleAPIWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": identity.User.ID, "email": identity.User.Email, "permissions": perms})
}

func (h *Handler) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "bearer ") {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   uint   `json:"role_id"`
}

func (h *Handler) handleAPICreateUser(w http.ResponseWriter, r *http.Request) {
	var req apiCreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.CreateUser(r.Context(), req.Email, req.Password, req.RoleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.service.WriteAudit(r.Context(), actorID(r.Context()), "access.user.create", "user", &v.ID, v.Email)
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleAPIListRoles(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListRoles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiAssignRoleRequest struct {
	UserID uint `json:"user_id"`
	RoleID uint `json:"role_id"`
}

func (h *Handler) handleAPIAssignRole(w http.ResponseWriter, r *http.Request) {
	var req apiAssignRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.AssignRole(r.Context(), req.UserID, req.RoleID); err != nil {
		writeError(w, r, err)
		return
	}
	h.service.WriteAudit(r.Context(), actorID(r.Context()), "access.role.assign", "user", &req.UserID, strconv.FormatUint(uint64(req.RoleID), 10))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAuditLogs(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func actorID(ctx context.Context) *uint {
	identity, ok := identityFromContext(ctx)
	if !ok {
		return nil
	}
	return &identity.User.ID
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusOf maps the domain error taxonomy onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSlot), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := map[string]any{"error": err.Error()}

	var malformed *domain.MalformedInputError
	if errors.As(err, &malformed) && malformed.Field != "" {
		body["field"] = malformed.Field
	}
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		body["entity"] = notFound.Kind
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return false
	}
	return true
}
