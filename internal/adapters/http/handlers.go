package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/siteops/internal/adapters/spreadsheet"
	"github.com/atvirokodosprendimai/siteops/internal/application"
	"github.com/atvirokodosprendimai/siteops/internal/domain"
	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Malformed("id", "must be a positive integer")
	}
	return uint(id), nil
}

func queryUint(r *http.Request, name string) (*uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, domain.Malformed(name, "must be a positive integer")
	}
	id := uint(v)
	return &id, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, domain.Malformed(name, "must be a date formatted YYYY-MM-DD")
	}
	return &t, nil
}

func (h *Handler) handleListReferences(w http.ResponseWriter, r *http.Request) {
	kind := domain.ReferenceKind(chi.URLParam(r, "kind"))
	items, err := h.service.ListReferences(r.Context(), kind, r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type resolveRequest struct {
	Key string `json:"key"`
	domain.ReferenceAttrs
}

func (h *Handler) handleResolveReference(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind := domain.ReferenceKind(chi.URLParam(r, "kind"))
	ref, err := h.service.ResolveOrCreate(r.Context(), kind, req.Key, req.ReferenceAttrs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) handleListSites(w http.ResponseWriter, r *http.Request) {
	active, err := application.ActiveFilter(r.URL.Query().Get("active"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.service.ListSites(r.Context(), domain.SiteFilter{
		SiteType: r.URL.Query().Get("type"),
		Status:   r.URL.Query().Get("status"),
		Active:   active,
		Limit:    queryLimit(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.service.GetSite(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req application.SiteInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.CreateSite(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req application.SiteUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.UpdateSite(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeactivateSite(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	active, err := application.ActiveFilter(r.URL.Query().Get("active"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.service.ListEquipment(r.Context(), domain.EquipmentFilter{
		CategoryCode: r.URL.Query().Get("category"),
		Active:       active,
		Limit:        queryLimit(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.service.GetEquipment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req application.EquipmentInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.CreateEquipment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req application.EquipmentUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.UpdateEquipment(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeactivateEquipment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListPersons(w http.ResponseWriter, r *http.Request) {
	active, err := application.ActiveFilter(r.URL.Query().Get("active"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.service.ListPersons(r.Context(), domain.PersonFilter{
		DivisionName: r.URL.Query().Get("division"),
		Active:       active,
		Limit:        queryLimit(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.service.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req application.PersonInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.CreatePerson(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req application.PersonUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.UpdatePerson(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeactivatePerson(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	var (
		filter domain.AssignmentFilter
		err    error
	)
	if filter.From, err = queryDate(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.SiteID, err = queryUint(r, "site_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.EquipmentID, err = queryUint(r, "equipment_id"); err != nil {
		writeError(w, r, err)
		return
	}
	filter.Limit = queryLimit(r)

	items, err := h.service.ListAssignments(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req application.CreateAssignmentInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.CreateAssignment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.service.WriteAudit(r.Context(), actorID(r.Context()), "assignment.create", "assignment", &v.ID, v.Date.Format(dateLayout))
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	var (
		filter domain.ExpenseFilter
		err    error
	)
	if filter.EquipmentID, err = queryUint(r, "equipment_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	filter.Limit = queryLimit(r)

	items, err := h.service.ListExpenses(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req application.ExpenseInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.CreateExpense(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// handleImport takes a multipart upload in the "file" field.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	dataset := domain.Dataset(chi.URLParam(r, "dataset"))
	if !dataset.Valid() {
		writeError(w, r, domain.Malformed("dataset", "unknown dataset "+string(dataset)))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(h.opts.MaxUploadSize); err != nil {
		writeError(w, r, domain.Malformed("file", "invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.Malformed("file", "is required"))
		return
	}
	defer file.Close()

	records, err := spreadsheet.Read(header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.service.Import(r.Context(), dataset, records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
