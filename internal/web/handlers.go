package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/hpungsan/unicorns/internal/config"
	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/store"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *store.Store
	cfg      *config.Config
	renderer *Renderer
	log      logger.Logger
	help     template.HTML
}

// HandleList handles GET /unicorns: the current page of the sorted list.
// The collection is fetched on first use and whenever ?refresh=1 is given.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.store.Loaded() || parseBoolParam(r, "refresh") {
		// A failure is kept in the container and shown as a banner.
		_ = h.store.Refresh(r.Context())
	}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("page must be an integer"))
			return
		}
		h.store.SetPage(page)
	}

	st := h.store.Snapshot()

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, st)
		return
	}

	h.renderer.renderPage(w, r, "list", listPage(st, h.renderer.version))
}

// HandleSort handles POST /unicorns/sort: select or toggle the sort column.
func (h *Handlers) HandleSort(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	field, ok := store.ParseSortField(r.FormValue("field"))
	if !ok {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("field must be one of: name, age, color"))
		return
	}
	h.store.SetSort(field)

	h.redirect(w, r, "/unicorns", map[string]any{
		"sort_field": h.store.SortField(),
		"sort_order": h.store.SortOrder(),
	})
}

// HandleNew handles GET /unicorns/new: the empty add form.
func (h *Handlers) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "form", h.formPage("", unicornForm{}, nil, ""))
}

// HandleEdit handles GET /unicorns/{id}/edit: the form pre-populated with the record.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	u, ok := h.store.Find(id)
	if !ok && !h.store.Loaded() {
		_ = h.store.Refresh(r.Context())
		u, ok = h.store.Find(id)
	}
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}

	h.renderer.renderPage(w, r, "form", h.formPage(id, formFrom(u), nil, ""))
}

// HandleCreate handles POST /unicorns.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// HandleUpdate handles POST /unicorns/{id}.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, r.PathValue("id"))
}

// save validates the submitted form and creates (empty id) or replaces the record.
func (h *Handlers) save(w http.ResponseWriter, r *http.Request, id string) {
	form, err := parseUnicornForm(r)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if fieldErrs := form.validate(); fieldErrs != nil {
		if wantsJSON(r) {
			vErr := errors.NewValidation(fieldErrs)
			renderJSON(w, vErr.Status, errorBody(vErr))
			return
		}
		h.renderer.renderPageStatus(w, r, http.StatusUnprocessableEntity, "form", h.formPage(id, form, fieldErrs, ""))
		return
	}

	if !h.store.Save(r.Context(), form.toUnicorn(id)) {
		failure := errors.NewActionFailed(h.store.Err())
		if wantsJSON(r) || isHTMX(r) {
			h.renderer.renderError(w, r, failure)
			return
		}
		h.renderer.renderPageStatus(w, r, failure.Status, "form", h.formPage(id, form, nil, failure.Message))
		return
	}

	h.redirect(w, r, "/unicorns", map[string]any{"saved": true, "id": id})
}

// HandleDelete handles DELETE /unicorns/{id} and POST /unicorns/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if !h.store.Delete(r.Context(), id) {
		h.renderer.renderError(w, r, errors.NewActionFailed(h.store.Err()))
		return
	}

	h.redirect(w, r, "/unicorns", map[string]any{"deleted": true, "id": id})
}

// HandleHelp handles GET /help.
func (h *Handlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "help", HelpPageData{
		PageData: PageData{
			Title:   "Help",
			Version: h.renderer.version,
			Nav:     "help",
		},
		Content: h.help,
	})
}

// redirect finishes a successful mutation: HX-Redirect for htmx, a JSON body
// for API clients, and a 303 to `to` for plain form posts.
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, to string, body map[string]any) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, body)
		return
	}

	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handlers) formPage(id string, form unicornForm, fieldErrs map[string]string, failure string) FormPageData {
	data := FormPageData{
		PageData: PageData{
			Title:   "Add Unicorn",
			Version: h.renderer.version,
			Nav:     "new",
		},
		Form:   form,
		Errors: fieldErrs,
		Action: "/unicorns",
		Busy:   h.store.Creating(),
		Error:  failure,
	}
	if id != "" {
		data.Title = "Edit Unicorn"
		data.Nav = "unicorns"
		data.Editing = true
		data.Action = "/unicorns/" + id
		data.Busy = h.store.Editing()
	}
	return data
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
