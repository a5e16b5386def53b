package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/store"
	"github.com/hpungsan/unicorns/internal/unicorn"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "unicorns", "new", "help"
}

// Column is one sortable table header.
type Column struct {
	Field     store.SortField
	Label     string
	Active    bool
	Indicator string
}

// Row is one table row: the record plus its display status.
type Row struct {
	unicorn.Unicorn
	StatusLabel string
	StatusClass string
	Deleting    bool
}

// ListPageData is the template data for the unicorn list page.
type ListPageData struct {
	PageData
	Rows         []Row
	Columns      []Column
	Pages        []int
	CurrentPage  int
	TotalPages   int
	HasRecords   bool
	PastLastPage bool
	Loading      bool
	Error        string
}

// FormPageData is the template data for the add/edit form.
type FormPageData struct {
	PageData
	Form    unicornForm
	Errors  map[string]string
	Editing bool
	Action  string
	Busy    bool
	Error   string
}

// HelpPageData is the template data for the help page.
type HelpPageData struct {
	PageData
	Content template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       logger.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log logger.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"list":  "list.html",
		"form":  "form.html",
		"help":  "help.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	if log == nil {
		log = logger.GetDefault()
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For htmx requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if isHTMX(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error("template execution error", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var uErr *errors.UnicornError
	if !stderrors.As(err, &uErr) {
		uErr = errors.NewInternal(err)
	}

	status := uErr.Status
	message := uErr.Message

	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, errorBody(uErr))
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// errorBody is the JSON error envelope.
func errorBody(e *errors.UnicornError) map[string]any {
	body := map[string]any{
		"code":    string(e.Code),
		"message": e.Message,
		"status":  e.Status,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return map[string]any{"error": body}
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md []byte) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert(md, &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(string(md)))
	}
	return template.HTML(buf.String())
}

func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

func wantsJSON(req *http.Request) bool {
	return req != nil && strings.Contains(req.Header.Get("Accept"), "application/json")
}

// listPage builds the list template data from a container snapshot.
func listPage(st store.State, version string) ListPageData {
	rows := make([]Row, 0, len(st.Page))
	for _, u := range st.Page {
		rows = append(rows, Row{
			Unicorn:     u,
			StatusLabel: u.Label(),
			StatusClass: string(u.Status()),
			Deleting:    st.Deleting[u.ID],
		})
	}

	columns := make([]Column, 0, len(store.SortFields))
	for _, f := range store.SortFields {
		c := Column{Field: f, Label: columnLabel(f), Active: f == st.SortField}
		if c.Active {
			c.Indicator = "▲"
			if st.SortOrder == store.Desc {
				c.Indicator = "▼"
			}
		}
		columns = append(columns, c)
	}

	pages := make([]int, st.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}

	return ListPageData{
		PageData: PageData{
			Title:   "Unicorns",
			Version: version,
			Nav:     "unicorns",
		},
		Rows:         rows,
		Columns:      columns,
		Pages:        pages,
		CurrentPage:  st.CurrentPage,
		TotalPages:   st.TotalPages,
		HasRecords:   st.HasRecords,
		PastLastPage: st.HasRecords && len(st.Page) == 0,
		Loading:      st.Loading,
		Error:        st.Error,
	}
}

func columnLabel(f store.SortField) string {
	switch f {
	case store.SortByAge:
		return "Age"
	case store.SortByColor:
		return "Color"
	default:
		return "Name"
	}
}
