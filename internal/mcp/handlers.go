package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/unicorns/internal/config"
	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/store"
	"github.com/hpungsan/unicorns/internal/unicorn"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
	cfg   *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cfg *config.Config) *Handlers {
	return &Handlers{store: st, cfg: cfg}
}

// Request types for each tool

// ListRequest represents the arguments for unicorn_list.
type ListRequest struct {
	Sort    string `json:"sort,omitempty"`
	Order   string `json:"order,omitempty"`
	Page    int    `json:"page,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
	All     bool   `json:"all,omitempty"`
}

// SaveRequest represents the arguments for unicorn_save.
type SaveRequest struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name" validate:"required"`
	Age   *int   `json:"age" validate:"required,min=0"`
	Color string `json:"color" validate:"required"`
}

// DeleteRequest represents the arguments for unicorn_delete.
type DeleteRequest struct {
	ID  string   `json:"_id,omitempty"`
	IDs []string `json:"ids,omitempty"`
}

// StatusRequest represents the arguments for unicorn_status.
type StatusRequest struct {
	Age any `json:"age"`
}

// Output types

// Item is one unicorn with its derived status label.
type Item struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Age    *int   `json:"age"`
	Color  string `json:"color"`
	Status string `json:"status"`
}

// ListOutput is the unicorn_list result.
type ListOutput struct {
	Unicorns    []Item          `json:"unicorns"`
	CurrentPage int             `json:"current_page"`
	TotalPages  int             `json:"total_pages"`
	Total       int             `json:"total"`
	SortField   store.SortField `json:"sort_field"`
	SortOrder   store.SortOrder `json:"sort_order"`
	Error       string          `json:"error,omitempty"`
}

// Handler implementations

// HandleList handles the unicorn_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Sort != "" || input.Order != "" {
		field := h.store.SortField()
		if input.Sort != "" {
			f, ok := store.ParseSortField(input.Sort)
			if !ok {
				return errorResult(errors.NewInvalidRequest("sort must be one of: name, age, color")), nil
			}
			field = f
		}
		order := store.Asc
		if input.Order != "" {
			o, ok := store.ParseSortOrder(input.Order)
			if !ok {
				return errorResult(errors.NewInvalidRequest("order must be one of: asc, desc")), nil
			}
			order = o
		}
		h.store.SortBy(field, order)
	}

	if input.Page < 0 {
		return errorResult(errors.NewInvalidRequest("page must be 1 or more")), nil
	}
	if input.Page > 0 {
		h.store.SetPage(input.Page)
	}

	if input.Refresh || !h.store.Loaded() {
		if err := h.store.Refresh(ctx); err != nil && !h.store.Loaded() {
			return errorResult(errors.NewActionFailed(h.store.Err())), nil
		}
	}

	st := h.store.Snapshot()
	page := st.Page
	if input.All {
		page = h.store.Sorted()
	}

	return successResult(ListOutput{
		Unicorns:    toItems(page),
		CurrentPage: st.CurrentPage,
		TotalPages:  st.TotalPages,
		Total:       len(st.Records),
		SortField:   st.SortField,
		SortOrder:   st.SortOrder,
		Error:       st.Error,
	})
}

// HandleRefresh handles the unicorn_refresh tool call.
func (h *Handlers) HandleRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.store.Refresh(ctx); err != nil {
		return errorResult(errors.NewActionFailed(h.store.Err())), nil
	}

	return successResult(map[string]any{
		"count":       len(h.store.Records()),
		"total_pages": h.store.TotalPages(),
	})
}

// HandleSave handles the unicorn_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	input.Color = strings.TrimSpace(input.Color)

	if fields := validateSave(input); fields != nil {
		return errorResult(errors.NewValidation(fields)), nil
	}

	u := unicorn.Unicorn{
		ID:    input.ID,
		Name:  input.Name,
		Age:   unicorn.Age(*input.Age),
		Color: input.Color,
	}
	if !h.store.Save(ctx, u) {
		return errorResult(errors.NewActionFailed(h.store.Err())), nil
	}

	return successResult(map[string]any{
		"saved":   true,
		"created": !u.Saved(),
		"id":      u.ID,
		"status":  u.Label(),
	})
}

// HandleDelete handles the unicorn_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	ids := input.IDs
	if input.ID != "" {
		ids = append([]string{input.ID}, ids...)
	}
	if len(ids) == 0 {
		return errorResult(errors.NewInvalidRequest("_id or ids is required")), nil
	}

	if len(ids) == 1 {
		if !h.store.Delete(ctx, ids[0]) {
			return errorResult(errors.NewActionFailed(h.store.Err())), nil
		}
		return successResult(map[string]any{"deleted": 1, "id": ids[0]})
	}

	n := h.store.DeleteMany(ctx, ids)
	return successResult(map[string]any{
		"deleted":   n,
		"failed":    len(uniqueIDs(ids)) - n,
		"requested": len(ids),
	})
}

// HandleStatus handles the unicorn_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(map[string]any{
		"age":    input.Age,
		"status": unicorn.Classify(input.Age),
		"class":  unicorn.StatusOf(input.Age),
	})
}

// validateSave returns one message per invalid field, or nil.
func validateSave(input SaveRequest) map[string]string {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return map[string]string{"input": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			fields[key] = fe.Field() + " is required"
		case "min":
			fields[key] = fe.Field() + " must be 0 or more"
		default:
			fields[key] = fmt.Sprintf("%s is invalid", fe.Field())
		}
	}
	return fields
}

func uniqueIDs(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

func toItems(us []unicorn.Unicorn) []Item {
	items := make([]Item, len(us))
	for i, u := range us {
		items[i] = Item{
			ID:     u.ID,
			Name:   u.Name,
			Age:    u.AgeValue(),
			Color:  u.Color,
			Status: u.Label(),
		}
	}
	return items
}

// errorResult builds the structured error envelope returned to MCP clients.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var uErr *errors.UnicornError
	if stderrors.As(err, &uErr) {
		errorObj := map[string]any{
			"code":    uErr.Code,
			"message": uErr.Message,
			"status":  uErr.Status,
		}
		// Internal details can carry driver or transport text
		if uErr.Code != errors.ErrInternal && uErr.Details != nil {
			errorObj["details"] = uErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult wraps data as a JSON tool result.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
