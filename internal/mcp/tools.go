package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("unicorn_list",
	mcp.WithDescription("List one page (5 per page) of unicorns, sorted. Loads the collection on first use."),
	mcp.WithString("sort",
		mcp.Description("Sort field"),
		mcp.Enum("name", "age", "color"),
	),
	mcp.WithString("order",
		mcp.Description("Sort order (default asc)"),
		mcp.Enum("asc", "desc"),
	),
	mcp.WithNumber("page",
		mcp.Description("1-based page number; keeps the current page when omitted"),
		mcp.Min(1),
	),
	mcp.WithBoolean("refresh",
		mcp.Description("Reload the collection from the remote before listing"),
	),
	mcp.WithBoolean("all",
		mcp.Description("Return every record instead of one page"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var refreshToolDef = mcp.NewTool("unicorn_refresh",
	mcp.WithDescription("Reload the unicorn collection from the remote store."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var saveToolDef = mcp.NewTool("unicorn_save",
	mcp.WithDescription("Create a unicorn, or replace an existing one when _id is given."),
	mcp.WithString("_id",
		mcp.Description("Id of the unicorn to replace; omit to create"),
	),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Name"),
	),
	mcp.WithNumber("age",
		mcp.Required(),
		mcp.Description("Age in years, a whole number of 0 or more"),
		mcp.Min(0),
	),
	mcp.WithString("color",
		mcp.Required(),
		mcp.Description("Color"),
	),
)

var deleteToolDef = mcp.NewTool("unicorn_delete",
	mcp.WithDescription("Delete one unicorn by id, or several at once."),
	mcp.WithString("_id",
		mcp.Description("Id of the unicorn to delete"),
	),
	mcp.WithArray("ids",
		mcp.Description("Ids to delete concurrently"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithDestructiveHintAnnotation(true),
)

var statusToolDef = mcp.NewTool("unicorn_status",
	mcp.WithDescription("Classify an age: 0-8 baby, 9-25 mature, 26+ old, anything else unknown."),
	mcp.WithString("age",
		mcp.Required(),
		mcp.Description("Age to classify; numbers and numeric strings are accepted"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)
