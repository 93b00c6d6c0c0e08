// Package tools holds the tool catalog advertised to MCP clients and the
// dispatcher that turns a tool call into Foreman API requests.
package tools

// ToolName identifies a tool. The set is closed: every name below has a
// catalog entry and a case in Dispatcher.Invoke.
type ToolName string

const (
	ListAllReportTemplates          ToolName = "list-all-report-templates"
	GetReportTemplate               ToolName = "get-report-template"
	CreateReportTemplate            ToolName = "create-report-template"
	GetReportTemplatesDocumentation ToolName = "get-report-templates-documentation"
	ListForemanResources            ToolName = "list-foreman-resources"
	GetResourceAPIDocumentation     ToolName = "get-resource-api-documentation"
	SearchResource                  ToolName = "search-resource"
)

// Property describes one argument of a tool.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is the JSON schema of a tool's arguments object.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Descriptor is a catalog entry.
type Descriptor struct {
	Name        ToolName `json:"name"`
	Description string   `json:"description"`
	InputSchema Schema   `json:"inputSchema"`
}

var formatProperty = Property{
	Type:        "string",
	Description: "Output format: html (default, the page as served) or markdown",
	Enum:        []string{formatHTML, formatMarkdown},
}

var catalog = []Descriptor{
	{
		Name:        ListAllReportTemplates,
		Description: "List the name and description of every report template in Foreman",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        GetReportTemplate,
		Description: "Get the name, description and template body of a report template",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"name": {Type: "string", Description: "Exact name of the report template"},
			},
			Required: []string{"name"},
		},
	},
	{
		Name:        CreateReportTemplate,
		Description: "Create a report template (not implemented yet)",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"name":        {Type: "string", Description: "Name of the new report template"},
				"template":    {Type: "string", Description: "ERB body of the report template"},
				"description": {Type: "string", Description: "Description of the report template"},
			},
			Required: []string{"name", "template"},
		},
	},
	{
		Name:        GetReportTemplatesDocumentation,
		Description: "Get the documentation of the macros and helpers available in report templates",
		InputSchema: Schema{
			Type:       "object",
			Properties: map[string]Property{"format": formatProperty},
		},
	},
	{
		Name:        ListForemanResources,
		Description: "List every resource collection the Foreman API exposes",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        GetResourceAPIDocumentation,
		Description: "Get the API documentation of one Foreman resource, including its search syntax",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"resource": {Type: "string", Description: "Resource name as returned by list-foreman-resources, e.g. hosts"},
				"format":   formatProperty,
			},
			Required: []string{"resource"},
		},
	},
	{
		Name:        SearchResource,
		Description: "Search records of a Foreman resource with a scoped search query",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"resource":        {Type: "string", Description: "Resource name, e.g. hosts"},
				"search":          {Type: "string", Description: "Scoped search query, e.g. name=foo"},
				"organization_id": {Type: "integer", Description: "Limit the search to one organization"},
			},
			Required: []string{"resource", "search"},
		},
	},
}

// Catalog returns the tool descriptors in a stable order. The slice is a copy;
// the schemas inside it are shared and must not be modified.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the descriptor for name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range catalog {
		if string(d.Name) == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
