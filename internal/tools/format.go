package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"foreman-mcp/internal/foreman"
)

const (
	formatHTML     = "html"
	formatMarkdown = "markdown"
)

const resourcesPreamble = "These are the resources of the Foreman API. " +
	"Use get-resource-api-documentation to read how a resource is queried " +
	"and search-resource to search its records."

// Content is one block of a tool result. Only text blocks are produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the output of a successful tool call.
type Result struct {
	Content []Content `json:"content"`
}

// Text joins the text of all blocks.
func (r *Result) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		b.WriteString(c.Text)
	}
	return b.String()
}

func textResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}}
}

func formatTemplateSummaries(records []foreman.Record) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, fmt.Sprintf("Name: %s\nDescription: %s", foreman.String(r, "name"), foreman.String(r, "description")))
	}
	return strings.Join(blocks, "\n\n")
}

func formatTemplate(r foreman.Record) string {
	return fmt.Sprintf("Name: %s\nDescription: %s\nTemplate:\n%s",
		foreman.String(r, "name"), foreman.String(r, "description"), foreman.String(r, "template"))
}

func formatResources(names []string) string {
	var b strings.Builder
	b.WriteString(resourcesPreamble)
	b.WriteString("\n")
	for _, n := range names {
		b.WriteString("\n- ")
		b.WriteString(n)
	}
	return b.String()
}

// formatSearchResults renders the results list of an index reply, or the whole
// reply when it has none, as indented JSON.
func formatSearchResults(rec foreman.Record) (string, error) {
	var payload any = rec
	if raw, ok := rec["results"]; ok {
		payload = raw
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// toMarkdown converts a documentation page to markdown, keeping only the body
// and dropping scripts, styles and navigation.
func toMarkdown(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(body)
}
