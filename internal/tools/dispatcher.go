package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"foreman-mcp/internal/foreman"
)

const (
	// DefaultCallTimeout bounds every request the dispatcher sends to Foreman.
	DefaultCallTimeout = 30 * time.Second

	// DefaultPageConcurrency is how many index pages are fetched at once.
	DefaultPageConcurrency = 4

	reportTemplates = "report_templates"

	templatesDocPath = "/templates_doc/v1/reports.en.html"
)

// Remote is the part of the Foreman client the dispatcher needs.
type Remote interface {
	ResourceAction(ctx context.Context, resource, action string, params map[string]any) (foreman.Record, error)
	Resources() []string
	FetchDocument(ctx context.Context, path string) (string, error)
}

var _ Remote = (*foreman.Client)(nil)

// Dispatcher runs tool calls. It holds no per-call state and is safe for
// concurrent use.
type Dispatcher struct {
	remote          Remote
	logger          *zap.Logger
	callTimeout     time.Duration
	pageConcurrency int
	schemas         map[ToolName]*gojsonschema.Schema
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithCallTimeout sets the deadline applied to each Foreman request.
func WithCallTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.callTimeout = t
		}
	}
}

// WithPageConcurrency sets how many index pages are fetched in parallel.
func WithPageConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.pageConcurrency = n
		}
	}
}

// NewDispatcher returns a dispatcher that sends requests through remote.
func NewDispatcher(remote Remote, opts ...Option) (*Dispatcher, error) {
	if remote == nil {
		return nil, errors.New("remote cannot be nil")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		remote:          remote,
		logger:          zap.NewNop(),
		callTimeout:     DefaultCallTimeout,
		pageConcurrency: DefaultPageConcurrency,
		schemas:         schemas,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// List returns the tool catalog.
func (d *Dispatcher) List() []Descriptor { return Catalog() }

// Invoke runs the named tool. Failures are *Error values, except that a
// cancelled or expired ctx is returned as ctx.Err(). Unknown tools and bad
// arguments are rejected before anything is sent to Foreman.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	logger := d.logger.With(zap.String("tool", name))

	desc, ok := Lookup(name)
	if !ok {
		logger.Warn("Tool not found")
		return nil, unknownTool(name)
	}
	if err := validate(desc, d.schemas[desc.Name], args); err != nil {
		logger.Warn("Tool arguments rejected", zap.Error(err))
		return nil, err
	}

	logger.Debug("Calling tool", zap.Any("arguments", args))
	start := time.Now()
	res, err := d.dispatch(ctx, desc.Name, args)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("Tool call cancelled", zap.Error(ctxErr), zap.Duration("duration", duration))
			return nil, ctxErr
		}
		logger.Error("Tool call failed", zap.Error(err), zap.Duration("duration", duration))
		return nil, err
	}
	logger.Info("Tool call successful", zap.Duration("duration", duration))
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, tool ToolName, args map[string]any) (*Result, error) {
	switch tool {
	case ListAllReportTemplates:
		return d.listAllReportTemplates(ctx)
	case GetReportTemplate:
		return d.getReportTemplate(ctx, stringArg(args, "name"))
	case CreateReportTemplate:
		return nil, notImplemented(tool)
	case GetReportTemplatesDocumentation:
		return d.document(ctx, tool, templatesDocPath, stringArg(args, "format"))
	case ListForemanResources:
		return textResult(formatResources(d.remote.Resources())), nil
	case GetResourceAPIDocumentation:
		path := "/apidoc/v2/" + url.PathEscape(stringArg(args, "resource")) + "/index.en.html"
		return d.document(ctx, tool, path, stringArg(args, "format"))
	case SearchResource:
		return d.searchResource(ctx, args)
	}
	return nil, unknownTool(string(tool))
}

func (d *Dispatcher) listAllReportTemplates(ctx context.Context) (*Result, error) {
	const tool = ListAllReportTemplates
	first, err := d.resourceAction(ctx, tool, reportTemplates, "index", nil)
	if err != nil {
		return nil, err
	}
	records, _ := foreman.Results(first)
	if subtotal, perPage := foreman.Paging(first); perPage > 0 && subtotal > len(records) {
		rest, err := d.remainingPages(ctx, tool, reportTemplates, subtotal, perPage)
		if err != nil {
			return nil, err
		}
		records = append(records, rest...)
	}
	return textResult(formatTemplateSummaries(records)), nil
}

// remainingPages fetches pages 2..n of an index concurrently and returns their
// records in page order.
func (d *Dispatcher) remainingPages(ctx context.Context, tool ToolName, resource string, subtotal, perPage int) ([]foreman.Record, error) {
	pages := (subtotal + perPage - 1) / perPage
	byPage := make([][]foreman.Record, pages-1)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(d.pageConcurrency).WithCancelOnError().WithFirstError()
	for page := 2; page <= pages; page++ {
		p.Go(func(ctx context.Context) error {
			rec, err := d.resourceAction(ctx, tool, resource, "index", map[string]any{"page": page, "per_page": perPage})
			if err != nil {
				return err
			}
			byPage[page-2], _ = foreman.Results(rec)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	var out []foreman.Record
	for _, recs := range byPage {
		out = append(out, recs...)
	}
	d.logger.Debug("Fetched index pages", zap.String("resource", resource), zap.Int("pages", pages))
	return out, nil
}

func (d *Dispatcher) getReportTemplate(ctx context.Context, name string) (*Result, error) {
	const tool = GetReportTemplate
	found, err := d.resourceAction(ctx, tool, reportTemplates, "index", map[string]any{"search": foreman.Eq("name", name)})
	if err != nil {
		return nil, err
	}
	results, _ := foreman.Results(found)
	if len(results) == 0 {
		return nil, notFound(tool, fmt.Sprintf("report template %q not found", name))
	}
	id, ok := foreman.ID(results[0])
	if !ok {
		return nil, remoteFailed(tool, 0, fmt.Errorf("report template %q has no id", name))
	}

	tmpl, err := d.resourceAction(ctx, tool, reportTemplates, "show", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return textResult(formatTemplate(tmpl)), nil
}

func (d *Dispatcher) searchResource(ctx context.Context, args map[string]any) (*Result, error) {
	const tool = SearchResource
	params := map[string]any{"search": stringArg(args, "search")}
	if orgID, ok := intArg(args, "organization_id"); ok {
		params["organization_id"] = orgID
	}

	rec, err := d.resourceAction(ctx, tool, stringArg(args, "resource"), "index", params)
	if err != nil {
		return nil, err
	}
	text, err := formatSearchResults(rec)
	if err != nil {
		return nil, remoteFailed(tool, 0, fmt.Errorf("encode results: %w", err))
	}
	return textResult(text), nil
}

func (d *Dispatcher) document(ctx context.Context, tool ToolName, path, format string) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	page, err := d.remote.FetchDocument(callCtx, path)
	if err != nil {
		return nil, d.remoteError(ctx, tool, err)
	}
	if format == formatMarkdown {
		page, err = toMarkdown(page)
		if err != nil {
			return nil, remoteFailed(tool, 0, fmt.Errorf("convert %s to markdown: %w", path, err))
		}
	}
	return textResult(page), nil
}

func (d *Dispatcher) resourceAction(ctx context.Context, tool ToolName, resource, action string, params map[string]any) (foreman.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	rec, err := d.remote.ResourceAction(callCtx, resource, action, params)
	if err != nil {
		return nil, d.remoteError(ctx, tool, err)
	}
	return rec, nil
}

// remoteError classifies a failed Foreman request. A done ctx belongs to the
// caller and is passed through; the per-call deadline is a remote failure.
func (d *Dispatcher) remoteError(ctx context.Context, tool ToolName, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var se *foreman.StatusError
	if errors.As(err, &se) {
		return remoteFailed(tool, se.StatusCode, err)
	}
	return remoteFailed(tool, 0, err)
}
