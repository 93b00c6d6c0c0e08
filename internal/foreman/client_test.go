package foreman

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testApidoc = `{
  "docs": {
    "resources": {
      "report_templates": {
        "methods": [
          {"name": "index", "apis": [{"api_url": "/api/report_templates", "http_method": "GET"}]},
          {"name": "show", "apis": [{"api_url": "/api/report_templates/:id", "http_method": "GET"}]},
          {"name": "create", "apis": [{"api_url": "/api/report_templates", "http_method": "POST"}]}
        ]
      },
      "hosts": {
        "methods": [
          {"name": "index", "apis": [
            {"api_url": "/api/hosts", "http_method": "GET"},
            {"api_url": "/api/organizations/:organization_id/hosts", "http_method": "GET"}
          ]}
        ]
      }
    }
  }
}`

type recorded struct {
	method string
	path   string
	query  string
	body   string
	user   string
	pass   string
}

func newTestForeman(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apidocPath {
			_, _ = io.WriteString(w, testApidoc)
			return
		}
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		calls = append(calls, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(body), user, pass})
		handle(w, r)
	}))
	t.Cleanup(ts.Close)

	c, err := New(context.Background(), Config{BaseURL: ts.URL + "/", Username: "admin", Password: "changeme"}, nil, zap.NewNop())
	require.NoError(t, err)
	return c, &calls
}

func TestNewLoadsResources(t *testing.T) {
	c, _ := newTestForeman(t, func(http.ResponseWriter, *http.Request) {})
	assert.Equal(t, []string{"hosts", "report_templates"}, c.Resources())
}

func TestNewFailsWhenApidocUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := New(context.Background(), Config{BaseURL: ts.URL}, nil, nil)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestResourceActionIndexAndShow(t *testing.T) {
	c, calls := newTestForeman(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/report_templates":
			_, _ = io.WriteString(w, `{"results":[{"id":7,"name":"Host - Statuses"}]}`)
		case "/api/report_templates/7":
			_, _ = io.WriteString(w, `{"id":7,"name":"Host - Statuses","template":"<%= x %>"}`)
		default:
			http.NotFound(w, r)
		}
	})

	rec, err := c.ResourceAction(context.Background(), "report_templates", "index", map[string]any{"search": Eq("name", "Host - Statuses")})
	require.NoError(t, err)
	results, ok := Results(rec)
	require.True(t, ok)
	require.Len(t, results, 1)
	id, ok := ID(results[0])
	require.True(t, ok)
	assert.Equal(t, 7, id)

	rec, err = c.ResourceAction(context.Background(), "report_templates", "show", map[string]any{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "<%= x %>", String(rec, "template"))

	require.Len(t, *calls, 2)
	first := (*calls)[0]
	assert.Equal(t, http.MethodGet, first.method)
	assert.Equal(t, `search=name%3D%22Host+-+Statuses%22`, first.query)
	assert.Equal(t, "admin", first.user)
	assert.Equal(t, "changeme", first.pass)
	assert.Equal(t, "/api/report_templates/7", (*calls)[1].path)
	assert.Empty(t, (*calls)[1].query)
}

func TestResourceActionPrefersNestedRoute(t *testing.T) {
	c, calls := newTestForeman(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	})

	_, err := c.ResourceAction(context.Background(), "hosts", "index", map[string]any{"search": "name=foo", "organization_id": 5})
	require.NoError(t, err)
	_, err = c.ResourceAction(context.Background(), "hosts", "index", map[string]any{"search": "name=foo"})
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/api/organizations/5/hosts", (*calls)[0].path)
	assert.Equal(t, "search=name%3Dfoo", (*calls)[0].query)
	assert.Equal(t, "/api/hosts", (*calls)[1].path)
}

func TestResourceActionUndocumentedResourceUsesConventions(t *testing.T) {
	c, calls := newTestForeman(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	})

	_, err := c.ResourceAction(context.Background(), "domains", "index", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/domains", (*calls)[0].path)

	_, err = c.ResourceAction(context.Background(), "domains", "show", nil)
	assert.Error(t, err)

	_, err = c.ResourceAction(context.Background(), "../etc", "index", nil)
	assert.Error(t, err)
}

func TestResourceActionPostSendsJSONBody(t *testing.T) {
	c, calls := newTestForeman(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":1}`)
	})

	_, err := c.ResourceAction(context.Background(), "report_templates", "create", map[string]any{"name": "x"})
	require.NoError(t, err)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(call.body), &body))
	assert.Equal(t, "x", body["name"])
}

func TestResourceActionStatusError(t *testing.T) {
	c, _ := newTestForeman(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
	})

	_, err := c.ResourceAction(context.Background(), "hosts", "index", nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Contains(t, se.Error(), "boom")
}

func TestFetchDocument(t *testing.T) {
	c, calls := newTestForeman(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/templates_doc/v1/reports.en.html" {
			_, _ = io.WriteString(w, "<html><body>docs</body></html>")
			return
		}
		http.NotFound(w, r)
	})

	body, err := c.FetchDocument(context.Background(), "/templates_doc/v1/reports.en.html")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>docs</body></html>", body)
	assert.Equal(t, "admin", (*calls)[0].user)

	_, err = c.FetchDocument(context.Background(), "apidoc/v2/nope/index.en.html")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "/apidoc/v2/nope/index.en.html", se.Path)
}

func TestFetchDocumentHonorsCancellation(t *testing.T) {
	c, _ := newTestForeman(t, func(http.ResponseWriter, *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchDocument(ctx, "/templates_doc/v1/reports.en.html")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEq(t *testing.T) {
	assert.Equal(t, `name="plain"`, Eq("name", "plain"))
	assert.Equal(t, `name="say \"hi\""`, Eq("name", `say "hi"`))
	assert.Equal(t, `name="a\\b"`, Eq("name", `a\b`))
}

func TestPagingAndResults(t *testing.T) {
	rec := Record{"subtotal": float64(45), "per_page": float64(20), "results": []any{map[string]any{"id": float64(1)}, "junk"}}
	subtotal, perPage := Paging(rec)
	assert.Equal(t, 45, subtotal)
	assert.Equal(t, 20, perPage)
	results, ok := Results(rec)
	require.True(t, ok)
	assert.Len(t, results, 1)

	_, ok = Results(Record{"id": float64(1)})
	assert.False(t, ok)
}
