package foreman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const apidocPath = "/apidoc/v2.json"

// apidoc mirrors the parts of the apipie description Foreman publishes that
// are needed to address a resource action.
type apidoc struct {
	Docs struct {
		Resources map[string]apidocResource `json:"resources"`
	} `json:"docs"`
}

type apidocResource struct {
	Methods []apidocMethod `json:"methods"`
}

type apidocMethod struct {
	Name string        `json:"name"`
	Apis []apidocRoute `json:"apis"`
}

type apidocRoute struct {
	URL    string `json:"api_url"`
	Method string `json:"http_method"`
}

// catalog is the immutable, indexed form of the apidoc.
type catalog struct {
	names     []string
	resources map[string]map[string][]apidocRoute
}

type route struct {
	method string
	path   string
	rest   map[string]any
}

func (c *Client) loadCatalog(ctx context.Context) (*catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+apidocPath, nil)
	if err != nil {
		return nil, err
	}
	var doc apidoc
	if err := c.do(req, &doc); err != nil {
		return nil, err
	}
	return newCatalog(doc), nil
}

func newCatalog(doc apidoc) *catalog {
	cat := &catalog{resources: make(map[string]map[string][]apidocRoute, len(doc.Docs.Resources))}
	for name, res := range doc.Docs.Resources {
		methods := make(map[string][]apidocRoute, len(res.Methods))
		for _, m := range res.Methods {
			methods[m.Name] = m.Apis
		}
		cat.resources[name] = methods
		cat.names = append(cat.names, name)
	}
	sort.Strings(cat.names)
	return cat
}

// route picks the HTTP route for resource/action. Among the documented routes
// whose placeholders are all present in params, the one consuming the most
// params wins, so organization_id selects /api/organizations/:organization_id/hosts
// when the apidoc offers it. Undocumented actions follow Rails conventions.
func (cat *catalog) route(resource, action string, params map[string]any) (route, error) {
	if resource == "" || strings.ContainsAny(resource, "/?#") {
		return route{}, fmt.Errorf("invalid resource name %q", resource)
	}
	candidates := cat.resources[resource][action]
	if len(candidates) == 0 {
		var ok bool
		candidates, ok = conventionalRoutes(resource, action)
		if !ok {
			return route{}, fmt.Errorf("no route for %s#%s", resource, action)
		}
	}

	best, bestScore := -1, -1
	for i, c := range candidates {
		keys := placeholders(c.URL)
		if !hasAll(params, keys) {
			continue
		}
		if len(keys) > bestScore {
			best, bestScore = i, len(keys)
		}
	}
	if best < 0 {
		return route{}, fmt.Errorf("%s#%s: missing route parameters for %s", resource, action, candidates[0].URL)
	}

	chosen := candidates[best]
	rest := make(map[string]any, len(params))
	for k, v := range params {
		rest[k] = v
	}
	segs := strings.Split(chosen.URL, "/")
	for i, seg := range segs {
		if key, ok := placeholder(seg); ok {
			segs[i] = url.PathEscape(formatParam(params[key]))
			delete(rest, key)
		}
	}
	path := strings.Join(segs, "/")
	method := strings.ToUpper(chosen.Method)
	if method == "" {
		method = http.MethodGet
	}
	return route{method: method, path: path, rest: rest}, nil
}

func conventionalRoutes(resource, action string) ([]apidocRoute, bool) {
	base := "/api/" + resource
	switch action {
	case "index":
		return []apidocRoute{{URL: base, Method: http.MethodGet}}, true
	case "show":
		return []apidocRoute{{URL: base + "/:id", Method: http.MethodGet}}, true
	case "create":
		return []apidocRoute{{URL: base, Method: http.MethodPost}}, true
	case "update":
		return []apidocRoute{{URL: base + "/:id", Method: http.MethodPut}}, true
	case "destroy":
		return []apidocRoute{{URL: base + "/:id", Method: http.MethodDelete}}, true
	}
	return nil, false
}

// placeholders returns the :name segments of an apipie route template.
func placeholders(tmpl string) []string {
	var out []string
	for _, seg := range strings.Split(tmpl, "/") {
		if key, ok := placeholder(seg); ok {
			out = append(out, key)
		}
	}
	return out
}

func placeholder(seg string) (string, bool) {
	if strings.HasPrefix(seg, ":") && len(seg) > 1 {
		return seg[1:], true
	}
	return "", false
}

func hasAll(params map[string]any, keys []string) bool {
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == nil || v == "" {
			return false
		}
	}
	return true
}
