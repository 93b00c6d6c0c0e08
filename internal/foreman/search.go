package foreman

import "strings"

// Foreman's scoped_search grammar is not documented beyond quoting, so only the
// quote and the escape character itself are escaped.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Eq builds an equality condition for a search parameter, e.g. name="Host - Statuses".
func Eq(field, value string) string {
	return field + `="` + quoteEscaper.Replace(value) + `"`
}
