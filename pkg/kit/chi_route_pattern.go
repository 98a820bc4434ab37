package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RoutePattern labels a request by its matched chi pattern so that
// /cart/items/{id} does not explode metric cardinality.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if rp := rc.RoutePattern(); rp != "" {
			return rp
		}
	}
	return "unmatched"
}
