// Package header provides header filtering for the streamrelay relay.
//
// The relay sits between a chat client and the upstream chat completion API:
//
//	Client <--> Relay <--> Upstream API
//
// Each leg negotiates compression, hops and encoding independently, and the
// relay substitutes its own upstream credential for whatever the client sent.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

const (
	// AccessTokenHeader carries the caller's quota access token.
	AccessTokenHeader = "X-Access-Token"

	// PathHeader selects the upstream path for the passthrough route.
	PathHeader = "Path"
)

// skipRequest is the set of request headers (client --> relay --> upstream)
// that are not forwarded to the upstream API. Keys are in canonical form.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Go's http.Transport sets Host from the upstream URL.
	"Host": {},

	// Stripped so Go's http.Transport adds its own "Accept-Encoding: gzip"
	// and transparently decompresses the upstream response.
	"Accept-Encoding": {},

	// Computed by Go's http.Transport from the forwarded body.
	"Content-Length": {},

	// Caller credentials. The relay authenticates upstream with its own key.
	"Authorization":   {},
	AccessTokenHeader: {},
	"Token":           {},
	"Access-Code":     {},
	"Cookie":          {},

	// Relay routing header.
	PathHeader: {},
}

// skipResponse is the set of upstream response headers (client <-- relay <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// Go's http.Transport strips Content-Encoding after auto-decompression;
	// fiber's compress middleware sets its own on the way down.
	"Content-Encoding": {},

	// The upstream length no longer matches once the body is decompressed
	// or re-framed.
	"Content-Length": {},

	// Upstream cookies and rate limit headers belong to the relay's account.
	"Set-Cookie": {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the relay should not
// forward to the upstream API.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies response headers from the upstream API
// http.Response to the Fiber context, filtering headers that the relay should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}
