package csrf

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// rejectionBodyLimit caps how much of a 403 body is inspected for the CSRF
// rejection signal.
const rejectionBodyLimit = 8 << 10

// Transport is an http.RoundTripper that attaches the CSRF header to
// protected requests. On a response that signals CSRF rejection it refetches
// a forced-fresh token and retries the original request exactly once; a
// second rejection is returned to the caller unmodified.
type Transport struct {
	coordinator *Coordinator
	base        http.RoundTripper
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base with CSRF protection. A nil base falls back to
// http.DefaultTransport.
func NewTransport(coordinator *Coordinator, base http.RoundTripper) *Transport {
	return &Transport{
		coordinator: coordinator,
		base:        base,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	if !t.coordinator.NeedsProtection(req.Method, req.URL.Path) {
		return base.RoundTrip(req)
	}

	attempt := req.Clone(req.Context())
	if token := t.coordinator.Token(req.Context(), false); token != "" {
		attempt.Header.Set(t.coordinator.HeaderName(), token)
	}

	resp, err := base.RoundTrip(attempt)
	if err != nil {
		return resp, err
	}

	rejected, resp, err := isCSRFRejection(resp)
	if err != nil {
		return nil, err
	}
	if !rejected {
		return resp, nil
	}

	retry, ok := rewindRequest(req)
	if !ok {
		// Body cannot be replayed, surface the rejection as-is.
		return resp, nil
	}
	_ = resp.Body.Close()

	log.Debug().Str("path", req.URL.Path).Msg("csrf: rejection, retrying once with fresh token")
	if token := t.coordinator.Token(req.Context(), true); token != "" {
		retry.Header.Set(t.coordinator.HeaderName(), token)
	}
	return base.RoundTrip(retry)
}

// isCSRFRejection reports whether the response is an auth failure whose body
// mentions CSRF. The body is consumed to inspect it, so a replacement
// response with the buffered body is returned for the caller.
func isCSRFRejection(resp *http.Response) (bool, *http.Response, error) {
	if resp.StatusCode != http.StatusForbidden || resp.Body == nil {
		return false, resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, rejectionBodyLimit))
	closeErr := resp.Body.Close()
	if err != nil {
		return false, nil, err
	}
	if closeErr != nil {
		return false, nil, closeErr
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return strings.Contains(strings.ToLower(string(body)), "csrf"), resp, nil
}

// rewindRequest clones the original request with a replayable body.
func rewindRequest(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(req.Context())
	if req.Body == nil {
		return retry, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry.Body = body
	return retry, true
}
