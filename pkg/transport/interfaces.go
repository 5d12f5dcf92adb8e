package transport

import "context"

// Response is the result of one HTTP exchange.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Body is the full response body.
	Body []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Requester is the authenticated HTTP request/response primitive.
//
// Implementations attach bearer credentials and honor the context
// deadline. The transport never retries; retrying is the supervisor's
// job.
type Requester interface {
	// Do performs one HTTP request. A non-2xx status is returned as a
	// Response, not an error; errors are reserved for request-level
	// failures (timeouts, connection resets).
	Do(ctx context.Context, method, url string, body []byte) (*Response, error)
}

// TokenSource supplies a valid access token, refreshing behind the
// scenes as needed. Token acquisition is outside this subsystem.
type TokenSource interface {
	// AccessToken returns a token valid for immediate use.
	AccessToken(ctx context.Context) (string, error)
}
