package services

import (
	"fmt"
	"net/http"
	"strings"
)

// HTTPDoer is the subset of *http.Client the service clients need.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WrapHTTPStatus classifies a non-2xx response from an external service.
// 404 maps to ErrJobNotFound only when notFoundIsJob is set; otherwise it is
// an invalid response.
func WrapHTTPStatus(stage, operation string, status int, body string, notFoundIsJob bool) error {
	cause := fmt.Errorf("http %d: %s", status, snippet(body))
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return Wrap(ErrQuota, stage, operation, "rate limited or quota exhausted", cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Wrap(ErrConfiguration, stage, operation, "credentials rejected", cause)
	case status == http.StatusNotFound && notFoundIsJob:
		return Wrap(ErrJobNotFound, stage, operation, "job not found", cause)
	case status == http.StatusUnsupportedMediaType:
		return Wrap(ErrUnsupportedFormat, stage, operation, "media format rejected", cause)
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return Wrap(ErrTransport, stage, operation, "service unavailable", cause)
	default:
		return Wrap(ErrInvalidResponse, stage, operation, "request rejected", cause)
	}
}

func snippet(body string) string {
	clean := strings.Join(strings.Fields(body), " ")
	if len(clean) > 200 {
		return clean[:200] + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
