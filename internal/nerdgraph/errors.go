package nerdgraph

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrTransport wraps failures where no usable HTTP response came back.
	ErrTransport = errors.New("nerdgraph transport error")
	// ErrMalformedResponse is returned when the body is not a GraphQL envelope.
	ErrMalformedResponse = errors.New("nerdgraph returned a malformed response")
	// ErrNotConfirmed means the mutation was accepted but the deletion was not reported back.
	ErrNotConfirmed = errors.New("deletion not confirmed")
)

// ErrorItem is a single entry of the GraphQL "errors" array.
type ErrorItem struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLError reports that NerdGraph answered with a non-empty errors array.
// Messages are kept verbatim.
type GraphQLError struct {
	Errors []ErrorItem
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Message)
	}
	return strings.Join(msgs, "; ")
}

// First returns the first error message, which is what the per-entity report shows.
func (e *GraphQLError) First() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
	// GraphQL carries the decoded errors array when the body had one.
	GraphQL *GraphQLError
}

func (e *HTTPError) Error() string {
	if e.GraphQL != nil && len(e.GraphQL.Errors) > 0 {
		return fmt.Sprintf("nerdgraph returned HTTP %d: %s", e.StatusCode, e.GraphQL.Error())
	}
	return fmt.Sprintf("nerdgraph returned HTTP %d: %s", e.StatusCode, truncateBody(strings.TrimSpace(e.Body)))
}

// maxBodyInError caps how much of a non-JSON error body ends up in messages.
const maxBodyInError = 512

// truncateBody cuts body to at most maxBodyInError bytes on a rune boundary.
func truncateBody(body string) string {
	if len(body) <= maxBodyInError {
		return body
	}
	cut := maxBodyInError
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

func (e *HTTPError) Unwrap() error {
	if e.GraphQL == nil {
		return nil
	}
	return e.GraphQL
}

// IsAuthError reports whether err came from a rejected or unauthorized API key.
func IsAuthError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == 401 || httpErr.StatusCode == 403) {
		return true
	}
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		for _, item := range gqlErr.Errors {
			if code, ok := item.Extensions["errorClass"].(string); ok && code == "UNAUTHORIZED" {
				return true
			}
			msg := strings.ToLower(item.Message)
			if strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") {
				return true
			}
		}
	}
	return false
}
