// Package nerdgraphtest provides an in-process fake of the NerdGraph
// endpoints used by the bulk deleter.
package nerdgraphtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Operation names recorded for each request.
const (
	OpSearch          = "entitySearch"
	OpDashboardDelete = "dashboardDelete"
	OpEntityDelete    = "entityDelete"
	OpUnknown         = "unknown"
)

// Request is one call observed by the fake.
type Request struct {
	Operation string
	Query     string
	Variables map[string]any
	APIKey    string
	RequestID string
}

// Server answers entitySearch, dashboardDelete and entityDelete.
// Configure the exported fields before issuing requests.
type Server struct {
	*httptest.Server

	// APIKey, when set, is the only key accepted.
	APIKey string
	// Entities is returned by entitySearch in this order.
	Entities []nerdgraph.Entity
	// NextCursor is reported on the search page when non-empty.
	NextCursor string
	// SearchErrors makes entitySearch answer with a GraphQL errors array.
	SearchErrors []string
	// SearchStatus overrides the HTTP status of the search response.
	SearchStatus int
	// Unconfirmed lists GUIDs whose deletion is accepted but not reported back.
	// A non-empty value is returned as a failure message.
	Unconfirmed map[string]string
	// DeleteErrors lists GUIDs whose deletion answers with a GraphQL error.
	DeleteErrors map[string]string

	mu       sync.Mutex
	requests []Request
}

// New starts a fake NerdGraph server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Unconfirmed:  map[string]string{},
		DeleteErrors: map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the GraphQL URL of the fake.
func (s *Server) Endpoint() string {
	return s.URL + "/graphql"
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// DeletedGUIDs returns the GUIDs of every delete call, in arrival order.
func (s *Server) DeletedGUIDs() []string {
	var guids []string
	for _, r := range s.Requests() {
		switch r.Operation {
		case OpDashboardDelete:
			guids = append(guids, asString(r.Variables["guid"]))
		case OpEntityDelete:
			if list, ok := r.Variables["guids"].([]any); ok {
				for _, g := range list {
					guids = append(guids, asString(g))
				}
			}
		}
	}
	return guids
}

// CountOperation returns how many requests of the given operation arrived.
func (s *Server) CountOperation(op string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Operation == op {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	req := Request{
		Operation: operationOf(payload.Query),
		Query:     payload.Query,
		Variables: payload.Variables,
		APIKey:    r.Header.Get("Api-Key"),
		RequestID: r.Header.Get("X-Request-Id"),
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.APIKey != "" && req.APIKey != s.APIKey {
		writeJSON(w, http.StatusOK, map[string]any{
			"errors": []map[string]any{{
				"message":    "Invalid API key",
				"extensions": map[string]any{"errorClass": "UNAUTHORIZED"},
			}},
		})
		return
	}

	switch req.Operation {
	case OpSearch:
		s.handleSearch(w)
	case OpDashboardDelete:
		s.handleDashboardDelete(w, asString(req.Variables["guid"]))
	case OpEntityDelete:
		var guid string
		if list, ok := req.Variables["guids"].([]any); ok && len(list) > 0 {
			guid = asString(list[0])
		}
		s.handleEntityDelete(w, guid)
	default:
		writeJSON(w, http.StatusOK, errorsBody("unknown operation"))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter) {
	status := http.StatusOK
	if s.SearchStatus != 0 {
		status = s.SearchStatus
	}
	if len(s.SearchErrors) > 0 {
		writeJSON(w, status, errorsBody(s.SearchErrors...))
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("upstream unavailable"))
		return
	}

	entities := s.Entities
	if entities == nil {
		entities = []nerdgraph.Entity{}
	}
	var cursor any
	if s.NextCursor != "" {
		cursor = s.NextCursor
	}
	writeJSON(w, status, map[string]any{
		"data": map[string]any{
			"actor": map[string]any{
				"entitySearch": map[string]any{
					"count": len(entities),
					"results": map[string]any{
						"nextCursor": cursor,
						"entities":   entities,
					},
				},
			},
		},
	})
}

func (s *Server) handleDashboardDelete(w http.ResponseWriter, guid string) {
	if msg, ok := s.DeleteErrors[guid]; ok {
		writeJSON(w, http.StatusOK, errorsBody(msg))
		return
	}
	result := map[string]any{"status": "SUCCESS", "errors": []any{}}
	if msg, ok := s.Unconfirmed[guid]; ok {
		result = map[string]any{
			"status": "FAILURE",
			"errors": []map[string]any{{"description": msg, "type": "DASHBOARD_DOES_NOT_EXIST"}},
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"dashboardDelete": result}})
}

func (s *Server) handleEntityDelete(w http.ResponseWriter, guid string) {
	if msg, ok := s.DeleteErrors[guid]; ok {
		writeJSON(w, http.StatusOK, errorsBody(msg))
		return
	}
	result := map[string]any{"deletedEntities": []string{guid}, "failures": []any{}}
	if msg, ok := s.Unconfirmed[guid]; ok {
		failures := []any{}
		if msg != "" {
			failures = append(failures, map[string]any{"guid": guid, "message": msg})
		}
		result = map[string]any{"deletedEntities": []string{}, "failures": failures}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"entityDelete": result}})
}

func operationOf(query string) string {
	switch {
	case strings.Contains(query, "entitySearch("):
		return OpSearch
	case strings.Contains(query, "dashboardDelete("):
		return OpDashboardDelete
	case strings.Contains(query, "entityDelete("):
		return OpEntityDelete
	}
	return OpUnknown
}

func errorsBody(msgs ...string) map[string]any {
	items := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, map[string]any{"message": m})
	}
	return map[string]any{"data": nil, "errors": items}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
