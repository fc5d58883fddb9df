// Package nerdgraph is a minimal client for New Relic's GraphQL API covering
// entity search and entity deletion.
package nerdgraph

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a Client.
type Options struct {
	Endpoint  string
	APIKey    string
	UserAgent string
	// RunID is sent as X-Request-Id so server-side logs can be matched to a run.
	RunID string
	// Headers are extra static headers sent with every request.
	Headers map[string]string
	// HTTPClient supplies the transport; resty's default client is used when nil.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client executes GraphQL operations against NerdGraph. It holds one
// connection pool and is meant to be owned by a single run.
type Client struct {
	rest     *resty.Client
	endpoint string
	logger   *zap.Logger
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type envelope struct {
	Data   jsoniter.RawMessage `json:"data"`
	Errors []ErrorItem         `json:"errors"`
}

// NewClient builds a Client with the API key baked into every request.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	for k, v := range opts.Headers {
		rc.SetHeader(k, v)
	}
	rc.SetLogger(logger.Sugar()).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Api-Key", opts.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.RunID != "" {
		rc.SetHeader("X-Request-Id", opts.RunID)
	}

	return &Client{
		rest:     rc,
		endpoint: opts.Endpoint,
		logger:   logger,
	}
}

// Do sends one GraphQL operation and decodes its data into out.
// No retries are attempted.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	if variables == nil {
		variables = map[string]any{}
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(request{Query: query, Variables: variables}).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.logger.Debug("NerdGraph response received",
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", resp.Time()))

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)

	if !resp.IsSuccess() {
		httpErr := &HTTPError{StatusCode: resp.StatusCode(), Body: resp.String()}
		if decodeErr == nil && len(env.Errors) > 0 {
			httpErr.GraphQL = &GraphQLError{Errors: env.Errors}
		}
		return httpErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if len(env.Errors) > 0 {
		return &GraphQLError{Errors: env.Errors}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: no data in response", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
