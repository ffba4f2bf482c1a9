package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// APIError is a non-success Graph response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph: %d: %s", e.Status, e.Message)
}

// RESTOption customizes the REST transport of an adapter.
type RESTOption func(*restClient)

// WithBaseURL points requests at baseURL instead of DefaultBaseURL.
func WithBaseURL(baseURL string) RESTOption {
	return func(c *restClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(c *restClient) {
		if client != nil {
			c.http = client
		}
	}
}

type restClient struct {
	tokens  TokenSource
	baseURL string
	http    *http.Client
}

func newRESTClient(tokens TokenSource, opts []RESTOption) restClient {
	c := restClient{tokens: tokens, baseURL: DefaultBaseURL, http: http.DefaultClient}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *restClient) url(path string, q neturl.Values) string {
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// get fetches URL with a bearer token and decodes the JSON body into out.
func (c *restClient) get(ctx context.Context, URL string, header http.Header, out any) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Code: envelope.Error.Code, Message: msg}
}

func userPath(mailbox string) string {
	if mailbox == "" {
		return "/me"
	}
	return "/users/" + neturl.PathEscape(mailbox)
}
