// Package lms implements the source API collaborator: the authentication
// handshake and the paged user listing of the LMS REST API. The pipeline
// core only ever sees the decoded page payloads; everything protocol-level
// (headers, endpoints, pagination arithmetic) stays here.
package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"lmsetl/internal/datasource/httpds"
	"lmsetl/internal/flatten"
)

// apiVersion is the x-api-version the LMS endpoints expect.
const apiVersion = "2"

// Config carries the LMS connection settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://lms.example.com/api".
	BaseURL string

	// Username/Password/PrivateKey are the credential triple for the
	// authenticate handshake. PrivateKey doubles as the x-api-key header.
	Username   string
	Password   string
	PrivateKey string
}

// Client is an authenticated-session LMS API client.
type Client struct {
	cfg  Config
	http *httpds.Client
}

// Page is one decoded page of the user listing. Users carries the raw
// record objects; the counters drive pagination in the caller.
type Page struct {
	Users         []map[string]any
	TotalItems    int
	Limit         int
	Offset        int
	ReturnedItems int
}

// NewClient builds a Client on top of the given transport. A nil transport
// gets the httpds defaults.
func NewClient(cfg Config, transport *httpds.Client) *Client {
	if transport == nil {
		transport = httpds.NewClient(httpds.Config{})
	}
	return &Client{cfg: cfg, http: transport}
}

// Authenticate performs the credential handshake and returns the session
// token used as the Bearer credential on subsequent calls.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"username":   c.cfg.Username,
		"password":   c.cfg.Password,
		"privateKey": c.cfg.PrivateKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	resp, err := c.http.Post(ctx, c.cfg.BaseURL+"/authenticate", payload, c.headers(""))
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("authenticate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authenticate: status %d", resp.StatusCode)
	}
	return tokenFromBody(body)
}

// Users fetches one page of the user listing, optionally filtered to a
// department. offset selects the page start; limit <= 0 leaves the server
// default in place.
func (c *Client) Users(ctx context.Context, token, departmentID string, offset, limit int) (*Page, error) {
	q := url.Values{}
	if departmentID != "" {
		// The API's OData-flavored filter syntax for department scoping.
		q.Set("_filter", fmt.Sprintf("departmentId eq guid'%s'", departmentID))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	u := c.cfg.BaseURL + "/users"
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	resp, err := c.http.Get(ctx, u, c.headers(token))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list users: status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	// UseNumber keeps user ids exact instead of round-tripping float64.
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("list users: decode response: %w", err)
	}
	return pageFromPayload(payload)
}

// headers builds the per-request header set; token may be empty for the
// authenticate call itself.
func (c *Client) headers(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("x-api-key", c.cfg.PrivateKey)
	h.Set("x-api-version", apiVersion)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// tokenFromBody accepts the two shapes the authenticate endpoint is known
// to return: a bare JSON string, or an object carrying the token under
// "accessToken" or "token".
func tokenFromBody(body []byte) (string, error) {
	var raw string
	if err := json.Unmarshal(body, &raw); err == nil && raw != "" {
		return raw, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"accessToken", "token"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("authenticate: response carries no token")
}

// pageFromPayload lifts the pagination counters out of the envelope, then
// hands the payload to the flattener's envelope extraction for the users
// array itself.
func pageFromPayload(payload map[string]any) (*Page, error) {
	p := &Page{
		TotalItems:    intField(payload, "totalItems"),
		Limit:         intField(payload, "limit"),
		Offset:        intField(payload, "offset"),
		ReturnedItems: intField(payload, "returnedItems"),
	}
	users, err := flatten.Users(payload)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	p.Users = users
	if p.ReturnedItems == 0 {
		p.ReturnedItems = len(p.Users)
	}
	return p, nil
}

// intField reads a numeric envelope field tolerating json.Number and
// float64 decodings; missing or malformed values read as 0.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	case float64:
		return int(v)
	}
	return 0
}
