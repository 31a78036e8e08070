// Package postgrest stores the app data behind a PostgREST API (Supabase-style) and signs students up on its auth provider.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/cohortly/lms/core"
)

const restPath = "/rest/v1/"

// APIError is the error body PostgREST sends along a non-2xx status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("postgrest: %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("postgrest: %d: %s", e.Status, msg)
}

// IsConflict reports a unique or exclusion constraint violation.
func (e *APIError) IsConflict() bool {
	return e.Status == http.StatusConflict || e.Code == "23505" || e.Code == "23P01"
}

// Client talks to the REST store. Credentials are resolved on every call.
type Client struct {
	conf    *core.Config
	http    *http.Client
	limiter *rate.Limiter
	logger  core.Logger
}

func NewClient(conf *core.Config, logger core.Logger) *Client {
	c := &Client{
		conf:   conf,
		http:   &http.Client{Timeout: conf.Store.RequestTimeout},
		logger: logger,
	}
	if conf.Store.RateLimit > 0 {
		burst := conf.Store.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(conf.Store.RateLimit), burst)
	}
	return c
}

// WithHTTPClient swaps the underlying http client; used in tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Query holds the query string of a table request.
type Query struct {
	values url.Values
}

func NewQuery() *Query {
	return &Query{values: make(url.Values)}
}

// Eq adds a `column=eq.value` filter; an empty value adds nothing.
func (q *Query) Eq(column, value string) *Query {
	if value != "" {
		q.values.Add(column, "eq."+value)
	}
	return q
}

// quote escapes a value for use inside a list or logical filter, where commas and parentheses are reserved.
func quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// In adds a `column=in.(a,b)` filter.
func (q *Query) In(column string, values ...string) *Query {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quote(v))
	}
	q.values.Set(column, "in.("+strings.Join(quoted, ",")+")")
	return q
}

// OrEq adds an `or=(a.eq."v",b.eq."v")` filter matching value on any of columns.
func (q *Query) OrEq(value string, columns ...string) *Query {
	conditions := make([]string, 0, len(columns))
	for _, col := range columns {
		conditions = append(conditions, col+".eq."+quote(value))
	}
	q.values.Set("or", "("+strings.Join(conditions, ",")+")")
	return q
}

func (q *Query) Select(columns string) *Query {
	q.values.Set("select", columns)
	return q
}

func (q *Query) Order(orderings ...core.DBOrdering) *Query {
	if len(orderings) > 0 {
		q.values.Set("order", core.OrderingParam(orderings))
	}
	return q
}

func (q *Query) Limit(n int) *Query {
	q.values.Set("limit", fmt.Sprint(n))
	return q
}

// unfiltered reports whether q carries no row filter.
func (q *Query) unfiltered() bool {
	for k := range q.values {
		switch k {
		case "select", "order", "limit":
		default:
			return false
		}
	}
	return true
}

func (q *Query) encode() string {
	if q == nil {
		return ""
	}
	return q.values.Encode()
}

func (c *Client) do(ctx context.Context, method, table string, q *Query, body, out interface{}) error {
	creds, err := c.conf.StoreCredentials()
	if err != nil {
		return err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "waiting for the store rate limiter")
		}
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(b)
	}

	u := creds.URL + restPath + table
	if qs := q.encode(); qs != "" {
		u += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	setAuthHeaders(req, creds)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, table)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", table)
	}
	return nil
}

func setAuthHeaders(req *http.Request, creds core.StoreCredentials) {
	req.Header.Set("apikey", creds.APIKey)
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if len(b) > 0 && json.Unmarshal(b, apiErr) != nil {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}

// selectRows lists the rows of table matching q.
func selectRows[T any](ctx context.Context, c *Client, table string, q *Query) ([]T, error) {
	rows := make([]T, 0)
	if err := c.do(ctx, http.MethodGet, table, q, nil, &rows); err != nil {
		return nil, errors.Wrap(err, "selecting "+table)
	}
	return rows, nil
}

// selectOne returns notFound when no row matches q.
func selectOne[T any](ctx context.Context, c *Client, table string, q *Query, notFound error) (T, error) {
	var zero T
	if q.unfiltered() {
		return zero, notFound
	}
	rows, err := selectRows[T](ctx, c, table, q.Limit(1))
	if err != nil {
		return zero, trapNotFound(err, notFound)
	}
	if len(rows) == 0 {
		return zero, notFound
	}
	return rows[0], nil
}

// insertOne returns onConflict when a unique constraint rejects the row.
func insertOne[T any](ctx context.Context, c *Client, table string, row T, onConflict error) (T, error) {
	var (
		zero T
		out  []T
	)
	if err := c.do(ctx, http.MethodPost, table, nil, row, &out); err != nil {
		return zero, trapConflict(err, onConflict, "inserting into "+table)
	}
	if len(out) == 0 {
		return zero, errors.Errorf("inserting into %s: empty representation", table)
	}
	return out[0], nil
}

// updateOne patches the row with the given id.
func updateOne[T any](ctx context.Context, c *Client, table, id string, row T, notFound, onConflict error) (T, error) {
	var (
		zero T
		out  []T
	)
	if id == "" {
		return zero, notFound
	}
	if err := c.do(ctx, http.MethodPatch, table, NewQuery().Eq("id", id), row, &out); err != nil {
		return zero, trapConflict(trapNotFound(err, notFound), onConflict, "updating "+table)
	}
	if len(out) == 0 {
		return zero, notFound
	}
	return out[0], nil
}

// deleteOne returns notFound when no row had the given id.
func deleteOne(ctx context.Context, c *Client, table, id string, notFound error) error {
	if id == "" {
		return notFound
	}
	var out []json.RawMessage
	if err := c.do(ctx, http.MethodDelete, table, NewQuery().Eq("id", id), nil, &out); err != nil {
		return errors.Wrap(trapNotFound(err, notFound), "deleting from "+table)
	}
	if len(out) == 0 {
		return notFound
	}
	return nil
}

// trapNotFound maps a 404 and malformed ids (invalid uuid syntax) to notFound.
func trapNotFound(err error, notFound error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Code == "22P02") {
		return notFound
	}
	return err
}

func trapConflict(err error, onConflict error, msg string) error {
	var apiErr *APIError
	if onConflict != nil && errors.As(err, &apiErr) && apiErr.IsConflict() {
		return onConflict
	}
	if core.IsNotFound(err) {
		return err
	}
	return errors.Wrap(err, msg)
}
