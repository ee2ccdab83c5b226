package rowstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gtnh-items-tracker/internal/util"
)

// DefaultOrder makes limit/offset pages stable: PostgREST gives no row
// order otherwise, so rows could be skipped or repeated between pages.
const DefaultOrder = "datetime.asc,item.asc,quantity.asc"

// PostgRESTClient reads rows from a Supabase (PostgREST) REST endpoint.
type PostgRESTClient struct {
	BaseURL  *url.URL
	APIKey   string
	PageSize int
	// Order is sent as the order parameter on every page. Empty disables it.
	Order string
	HTTP  *http.Client
}

// NewPostgRESTClient constructs a client for base (the project URL, without /rest/v1).
func NewPostgRESTClient(base, apiKey string, pageSize int, timeout time.Duration) (*PostgRESTClient, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse supabase url: %q is not absolute", base)
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &PostgRESTClient{
		BaseURL:  u,
		APIKey:   apiKey,
		PageSize: pageSize,
		Order:    DefaultOrder,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// undefinedColumn is the Postgres error code PostgREST relays when the
// order references a column the view lacks.
const undefinedColumn = "42703"

// Select fetches every page of q.
//
// The server may cap a page below the requested limit (Supabase max-rows),
// so the offset advances by the rows actually received and only an empty
// page ends the scan. If the view lacks an order column the scan restarts
// unordered, leaving the missing column for the cleaner to report.
func (c *PostgRESTClient) Select(ctx context.Context, q Query) (*Response, error) {
	order := c.Order
	var all []Row
	for offset := 0; ; {
		page, err := c.selectPage(ctx, q, order, offset)
		if err != nil {
			var se *statusError
			if offset == 0 && order != "" && errors.As(err, &se) && se.code == http.StatusBadRequest && strings.Contains(se.body, undefinedColumn) {
				order = ""
				continue
			}
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += len(page)
	}
	return &Response{Data: all, FetchedAt: time.Now()}, nil
}

type statusError struct {
	table string
	code  int
	body  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("select %s: status %d: %s", e.table, e.code, e.body)
}

func (c *PostgRESTClient) selectPage(ctx context.Context, q Query, order string, offset int) ([]Row, error) {
	params := url.Values{}
	params.Set("select", q.Select())
	if !q.Since.IsZero() {
		params.Set(ColumnDatetime, "gt."+q.Since.UTC().Format(time.RFC3339))
	}
	if order != "" {
		params.Set("order", order)
	}
	params.Set("limit", strconv.Itoa(c.PageSize))
	params.Set("offset", strconv.Itoa(offset))

	u := c.BaseURL.JoinPath("rest", "v1", q.Table)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := ioReadAllLimit(resp.Body, 4<<10)
		return nil, &statusError{table: q.Table, code: resp.StatusCode, body: strings.TrimSpace(string(buf))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("select %s: read body: %w", q.Table, err)
	}
	rows, err := util.DecodeJSONRows(body)
	if err != nil {
		return nil, fmt.Errorf("select %s: decode: %w", q.Table, err)
	}
	return rows, nil
}

// Ping hits the REST root, which answers 200 for a valid key.
func (c *PostgRESTClient) Ping(ctx context.Context) error {
	u := c.BaseURL.JoinPath("rest", "v1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String()+"/", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("ping: status %d", resp.StatusCode)
	}
	return nil
}

// Close drops idle keep-alive connections.
func (c *PostgRESTClient) Close() error {
	c.HTTP.CloseIdleConnections()
	return nil
}

func (c *PostgRESTClient) authorize(req *http.Request) {
	if c.APIKey == "" {
		return
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
}

func ioReadAllLimit(r io.Reader, max int64) ([]byte, error) {
	buf := &bytes.Buffer{}
	if max <= 0 {
		return io.ReadAll(r)
	}
	_, err := io.CopyN(buf, r, max+1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	b := buf.Bytes()
	if int64(len(b)) > max {
		return b[:max], nil
	}
	return b, nil
}
