package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const resourcePath = "/api/resource/"

// Client is a REST client for a single ERP site.
type Client struct {
	// baseURL is the ERP site URL without a trailing slash.
	baseURL string

	// credentials authenticate every request.
	credentials Credentials

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// userAgent is sent with every request.
	userAgent string
}

// dataEnvelope wraps every ERP resource response.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// NewClient creates a new ERP client from store credentials.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/"),
		credentials: creds,
		httpClient:  httpClient,
		userAgent:   o.userAgent,
	}, nil
}

// Create inserts a new record of the given doctype.
func (c *Client) Create(ctx context.Context, doctype string, data any) (Record, error) {
	var rec Record
	if err := c.doRequest(ctx, http.MethodPost, c.resourceURL(doctype, ""), nil, data, &rec); err != nil {
		return nil, fmt.Errorf("creating %s: %w", doctype, err)
	}
	return rec, nil
}

// Update writes the given fields to an existing record. Fields absent from data are left untouched.
func (c *Client) Update(ctx context.Context, doctype string, name string, data any) (Record, error) {
	var rec Record
	if err := c.doRequest(ctx, http.MethodPut, c.resourceURL(doctype, name), nil, data, &rec); err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", doctype, name, err)
	}
	return rec, nil
}

// Get fetches a record by name. A missing record is an APIError with CodeNotFound.
func (c *Client) Get(ctx context.Context, doctype string, name string) (Record, error) {
	var rec Record
	if err := c.doRequest(ctx, http.MethodGet, c.resourceURL(doctype, name), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", doctype, name, err)
	}
	return rec, nil
}

// List returns the records of a doctype matching params.
func (c *Client) List(ctx context.Context, doctype string, params ListParams) ([]Record, error) {
	query := url.Values{}
	if len(params.Filters) > 0 {
		b, err := json.Marshal(params.Filters)
		if err != nil {
			return nil, fmt.Errorf("encoding filters: %w", err)
		}
		query.Set("filters", string(b))
	}
	if len(params.Fields) > 0 {
		b, err := json.Marshal(params.Fields)
		if err != nil {
			return nil, fmt.Errorf("encoding fields: %w", err)
		}
		query.Set("fields", string(b))
	}
	if params.Limit > 0 {
		query.Set("limit_page_length", strconv.Itoa(params.Limit))
	}
	if params.OrderBy != "" {
		query.Set("order_by", params.OrderBy)
	}

	var recs []Record
	if err := c.doRequest(ctx, http.MethodGet, c.resourceURL(doctype, ""), query, nil, &recs); err != nil {
		return nil, fmt.Errorf("listing %s: %w", doctype, err)
	}
	return recs, nil
}

// Delete removes a record by name.
func (c *Client) Delete(ctx context.Context, doctype string, name string) error {
	if err := c.doRequest(ctx, http.MethodDelete, c.resourceURL(doctype, name), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting %s %s: %w", doctype, name, err)
	}
	return nil
}

// Exists resolves a lookup against the ERP.
// A missing record is reported as (nil, false, nil); any other failure is returned.
func (c *Client) Exists(ctx context.Context, doctype string, lookup Lookup) (Record, bool, error) {
	if lookup.externalID != "" {
		recs, err := c.List(ctx, doctype, ListParams{
			Fields:  []string{"*"},
			Filters: []Filter{{Field: FieldExternalID, Operator: "=", Value: lookup.externalID}},
			Limit:   1,
		})
		if err != nil {
			return nil, false, err
		}
		if len(recs) == 0 {
			return nil, false, nil
		}
		return recs[0], true, nil
	}

	if lookup.name == "" {
		return nil, false, errors.New("lookup requires a name or an external ID")
	}

	rec, err := c.Get(ctx, doctype, lookup.name)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// FindByExternalID returns the first record linked to externalID, or nil.
// Any lookup failure is reported as nil.
func (c *Client) FindByExternalID(ctx context.Context, doctype string, externalID string) Record {
	rec, found, err := c.Exists(ctx, doctype, ByExternalID(externalID))
	if err != nil || !found {
		return nil
	}
	return rec
}

// Action runs a document method such as "submit" or "cancel" on an existing record.
// doc must carry its doctype and name.
func (c *Client) Action(ctx context.Context, doc Record, action string) (Record, error) {
	doctype := doc.String("doctype")
	name := doc.Name()
	if doctype == "" || name == "" {
		return nil, errors.New("action requires a document with doctype and name")
	}
	if action == "" {
		return nil, errors.New("action name is required")
	}

	query := url.Values{}
	query.Set("run_method", action)

	var rec Record
	if err := c.doRequest(ctx, http.MethodPost, c.resourceURL(doctype, name), query, doc, &rec); err != nil {
		return nil, fmt.Errorf("running %s on %s %s: %w", action, doctype, name, err)
	}
	return rec, nil
}

// resourceURL builds the REST URL for a doctype, optionally addressing a single record.
func (c *Client) resourceURL(doctype string, name string) string {
	u := c.baseURL + resourcePath + url.PathEscape(doctype)
	if name != "" {
		u += "/" + url.PathEscape(name)
	}
	return u
}

// doRequest executes an HTTP request with authentication and JSON encoding.
// Every failure is returned as an *APIError.
func (c *Client) doRequest(
	ctx context.Context,
	method string,
	reqURL string,
	query url.Values,
	body any,
	result any,
) error {
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return newStatusError(resp.StatusCode, respBody)
	}

	if result == nil {
		return nil
	}

	var envelope dataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}

	return nil
}

// authorization returns the token header value for the store credentials.
func (c *Client) authorization() string {
	return fmt.Sprintf("token %s:%s", c.credentials.APIKey, c.credentials.APISecret)
}
