// Package d1 queries a hosted SQLite database over the Cloudflare D1 HTTP API.
package d1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lawrencecchen/autobuild/internal/domain"
)

// DefaultBaseURL is the public Cloudflare API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// schemaQuery lists the tables of the database.
const schemaQuery = "SELECT * FROM sqlite_schema WHERE type = 'table'"

// ignoredTables are platform tables hidden from the model.
var ignoredTables = map[string]struct{}{"_cf_KV": {}}

// Querier runs parameterised SQL against the hosted database.
type Querier interface {
	Query(ctx context.Context, sql string, params []string) (*domain.QueryResult, error)
}

// Client is the D1 query client.
type Client struct {
	baseURL    string
	accountID  string
	databaseID string
	apiToken   string
	httpClient *http.Client
}

var _ Querier = (*Client)(nil)

// NewClient creates a new D1 client.
func NewClient(baseURL, accountID, databaseID, apiToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		accountID:  accountID,
		databaseID: databaseID,
		apiToken:   apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type queryRequest struct {
	SQL    string   `json:"sql"`
	Params []string `json:"params"`
}

// Query executes sql with params. A response body in the query result shape
// is returned as a result even for non-2xx statuses, so its error list reaches
// the caller; only transport and decoding failures are errors.
func (c *Client) Query(ctx context.Context, sql string, params []string) (*domain.QueryResult, error) {
	if params == nil {
		params = []string{}
	}
	body, err := json.Marshal(queryRequest{SQL: sql, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/d1/database/%s/query", c.baseURL, c.accountID, c.databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result domain.QueryResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("D1 API error [%d]: %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.StatusCode >= 300 && len(result.Errors) == 0 {
		result.Errors = []domain.QueryError{{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}}
	}
	return &result, nil
}

// Schema returns the CREATE statements of the database's tables, one per
// line, in the order the database lists them.
func Schema(ctx context.Context, q Querier) (string, error) {
	result, err := q.Query(ctx, schemaQuery, nil)
	if err != nil {
		return "", err
	}
	if errs := result.ErrorList(); len(errs) > 0 {
		return "", fmt.Errorf("schema query failed: %s", strings.Join(errs, "; "))
	}

	var ddls []string
	for _, row := range result.Rows() {
		name, _ := row.Values["name"].(string)
		if _, skip := ignoredTables[name]; skip {
			continue
		}
		ddl, _ := row.Values["sql"].(string)
		ddls = append(ddls, ddl)
	}
	return strings.Join(ddls, "\n"), nil
}
