package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// defaultPageSizeMax mirrors the provider's documented page-size ceiling.
const defaultPageSizeMax = 1000

// Filter selects which messages a listing returns. From/To give a
// directional pair query; Since gives a whole-account query with a date
// lower bound. Zero values are omitted from the request.
type Filter struct {
	From  string
	To    string
	Since time.Time
}

// ClientOptions configures a provider REST client.
type ClientOptions struct {
	BaseURL     string
	AccountSID  string
	AuthToken   string
	HTTPClient  *http.Client
	PageSizeMax int
}

// Client talks to the remote message provider's REST API. It does not
// retry: failures map to UnavailableError and retrying a whole sync run is
// the operator's call.
type Client struct {
	baseURL     string
	accountSID  string
	authToken   string
	httpClient  *http.Client
	pageSizeMax int
	logger      *zap.Logger
}

// NewClient creates a provider client with sane defaults.
func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	pageSizeMax := opts.PageSizeMax
	if pageSizeMax <= 0 {
		pageSizeMax = defaultPageSizeMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     baseURL,
		accountSID:  opts.AccountSID,
		authToken:   opts.AuthToken,
		httpClient:  httpClient,
		pageSizeMax: pageSizeMax,
		logger:      logger,
	}
}

type messagePage struct {
	Messages    []wireRecord `json:"messages"`
	NextPageURI string       `json:"next_page_uri"`
}

type mediaPage struct {
	MediaList []struct {
		URI string `json:"uri"`
	} `json:"media_list"`
}

// ListMessages fetches up to limit records matching the filter, following
// pagination. The page size is clamped to [1, providerMax]. Results come
// back in whatever order the provider chooses; ordering is the merger's
// job.
func (c *Client) ListMessages(ctx context.Context, f Filter, limit int) ([]Record, error) {
	pageSize := limit
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > c.pageSizeMax {
		pageSize = c.pageSizeMax
	}

	params := url.Values{}
	params.Set("PageSize", strconv.Itoa(pageSize))
	if f.From != "" {
		params.Set("From", f.From)
	}
	if f.To != "" {
		params.Set("To", f.To)
	}
	if !f.Since.IsZero() {
		params.Set("DateSent>", f.Since.UTC().Format("2006-01-02"))
	}

	path := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json?%s", c.accountSID, params.Encode())

	var records []Record
	for path != "" && (limit <= 0 || len(records) < limit) {
		var page messagePage
		if err := c.get(ctx, "list messages", path, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Messages {
			records = append(records, w.toRecord())
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		path = page.NextPageURI
	}

	c.logger.Debug("listed remote messages",
		zap.Int("count", len(records)),
		zap.String("from", f.From),
		zap.String("to", f.To))
	return records, nil
}

// ListMedia fetches the media URIs attached to a message.
func (c *Client) ListMedia(ctx context.Context, sid string) ([]string, error) {
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages/%s/Media.json", c.accountSID, sid)

	var page mediaPage
	if err := c.get(ctx, "list media", path, &page); err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(page.MediaList))
	for _, m := range page.MediaList {
		uri := m.URI
		if strings.HasPrefix(uri, "/") {
			uri = c.baseURL + uri
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &UnavailableError{Op: op, Err: err}
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UnavailableError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &UnavailableError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UnavailableError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", apiErrorMessage(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UnavailableError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// apiErrorMessage pulls the provider's error message out of a failure body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("code %d: %s", apiErr.Code, apiErr.Message)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
