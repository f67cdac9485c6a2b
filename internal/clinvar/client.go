// Package clinvar queries the NCBI E-utilities API for variant records.
//
// Lookup is search-then-detail: esearch.fcgi returns matching variation IDs,
// esummary.fcgi returns the record documents. Both calls use retmode=json.
package clinvar

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

	"golang.org/x/time/rate"

	"github.com/epiguide/epiguide/internal/log"
	"github.com/epiguide/epiguide/internal/parse"
)

// NCBI allows 3 requests/second without an API key and 10 with one.
// Exceeding the limit earns an IP-level block, so the client enforces it.
const (
	anonymousRPS = 3
	keyedRPS     = 10
)

const defaultTimeout = 30 * time.Second

// Record is one ClinVar variation entry. Raw carries the full esummary
// document for the record; the report step hands it to the LLM verbatim.
type Record struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Raw   json.RawMessage `json:"raw"`
}

// SearchResult is the outcome of one lookup. Zero hits is a valid result,
// not an error: IDs and Records are empty and Raw is nil.
type SearchResult struct {
	Query   string          `json:"query"`
	IDs     []string        `json:"ids"`
	Records []Record        `json:"records"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Client is a rate-limited E-utilities client for the clinvar database.
type Client struct {
	baseURL    string
	apiKey     string
	retMax     int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// Config for NewClient. BaseURL is the E-utilities root
// (https://eutils.ncbi.nlm.nih.gov/entrez/eutils); APIKey is optional.
type Config struct {
	BaseURL    string
	APIKey     string
	RetMax     int
	HTTPClient *http.Client
	Logger     log.Logger
}

// NewClient creates a ClinVar client.
func NewClient(cfg Config) *Client {
	if cfg.RetMax <= 0 {
		cfg.RetMax = 20
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	rps := anonymousRPS
	if cfg.APIKey != "" {
		rps = keyedRPS
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		retMax:     cfg.RetMax,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		logger:     cfg.Logger,
	}
}

// BuildTerm assembles the esearch term from the available fields.
// Both present: `GENE[gene] AND "variant"`. A missing (NA) field is
// dropped; both missing yields an empty term.
func BuildTerm(gene, variant string) string {
	var terms []string
	if gene != "" && gene != parse.NotAvailable {
		terms = append(terms, gene+"[gene]")
	}
	if variant != "" && variant != parse.NotAvailable {
		terms = append(terms, `"`+variant+`"`)
	}
	return strings.Join(terms, " AND ")
}

// esearchResponse is the subset of the esearch reply we use.
type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Search looks up a variant and returns the matching records in the order
// esearch returned them. An empty ID list returns an empty result and nil
// error; the caller renders the empty state.
func (c *Client) Search(ctx context.Context, gene, variant string) (SearchResult, error) {
	term := BuildTerm(gene, variant)
	result := SearchResult{Query: term}
	if term == "" {
		return result, nil
	}

	c.logger.Debug("searching ClinVar", "term", term)

	ids, err := c.esearch(ctx, term)
	if err != nil {
		return result, err
	}
	result.IDs = ids
	if len(ids) == 0 {
		c.logger.Info("no ClinVar entries found", "term", term)
		return result, nil
	}

	raw, records, err := c.esummary(ctx, ids)
	if err != nil {
		return result, err
	}
	result.Raw = raw
	result.Records = records

	c.logger.Info("ClinVar lookup complete", "term", term, "records", len(records))
	return result, nil
}

// esearch returns the variation IDs matching the term.
func (c *Client) esearch(ctx context.Context, term string) ([]string, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"term":    {term},
		"retmax":  {strconv.Itoa(c.retMax)},
		"retmode": {"json"},
	}

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var parsed esearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}
	return parsed.ESearchResult.IDList, nil
}

// esummary fetches the record documents for the given IDs in one batched
// call and returns them in ID order.
func (c *Client) esummary(ctx context.Context, ids []string) (json.RawMessage, []Record, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}

	body, err := c.get(ctx, "esummary.fcgi", params)
	if err != nil {
		return nil, nil, err
	}

	var parsed struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, fmt.Errorf("parsing esummary response: %w", err)
	}

	rawResult, err := json.Marshal(parsed.Result)
	if err != nil {
		return nil, nil, fmt.Errorf("re-encoding esummary result: %w", err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		doc, ok := parsed.Result[id]
		if !ok {
			c.logger.Warn("esummary missing record for ID", "id", id)
			continue
		}
		var fields struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(doc, &fields); err != nil {
			c.logger.Warn("unparseable esummary record", "id", id, "error", err)
		}
		title := fields.Title
		if title == "" {
			title = "Variant " + id
		}
		records = append(records, Record{ID: id, Title: title, Raw: doc})
	}
	return rawResult, records, nil
}

// get performs one rate-limited GET against an E-utilities endpoint.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for NCBI rate limit: %w", err)
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	// Accept-Encoding is left to the transport, which negotiates gzip and
	// decompresses transparently.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ClinVar %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ClinVar %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ClinVar %s returned status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
