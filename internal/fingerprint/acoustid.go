package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// AcoustIDClient queries the AcoustID lookup API.
type AcoustIDClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	limiter    *rate.Limiter
}

// NewAcoustIDClient creates a client for the given application key. A zero
// timeout means 10 seconds.
func NewAcoustIDClient(apiKey string, timeout time.Duration) *AcoustIDClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AcoustIDClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     "https://api.acoustid.org",
		apiKey:     apiKey,
		// AcoustID allows 3 requests per second
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}
}

// Match is one AcoustID result with its linked recordings.
type Match struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []Recording `json:"recordings"`
}

// Recording is a MusicBrainz recording linked to a fingerprint.
type Recording struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []Artist `json:"artists"`
}

// Artist is a credited artist of a recording, in credit order.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type lookupResponse struct {
	Status  string  `json:"status"`
	Results []Match `json:"results"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Lookup returns the matches for a fingerprint, best score first.
func (c *AcoustIDClient) Lookup(ctx context.Context, fp Fingerprint) ([]Match, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("client", c.apiKey)
	params.Set("meta", "recordings")
	params.Set("duration", strconv.Itoa(fp.Duration))
	params.Set("fingerprint", fp.Fingerprint)

	reqURL := fmt.Sprintf("%s/v2/lookup?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create acoustid request: %w", err)
	}
	req.Header.Set("User-Agent", "tubetag/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("acoustid request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read acoustid response: %w", err)
	}

	var lookup lookupResponse
	if err := json.Unmarshal(body, &lookup); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("acoustid returned %d: %s", resp.StatusCode, body)
		}
		return nil, fmt.Errorf("failed to decode acoustid response: %w", err)
	}
	if lookup.Status != "ok" {
		if lookup.Error != nil {
			return nil, fmt.Errorf("acoustid error %d: %s", lookup.Error.Code, lookup.Error.Message)
		}
		return nil, fmt.Errorf("acoustid returned status %q", lookup.Status)
	}

	sort.SliceStable(lookup.Results, func(i, j int) bool {
		return lookup.Results[i].Score > lookup.Results[j].Score
	})
	return lookup.Results, nil
}
