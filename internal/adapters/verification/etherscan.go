package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// EtherscanClient talks to an Etherscan-compatible contract API. Requests
// share one rate limiter since explorers throttle per API key.
type EtherscanClient struct {
	client  *http.Client
	apiURL  string
	apiKey  string
	chainID uint64
	network string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewEtherscanClient creates a client for the resolved network's explorer
func NewEtherscanClient(cfg *config.RuntimeConfig, log *slog.Logger) *EtherscanClient {
	c := &EtherscanClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: newLimiter(cfg.Verify.RateLimit),
		log:     log.With("component", "explorer"),
	}
	if n := cfg.Network; n != nil {
		c.apiURL = n.ExplorerAPIURL
		c.apiKey = n.ExplorerAPIKey
		c.chainID = n.ChainID
		c.network = n.Name
	}
	return c
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// etherscanResponse is the envelope every endpoint answers with. Result is a
// string for most actions and an array for getsourcecode.
type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r *etherscanResponse) text() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return r.Message
}

// IsVerified reports whether the explorer already has source for address
func (c *EtherscanClient) IsVerified(ctx context.Context, address string) (bool, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)

	resp, err := c.do(ctx, http.MethodGet, params)
	if err != nil {
		return false, err
	}
	if resp.Status != "1" {
		return false, c.failure(resp)
	}

	var entries []struct {
		SourceCode string `json:"SourceCode"`
	}
	if err := json.Unmarshal(resp.Result, &entries); err != nil {
		return false, fmt.Errorf("failed to parse source code response: %w", err)
	}
	return len(entries) > 0 && entries[0].SourceCode != "", nil
}

// Submit sends the standard JSON input for verification
func (c *EtherscanClient) Submit(ctx context.Context, req usecase.VerificationRequest) (*usecase.ExplorerResponse, error) {
	form := url.Values{}
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.Address)
	form.Set("sourceCode", string(req.StandardJSONInput))
	form.Set("codeformat", "solidity-standard-json-input")
	form.Set("contractname", req.ContractName)
	form.Set("compilerversion", req.CompilerVersion)
	if req.ConstructorArgs != "" {
		form.Set("constructorArguements", req.ConstructorArgs) // sic, the API misspells it
	}

	resp, err := c.do(ctx, http.MethodPost, form)
	if err != nil {
		return nil, err
	}
	if resp.Status == "1" {
		guid := resp.text()
		c.log.Debug("verification submitted", "address", req.Address, "guid", guid)
		return &usecase.ExplorerResponse{Outcome: usecase.OutcomeQueued, GUID: guid}, nil
	}
	return c.classify(resp)
}

// CheckStatus polls a submission by guid
func (c *EtherscanClient) CheckStatus(ctx context.Context, guid string) (*usecase.ExplorerResponse, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "checkverifystatus")
	params.Set("guid", guid)

	resp, err := c.do(ctx, http.MethodGet, params)
	if err != nil {
		return nil, err
	}
	out, err := c.classify(resp)
	if err != nil {
		return nil, err
	}
	if out.Outcome == usecase.OutcomeQueued {
		out.GUID = guid
	}
	return out, nil
}

// classify maps the explorer's free-text answer onto an outcome
func (c *EtherscanClient) classify(resp *etherscanResponse) (*usecase.ExplorerResponse, error) {
	text := resp.text()
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "already verified"):
		return &usecase.ExplorerResponse{Outcome: usecase.OutcomeAlreadyVerified, Reason: text}, nil
	case strings.Contains(lower, "pending in queue"), strings.Contains(lower, "in progress"):
		return &usecase.ExplorerResponse{Outcome: usecase.OutcomeQueued, Reason: text}, nil
	case strings.Contains(lower, "unable to locate contractcode"), strings.Contains(lower, "unable to locate contract code"):
		return &usecase.ExplorerResponse{Outcome: usecase.OutcomeNotIndexed, Reason: text}, nil
	case strings.Contains(lower, "pass - verified"):
		return &usecase.ExplorerResponse{Outcome: usecase.OutcomeVerified}, nil
	case isRateLimited(lower):
		return nil, fmt.Errorf("%w: %s", domain.ErrExplorerUnavailable, text)
	case resp.Status == "1":
		return &usecase.ExplorerResponse{Outcome: usecase.OutcomeVerified}, nil
	}
	return &usecase.ExplorerResponse{Outcome: usecase.OutcomeRejected, Reason: text}, nil
}

func (c *EtherscanClient) failure(resp *etherscanResponse) error {
	text := resp.text()
	if isRateLimited(strings.ToLower(text)) {
		return fmt.Errorf("%w: %s", domain.ErrExplorerUnavailable, text)
	}
	return fmt.Errorf("explorer error: %s", text)
}

func isRateLimited(lower string) bool {
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many")
}

func (c *EtherscanClient) do(ctx context.Context, method string, params url.Values) (*etherscanResponse, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("no explorer API configured for network %s", c.network)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("apikey", c.apiKey)
	if c.chainID != 0 {
		params.Set("chainid", strconv.FormatUint(c.chainID, 10))
	}

	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build explorer request: %w", err)
	}

	resp, err := c.client.Do(req) //nolint:gosec // URL is the configured explorer endpoint
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrExplorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrExplorerUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out etherscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse explorer response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

var _ usecase.ExplorerClient = (*EtherscanClient)(nil)
