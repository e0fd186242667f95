package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
	"stock-alert/internal/security"
)

// DefaultAlphaVantageURL is the Alpha Vantage query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

const intradaySeriesKey = "Time Series (1min)"

// AlphaVantageConfig configures an AlphaVantage client.
type AlphaVantageConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AlphaVantage reads the latest one-minute intraday bar.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewAlphaVantage creates a new Alpha Vantage price source.
func NewAlphaVantage(cfg AlphaVantageConfig, logger zerolog.Logger) *AlphaVantage {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAlphaVantageURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AlphaVantage{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With().Str("provider", ProviderAlphaVantage).Logger(),
	}
}

// Price returns the open of the most recent intraday bar for symbol.
func (a *AlphaVantage) Price(ctx context.Context, symbol string) (price float64, err error) {
	start := time.Now()
	defer func() {
		logging.LogAPICall(logging.WithSymbol(a.logger, symbol), http.MethodGet, "TIME_SERIES_INTRADAY", time.Since(start), err)
	}()

	params := url.Values{}
	params.Set("function", "TIME_SERIES_INTRADAY")
	params.Set("symbol", symbol)
	params.Set("interval", "1min")
	params.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchTransportError, a.redact(err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, apperrors.NewFetchError(symbol, classifyTransport(err), a.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchRateLimited,
			fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchTransportError,
			fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, apperrors.NewFetchError(symbol, classifyTransport(err), a.redact(err))
	}

	return parseIntraday(symbol, body)
}

// redact strips the API key echoed in url.Error messages.
func (a *AlphaVantage) redact(err error) error {
	msg := security.MaskSensitive(err.Error())
	if a.apiKey != "" {
		msg = strings.ReplaceAll(msg, a.apiKey, security.MaskCredential(a.apiKey))
	}
	// Keep timeouts detectable after the message is rewritten.
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, context.DeadlineExceeded)
	}
	return errors.New(msg)
}

func parseIntraday(symbol string, body []byte) (float64, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchMalformedResponse,
			fmt.Errorf("decoding response: %w", err))
	}

	if raw, ok := payload["Error Message"]; ok {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchDataUnavailable,
			errors.New(textField(raw)))
	}

	for _, key := range []string{"Note", "Information"} {
		if raw, ok := payload[key]; ok {
			if msg := textField(raw); isRateLimitMessage(msg) {
				return 0, apperrors.NewFetchError(symbol, apperrors.FetchRateLimited, errors.New(msg))
			}
		}
	}

	var series map[string]map[string]string
	if raw, ok := payload[intradaySeriesKey]; ok {
		if err := json.Unmarshal(raw, &series); err != nil {
			return 0, apperrors.NewFetchError(symbol, apperrors.FetchMalformedResponse,
				fmt.Errorf("decoding time series: %w", err))
		}
	}
	if len(series) == 0 {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchDataUnavailable,
			fmt.Errorf("no data returned for %s", symbol))
	}

	timestamps := make([]string, 0, len(series))
	for ts := range series {
		timestamps = append(timestamps, ts)
	}
	sort.Strings(timestamps)
	latest := timestamps[len(timestamps)-1]

	open, ok := series[latest]["1. open"]
	if !ok {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchMalformedResponse,
			fmt.Errorf("bar %s has no open price", latest))
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(open), 64)
	if err != nil {
		return 0, apperrors.NewFetchError(symbol, apperrors.FetchMalformedResponse,
			fmt.Errorf("parsing open price %q: %w", open, err))
	}
	return price, nil
}

func textField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"call frequency", "rate limit", "requests per"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
