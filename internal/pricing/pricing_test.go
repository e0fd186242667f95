package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert/internal/config"
	apperrors "stock-alert/internal/errors"
)

const intradayBody = `{
  "Meta Data": {"2. Symbol": "AAPL"},
  "Time Series (1min)": {
    "2024-03-15 15:58:00": {"1. open": "171.1000", "4. close": "171.2000"},
    "2024-03-15 15:59:00": {"1. open": "171.5000", "4. close": "171.4000"},
    "2024-03-15 15:57:00": {"1. open": "170.9000", "4. close": "171.0000"}
  }
}`

func newServer(t *testing.T, status int, body string) (*httptest.Server, *url.Values) {
	t.Helper()
	var last url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = r.URL.Query()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func newClient(baseURL string) *AlphaVantage {
	return NewAlphaVantage(AlphaVantageConfig{
		BaseURL: baseURL,
		APIKey:  "SECRETKEY1234",
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
}

func TestAlphaVantageLatestOpen(t *testing.T) {
	srv, last := newServer(t, http.StatusOK, intradayBody)

	price, err := newClient(srv.URL).Price(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 171.5, price)

	q := *last
	assert.Equal(t, "TIME_SERIES_INTRADAY", q.Get("function"))
	assert.Equal(t, "AAPL", q.Get("symbol"))
	assert.Equal(t, "1min", q.Get("interval"))
	assert.Equal(t, "SECRETKEY1234", q.Get("apikey"))
}

func TestAlphaVantageClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperrors.FetchKind
		target error
	}{
		{"error message", http.StatusOK, `{"Error Message": "Invalid API call."}`, apperrors.FetchDataUnavailable, apperrors.ErrDataUnavailable},
		{"note rate limit", http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, apperrors.FetchRateLimited, apperrors.ErrRateLimited},
		{"information rate limit", http.StatusOK, `{"Information": "We have detected your API key and our standard API rate limit is 25 requests per day."}`, apperrors.FetchRateLimited, apperrors.ErrRateLimited},
		{"http 429", http.StatusTooManyRequests, ``, apperrors.FetchRateLimited, apperrors.ErrRateLimited},
		{"missing series", http.StatusOK, `{"Meta Data": {}}`, apperrors.FetchDataUnavailable, apperrors.ErrDataUnavailable},
		{"empty series", http.StatusOK, `{"Time Series (1min)": {}}`, apperrors.FetchDataUnavailable, apperrors.ErrDataUnavailable},
		{"not json", http.StatusOK, `<html>oops</html>`, apperrors.FetchMalformedResponse, apperrors.ErrMalformedResponse},
		{"bad open", http.StatusOK, `{"Time Series (1min)": {"2024-03-15 15:59:00": {"1. open": "n/a"}}}`, apperrors.FetchMalformedResponse, apperrors.ErrMalformedResponse},
		{"missing open", http.StatusOK, `{"Time Series (1min)": {"2024-03-15 15:59:00": {"4. close": "1.0"}}}`, apperrors.FetchMalformedResponse, apperrors.ErrMalformedResponse},
		{"server error", http.StatusBadGateway, `bad gateway`, apperrors.FetchTransportError, apperrors.ErrFetchTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)

			_, err := newClient(srv.URL).Price(context.Background(), "AAPL")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			assert.ErrorIs(t, err, tt.target)

			var fe *apperrors.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "AAPL", fe.Symbol)
		})
	}
}

func TestAlphaVantageTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewAlphaVantage(AlphaVantageConfig{
		BaseURL: srv.URL,
		APIKey:  "SECRETKEY1234",
		Timeout: 50 * time.Millisecond,
	}, zerolog.Nop())

	_, err := client.Price(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFetchTimeout)
	assert.NotContains(t, err.Error(), "SECRETKEY1234")
}

func TestAlphaVantageTransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newClient(addr).Price(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, apperrors.FetchTransportError, apperrors.KindOf(err))
	assert.NotContains(t, err.Error(), "SECRETKEY1234")
}

func TestYahooPrice(t *testing.T) {
	y := NewYahoo(zerolog.Nop())
	y.get = func(symbol string) (*finance.Quote, error) {
		assert.Equal(t, "MSFT", symbol)
		return &finance.Quote{Symbol: symbol, RegularMarketPrice: 410.25}, nil
	}

	price, err := y.Price(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 410.25, price)
}

func TestYahooErrors(t *testing.T) {
	y := NewYahoo(zerolog.Nop())

	y.get = func(string) (*finance.Quote, error) { return nil, nil }
	_, err := y.Price(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)

	y.get = func(string) (*finance.Quote, error) { return nil, errors.New("connection reset") }
	_, err = y.Price(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, apperrors.ErrFetchTransport)

	block := make(chan struct{})
	defer close(block)
	y.get = func(string) (*finance.Quote, error) {
		<-block
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = y.Price(ctx, "ZZZZ")
	assert.ErrorIs(t, err, apperrors.ErrFetchTimeout)
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Provider.Name = ProviderAlphaVantage
	cfg.Provider.Timeout = time.Second
	src, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &AlphaVantage{}, src)

	cfg.Provider.Name = ProviderYahoo
	src, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Yahoo{}, src)

	cfg.Provider.Name = "bloomberg"
	_, err = New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}
