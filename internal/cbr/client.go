// Package cbr fetches daily reference exchange rates published by the
// Central Bank of Russia.
package cbr

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/config"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/limiter"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrUnavailable is returned when the source could not be reached
	// or responded with a non-success status.
	ErrUnavailable = errors.New("rate source unavailable")
	// ErrMalformed is returned when the document lacks a usable USD or EUR entry.
	ErrMalformed = errors.New("malformed rate source data")
)

// Quote holds roubles per one unit of each currency.
type Quote struct {
	USD decimal.Decimal
	EUR decimal.Decimal
}

// Client is the daily rates source. It performs no retries.
type Client struct {
	http     *http.Client
	throttle *limiter.Throttle
	now      func() time.Time
	url      string
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}
	if _, err := url.ParseRequestURI(cfg.CBR.URL); err != nil {
		return nil, fmt.Errorf("invalid rate source url %q: %w", cfg.CBR.URL, err)
	}

	return &Client{
		http:     &http.Client{Timeout: cfg.CBR.Timeout},
		throttle: limiter.NewThrottle(cfg.CBR.MinInterval, 1),
		now:      time.Now,
		url:      cfg.CBR.URL,
	}, nil
}

// Fetch downloads the rates document for the current date and
// extracts USD and EUR.
func (c *Client) Fetch(ctx context.Context) (Quote, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return Quote{}, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("date_req", c.now().Format("02/01/2006"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("create request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, res.Body)
		return Quote{}, fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	}

	return Parse(res.Body)
}

type valCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Valutes []valute `xml:"Valute"`
}

type valute struct {
	CharCode string `xml:"CharCode"`
	Nominal  string `xml:"Nominal"`
	Value    string `xml:"Value"`
}

// Parse reads a ValCurs document. The effective rate of every currency
// is Value / Nominal.
func Parse(r io.Reader) (Quote, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var doc valCurs
	if err := dec.Decode(&doc); err != nil {
		return Quote{}, fmt.Errorf("%w: decode document: %s", ErrMalformed, err)
	}

	rates := make(map[string]decimal.Decimal, 2)
	for _, v := range doc.Valutes {
		code := strings.ToUpper(strings.TrimSpace(v.CharCode))
		if code != "USD" && code != "EUR" {
			continue
		}
		rate, err := effectiveRate(v)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: %s: %s", ErrMalformed, code, err)
		}
		rates[code] = rate
	}

	usd, ok := rates["USD"]
	if !ok {
		return Quote{}, fmt.Errorf("%w: USD entry not found", ErrMalformed)
	}
	eur, ok := rates["EUR"]
	if !ok {
		return Quote{}, fmt.Errorf("%w: EUR entry not found", ErrMalformed)
	}

	return Quote{USD: usd, EUR: eur}, nil
}

func effectiveRate(v valute) (decimal.Decimal, error) {
	value, err := parseNumber(v.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("value: %w", err)
	}
	nominal, err := parseNumber(v.Nominal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("nominal: %w", err)
	}
	if !value.IsPositive() || !nominal.IsPositive() {
		return decimal.Zero, errors.New("value and nominal must be positive")
	}

	return value.Div(nominal), nil
}

// parseNumber accepts both comma and dot decimal separators.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, errors.New("empty number")
	}
	return decimal.NewFromString(s)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
