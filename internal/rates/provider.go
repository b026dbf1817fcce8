package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/store"
)

var ErrProviderResponse = errors.New("rate provider returned no usable rates")

// HTTPProvider queries a JSON rates API of the form
// GET {base}/{YYYY-MM-DD}?base=CCY&access_key=KEY returning
// {"base": "...", "date": "...", "rates": {"CCY": rate}}.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logrus.Logger
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, log *logrus.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type ratesPayload struct {
	Success *bool                      `json:"success"`
	Base    string                     `json:"base"`
	Date    string                     `json:"date"`
	Rates   map[string]decimal.Decimal `json:"rates"`
	Error   *struct {
		Info string `json:"info"`
	} `json:"error"`
}

func (p *HTTPProvider) Rates(ctx context.Context, base string, date time.Time) (Table, error) {
	endpoint, err := url.Parse(p.baseURL + "/" + Day(date).Format("2006-01-02"))
	if err != nil {
		return Table{}, fmt.Errorf("build rate url: %w", err)
	}
	q := endpoint.Query()
	q.Set("base", strings.ToUpper(base))
	if p.apiKey != "" {
		q.Set("access_key", p.apiKey)
	}
	endpoint.RawQuery = q.Encode()

	body, err := fetch(ctx, p.client, endpoint.String())
	if err != nil {
		return Table{}, err
	}
	var payload ratesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Table{}, fmt.Errorf("decode rates: %w", err)
	}
	if payload.Success != nil && !*payload.Success {
		info := "unknown error"
		if payload.Error != nil && payload.Error.Info != "" {
			info = payload.Error.Info
		}
		return Table{}, fmt.Errorf("%w: %s", ErrProviderResponse, info)
	}
	if len(payload.Rates) == 0 {
		return Table{}, ErrProviderResponse
	}
	table := Table{
		Base:   strings.ToUpper(base),
		Date:   Day(date),
		Source: store.RateSourceProvider,
		Rates:  make(map[string]decimal.Decimal, len(payload.Rates)),
	}
	if payload.Base != "" {
		table.Base = strings.ToUpper(payload.Base)
	}
	if d, err := time.Parse("2006-01-02", payload.Date); err == nil {
		table.Date = d
	}
	for ccy, rate := range payload.Rates {
		table.Rates[strings.ToUpper(ccy)] = rate
	}
	if p.log != nil {
		p.log.WithFields(logrus.Fields{"base": table.Base, "date": table.Date.Format("2006-01-02"), "count": len(table.Rates)}).Debug("fetched provider rates")
	}
	return table, nil
}

// XMLProvider reads an ECB style reference feed: Cube elements carrying a
// time attribute, each holding Cube currency/rate children quoted against EUR.
type XMLProvider struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

func NewXMLProvider(feedURL string, timeout time.Duration, log *logrus.Logger) *XMLProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &XMLProvider{url: feedURL, client: &http.Client{Timeout: timeout}, log: log}
}

// Rates ignores base: the feed is always EUR based and Table.Cross handles
// any pair both sides of which are quoted. The newest day not after date wins.
func (p *XMLProvider) Rates(ctx context.Context, _ string, date time.Time) (Table, error) {
	body, err := fetch(ctx, p.client, p.url)
	if err != nil {
		return Table{}, err
	}
	return parseReferenceFeed(body, Day(date))
}

func parseReferenceFeed(body []byte, day time.Time) (Table, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return Table{}, fmt.Errorf("parse rate feed: %w", err)
	}
	var best *etree.Element
	var bestDay time.Time
	for _, cube := range doc.FindElements("//Cube[@time]") {
		d, err := time.Parse("2006-01-02", cube.SelectAttrValue("time", ""))
		if err != nil || d.After(day) {
			continue
		}
		if best == nil || d.After(bestDay) {
			best, bestDay = cube, d
		}
	}
	if best == nil {
		return Table{}, fmt.Errorf("%w: no feed day on or before %s", ErrProviderResponse, day.Format("2006-01-02"))
	}
	table := Table{Base: "EUR", Date: bestDay, Source: store.RateSourceFallback, Rates: map[string]decimal.Decimal{}}
	for _, quote := range best.SelectElements("Cube") {
		ccy := strings.ToUpper(quote.SelectAttrValue("currency", ""))
		rate, err := decimal.NewFromString(quote.SelectAttrValue("rate", ""))
		if ccy == "" || err != nil {
			continue
		}
		table.Rates[ccy] = rate
	}
	if len(table.Rates) == 0 {
		return Table{}, ErrProviderResponse
	}
	return table, nil
}

// ChainProvider tries each provider in turn and returns the first success.
type ChainProvider struct {
	providers []Provider
	log       *logrus.Logger
}

func NewChainProvider(log *logrus.Logger, providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers, log: log}
}

func (c *ChainProvider) Rates(ctx context.Context, base string, date time.Time) (Table, error) {
	var errs []error
	for i, p := range c.providers {
		table, err := p.Rates(ctx, base, date)
		if err == nil {
			return table, nil
		}
		if c.log != nil {
			c.log.WithError(err).WithField("provider", i).Warn("rate provider failed, trying next")
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Table{}, ErrProviderResponse
	}
	return Table{}, errors.Join(errs...)
}

func fetch(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
