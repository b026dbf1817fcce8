package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorcrm/internal/store"
)

const referenceFeed = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<Cube>
		<Cube time="2024-06-07">
			<Cube currency="USD" rate="1.0800"/>
			<Cube currency="ILS" rate="4.0500"/>
		</Cube>
		<Cube time="2024-06-06">
			<Cube currency="USD" rate="1.0900"/>
			<Cube currency="ILS" rate="4.1000"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func TestHTTPProviderRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2024-06-10", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "secret", r.URL.Query().Get("access_key"))
		_, _ = w.Write([]byte(`{"success":true,"base":"USD","date":"2024-06-10","rates":{"ILS":3.7,"gbp":"0.8"}}`))
	}))
	defer srv.Close()

	log, _ := logtest.NewNullLogger()
	p := NewHTTPProvider(srv.URL+"/", "secret", time.Second, log)
	table, err := p.Rates(context.Background(), "usd", time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "USD", table.Base)
	assert.Equal(t, store.RateSourceProvider, table.Source)
	assert.True(t, table.Rates["GBP"].Equal(decimal.RequireFromString("0.8")))

	rate, err := table.Cross("GBP", "ILS")
	require.NoError(t, err)
	assert.Equal(t, "4.625", rate.String())
}

func TestHTTPProviderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":{"info":"invalid access key"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "bad", time.Second, nil).Rates(context.Background(), "USD", time.Now())
	require.ErrorIs(t, err, ErrProviderResponse)
	assert.Contains(t, err.Error(), "invalid access key")
}

func TestHTTPProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "", 20*time.Millisecond, nil).Rates(context.Background(), "USD", time.Now())
	assert.Error(t, err)
}

func TestXMLProviderPicksNewestDayNotAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(referenceFeed))
	}))
	defer srv.Close()

	p := NewXMLProvider(srv.URL, time.Second, nil)
	table, err := p.Rates(context.Background(), "USD", time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "EUR", table.Base)
	assert.Equal(t, store.RateSourceFallback, table.Source)
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), table.Date)

	rate, err := table.Cross("USD", "ILS")
	require.NoError(t, err)
	assert.Equal(t, "3.75", rate.String())

	table, err = p.Rates(context.Background(), "USD", time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, table.Rates["USD"].Equal(decimal.RequireFromString("1.09")))

	_, err = p.Rates(context.Background(), "USD", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrProviderResponse)
}

func TestChainProviderFallsBack(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	failing := &countingProvider{err: errors.New("down")}
	working := &countingProvider{table: Table{Base: "EUR", Rates: map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)}}}

	table, err := NewChainProvider(log, failing, working).Rates(context.Background(), "USD", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "EUR", table.Base)
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, hook.AllEntries(), 1)

	_, err = NewChainProvider(log, failing).Rates(context.Background(), "USD", time.Now())
	assert.Error(t, err)
}

func TestTableCrossMissingQuote(t *testing.T) {
	table := Table{Base: "USD", Rates: map[string]decimal.Decimal{"ILS": decimal.RequireFromString("3.7")}}
	_, err := table.Cross("ILS", "JPY")
	assert.ErrorIs(t, err, ErrPairNotQuoted)

	rate, err := table.Cross("ILS", "USD")
	require.NoError(t, err)
	assert.Equal(t, "0.27027027", rate.String())
}
