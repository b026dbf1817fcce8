package services

import (
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/config"
	"donorcrm/internal/db"
	"donorcrm/internal/integrity"
	"donorcrm/internal/notify"
	"donorcrm/internal/rates"
	"donorcrm/internal/report"
	"donorcrm/internal/store"
)

// NewProvider chains the live JSON provider and the XML reference feed.
// Either source is disabled by setting its URL to "off".
func NewProvider(cfg config.Config, log *logrus.Logger) rates.Provider {
	var providers []rates.Provider
	if enabled(cfg.RateAPIURL) {
		providers = append(providers, rates.NewHTTPProvider(cfg.RateAPIURL, cfg.RateAPIKey, cfg.RateAPITimeout, log))
	}
	if enabled(cfg.RateFallbackXMLURL) {
		providers = append(providers, rates.NewXMLProvider(cfg.RateFallbackXMLURL, cfg.RateAPITimeout, log))
	}
	switch len(providers) {
	case 0:
		return nil
	case 1:
		return providers[0]
	}
	return rates.NewChainProvider(log, providers...)
}

func enabled(url string) bool {
	url = strings.TrimSpace(url)
	return url != "" && !strings.EqualFold(url, "off")
}

// NewIntegrityDeps builds the Postgres-backed dependencies of an
// IntegrityService.
func NewIntegrityDeps(cfg config.Config, database *sqlx.DB, log *logrus.Logger) IntegrityDeps {
	return IntegrityDeps{
		DB:     database,
		Schema: store.NewSchemaStore(database),
		Sources: integrity.Sources{
			Pledges:      store.NewPledgeStore(database),
			Plans:        store.NewPaymentPlanStore(database),
			Payments:     store.NewPaymentStore(database),
			Installments: store.NewInstallmentStore(database),
			Allocations:  store.NewAllocationStore(database),
		},
		Rates:       store.NewExchangeStore(database),
		Provider:    NewProvider(cfg, log),
		TxRunner:    db.NewTxRunner(database),
		Corrections: store.NewCorrectionStore(),
		Audit:       store.NewAuditStore(database),
		Reports:     report.NewWriter(cfg.ReportDir),
		Notifier:    notify.NewSender(cfg, log),
		Log:         log,
		RateOptions: rates.Options{
			QuoteBase:       cfg.RateBaseCurrency,
			StaleWindowDays: cfg.RateStaleWindow,
		},
		DatePolicy: cfg.RateDatePolicy,
	}
}

// NewLogger builds the JSON logger every binary injects.
func NewLogger(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
