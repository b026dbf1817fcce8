package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/db"
	"donorcrm/internal/integrity"
	"donorcrm/internal/models"
	"donorcrm/internal/rates"
	"donorcrm/internal/report"
	"donorcrm/internal/store"
	"donorcrm/internal/validator"
	"donorcrm/internal/websocket"
)

var (
	ErrRunInProgress    = errors.New("an integrity run is already in progress")
	ErrDatabaseDown     = errors.New("database unreachable")
	ErrReportNotWritten = errors.New("report could not be written")
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type SchemaChecker interface {
	Check(ctx context.Context) error
}

type ReportWriter interface {
	Write(r report.Report) (string, error)
}

type Notifier interface {
	Notify(r report.Report, reportPath string) error
}

type ProgressPublisher interface {
	Publish(event websocket.ProgressEvent)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type IntegrityDeps struct {
	DB          Pinger
	Schema      SchemaChecker
	Sources     integrity.Sources
	Rates       rates.RateStore
	Provider    rates.Provider
	TxRunner    db.TxRunner
	Corrections integrity.CorrectionApplier
	Audit       AuditStore
	Reports     ReportWriter
	Notifier    Notifier
	Progress    ProgressPublisher
	Log         *logrus.Logger
	RateOptions rates.Options
	DatePolicy  string
	Now         func() time.Time
}

// IntegrityService runs the audit, fix and report pipeline. Runs are
// exclusive: at most one executes at a time per service.
type IntegrityService struct {
	deps IntegrityDeps
	mu   sync.Mutex
}

func NewIntegrityService(deps IntegrityDeps) *IntegrityService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	if deps.RateOptions.Now == nil {
		deps.RateOptions.Now = deps.Now
	}
	return &IntegrityService{deps: deps}
}

type CheckOptions struct {
	Scope integrity.Scope
	Fix   bool
}

type Outcome struct {
	RunID      string
	Report     report.Report
	ReportPath string
}

// CriticalRemaining is the number of critical issues still present once the
// run finished, after fixes when fixes were applied.
func (o Outcome) CriticalRemaining() int {
	if o.Report.Remaining != nil {
		return o.Report.Remaining.Critical
	}
	return o.Report.Summary.Critical
}

func (s *IntegrityService) Check(ctx context.Context, opts CheckOptions) (Outcome, error) {
	if !s.mu.TryLock() {
		return Outcome{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if opts.Scope == "" {
		opts.Scope = integrity.ScopeFull
	}
	out := Outcome{RunID: uuid.NewString()}
	log := s.deps.Log.WithFields(logrus.Fields{"run_id": out.RunID, "scope": opts.Scope})
	s.publish(websocket.ProgressEvent{RunID: out.RunID, Stage: websocket.StageStarted, Scope: string(opts.Scope)})

	outcome, err := s.run(ctx, opts, out, log)
	if err != nil {
		log.WithError(err).Error("integrity run failed")
		s.publish(websocket.ProgressEvent{RunID: out.RunID, Stage: websocket.StageFailed, Scope: string(opts.Scope), Error: err.Error()})
		return Outcome{}, err
	}
	return outcome, nil
}

func (s *IntegrityService) run(ctx context.Context, opts CheckOptions, out Outcome, log *logrus.Entry) (Outcome, error) {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctx); err != nil {
			return out, fmt.Errorf("%w: %v", ErrDatabaseDown, err)
		}
	}
	if s.deps.Schema != nil {
		if err := s.deps.Schema.Check(ctx); err != nil {
			return out, err
		}
	}

	resolver := rates.NewResolver(s.deps.Rates, s.deps.Provider, s.deps.Log, s.deps.RateOptions)
	checker := integrity.NewChecker(s.deps.Sources, resolver, s.deps.Log, integrity.CheckerOptions{
		DatePolicy: s.deps.DatePolicy,
		Now:        s.deps.Now,
	})

	res, err := checker.Run(ctx, opts.Scope)
	if err != nil {
		return out, fmt.Errorf("audit: %w", err)
	}
	rep := report.FromResult(res, s.deps.Now())
	rep.RunID = out.RunID
	s.publish(websocket.ProgressEvent{
		RunID: out.RunID, Stage: websocket.StageAudited, Scope: string(res.Scope),
		Issues: res.Summary.Total, Critical: res.Summary.Critical,
	})

	if opts.Fix {
		fixer := integrity.NewFixer(s.deps.TxRunner, s.deps.Corrections, s.deps.Audit, checker, s.deps.Log)
		fixes := fixer.Apply(ctx, integrity.Critical(res.Issues))
		rep.Fixes = &fixes

		after, err := checker.Run(ctx, opts.Scope)
		if err != nil {
			return out, fmt.Errorf("re-audit: %w", err)
		}
		rep.Remaining = &after.Summary
		s.publish(websocket.ProgressEvent{
			RunID: out.RunID, Stage: websocket.StageFixed, Scope: string(res.Scope),
			Issues: after.Summary.Total, Critical: after.Summary.Critical,
			Applied: fixes.Applied + fixes.Recomputed, Failed: fixes.Failed,
		})
	}

	path, err := s.deps.Reports.Write(rep)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrReportNotWritten, err)
	}
	out.Report, out.ReportPath = rep, path

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Notify(rep, path); err != nil {
			log.WithError(err).Warn("summary notification failed")
		}
	}

	fields := logrus.Fields{
		"issues":             rep.Summary.Total,
		"critical":           rep.Summary.Critical,
		"warning":            rep.Summary.Warning,
		"affected_contacts":  rep.Summary.AffectedContacts,
		"awaiting":           len(rep.AwaitingConversion),
		"skipped":            rep.SkippedRecords,
		"critical_remaining": out.CriticalRemaining(),
		"report":             path,
	}
	if rep.Fixes != nil {
		fields["fixes_applied"] = rep.Fixes.Applied
		fields["fixes_recomputed"] = rep.Fixes.Recomputed
		fields["fixes_failed"] = rep.Fixes.Failed
	}
	log.WithFields(fields).Info("integrity run finished")
	s.publish(websocket.ProgressEvent{
		RunID: out.RunID, Stage: websocket.StageFinished, Scope: string(res.Scope),
		Issues: rep.Summary.Total, Critical: out.CriticalRemaining(), Report: path,
	})
	return out, nil
}

func (s *IntegrityService) publish(event websocket.ProgressEvent) {
	if s.deps.Progress == nil {
		return
	}
	event.Timestamp = s.deps.Now().UTC()
	s.deps.Progress.Publish(event)
}

// AddRate validates and stores a manual rate, replacing any rate already
// cached for the same pair and day.
func (s *IntegrityService) AddRate(ctx context.Context, actorID, from, to, rate, date string) (models.ExchangeRate, error) {
	in, err := validator.ExchangeRate(from, to, rate, date, s.deps.Now())
	if err != nil {
		return models.ExchangeRate{}, err
	}
	row := models.ExchangeRate{
		ID:             uuid.NewString(),
		BaseCurrency:   in.From,
		TargetCurrency: in.To,
		Rate:           in.Rate,
		Date:           in.Date,
		Source:         store.RateSourceManual,
	}
	data, err := json.Marshal(map[string]string{
		"from": row.BaseCurrency,
		"to":   row.TargetCurrency,
		"rate": row.Rate.String(),
		"date": row.Date.Format("2006-01-02"),
	})
	if err != nil {
		return models.ExchangeRate{}, err
	}
	err = s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.deps.Rates.Upsert(ctx, tx, row); err != nil {
			return err
		}
		return s.deps.Audit.Log(ctx, tx, actorID, "exchange_rate.set", "exchange_rates", row.ID, string(data))
	})
	if err != nil {
		return models.ExchangeRate{}, err
	}
	s.deps.Log.WithFields(logrus.Fields{
		"from": row.BaseCurrency, "to": row.TargetCurrency, "rate": row.Rate.String(), "date": row.Date.Format("2006-01-02"),
	}).Info("exchange rate seeded")
	return row, nil
}
