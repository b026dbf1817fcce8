package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/db"
	"donorcrm/internal/store"
)

const FixActor = "integrity-engine"

type CorrectionApplier interface {
	Apply(ctx context.Context, exec store.Execer, c store.Correction) (int64, error)
}

type AuditLogger interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type Auditor interface {
	Run(ctx context.Context, scope Scope) (Result, error)
}

type FixResult struct {
	Applied    int      `json:"applied"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Recomputed int      `json:"recomputed"`
	Errors     []string `json:"errors,omitempty"`
}

// Fixer writes corrections for critical issues: conversions first, then
// balances recomputed from the corrected data.
type Fixer struct {
	txRunner    db.TxRunner
	corrections CorrectionApplier
	audit       AuditLogger
	auditor     Auditor
	log         *logrus.Logger
}

func NewFixer(txRunner db.TxRunner, corrections CorrectionApplier, audit AuditLogger, auditor Auditor, log *logrus.Logger) *Fixer {
	if log == nil {
		log = logrus.New()
	}
	return &Fixer{txRunner: txRunner, corrections: corrections, audit: audit, auditor: auditor, log: log}
}

func (f *Fixer) Apply(ctx context.Context, issues []Issue) FixResult {
	var res FixResult
	for _, issue := range issues {
		if !issue.IsCritical() || issue.Type.IsBalance() {
			continue
		}
		err := f.applyOne(ctx, issue)
		switch {
		case errors.Is(err, ErrNotFixable):
			res.Skipped++
		case err != nil:
			f.fail(&res, issue, err)
		default:
			res.Applied++
		}
	}

	if f.auditor == nil {
		return res
	}
	fresh, err := f.auditor.Run(ctx, ScopeBalances)
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("recompute balances: %v", err))
		f.log.WithError(err).Error("balance recompute failed")
		return res
	}
	for _, issue := range fresh.Issues {
		if !issue.Fixable() {
			continue
		}
		if err := f.applyOne(ctx, issue); err != nil {
			f.fail(&res, issue, err)
			continue
		}
		res.Recomputed++
	}
	return res
}

func (f *Fixer) fail(res *FixResult, issue Issue, err error) {
	res.Failed++
	res.Errors = append(res.Errors, fmt.Sprintf("%s %s %s: %v", issue.Type, issue.RecordType, issue.FixRecordID, err))
	f.log.WithFields(logrus.Fields{
		"issue_id":    issue.ID,
		"issue_type":  issue.Type,
		"record_type": issue.RecordType,
		"record_id":   issue.FixRecordID,
	}).WithError(err).Error("fix failed")
}

type fixAudit struct {
	IssueID   string    `json:"issueId"`
	Type      IssueType `json:"type"`
	Field     string    `json:"field"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      string    `json:"rate,omitempty"`
	RateField string    `json:"rateField,omitempty"`
}

func (f *Fixer) applyOne(ctx context.Context, issue Issue) error {
	if !issue.Fixable() {
		return ErrNotFixable
	}
	correction := store.Correction{
		Table:    issue.RecordType.Table(),
		RecordID: issue.FixRecordID,
		Columns:  []store.ColumnValue{{Column: issue.AffectedFields[0], Value: issue.FixValue}},
	}
	if issue.FixRateField != "" && issue.FixRate != "" {
		correction.Columns = append(correction.Columns, store.ColumnValue{Column: issue.FixRateField, Value: issue.FixRate})
	}
	data, err := json.Marshal(fixAudit{
		IssueID:   issue.ID,
		Type:      issue.Type,
		Field:     issue.AffectedFields[0],
		From:      issue.CurrentValue,
		To:        issue.FixValue,
		Rate:      issue.FixRate,
		RateField: issue.FixRateField,
	})
	if err != nil {
		return err
	}
	return f.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := f.corrections.Apply(ctx, tx, correction); err != nil {
			return err
		}
		return f.audit.Log(ctx, tx, FixActor, store.AuditActionIntegrityFix, correction.Table, correction.RecordID, string(data))
	})
}
