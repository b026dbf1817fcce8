package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/config"
	"donorcrm/internal/db"
	"donorcrm/internal/integrity"
	"donorcrm/internal/services"
	"donorcrm/internal/store"
)

const (
	exitOK       = 0
	exitCritical = 1
	exitFatal    = 2
)

const cliActor = "integrity-cli"

type opener func(ctx context.Context, dsn string) (*sqlx.DB, error)

var (
	runCLIFunc = runCLI
	exitFunc   = os.Exit
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runCLIFunc(ctx, os.Args[1:], os.Stdout, os.Stderr, db.Connect)
	stop()
	exitFunc(code)
}

const usage = `usage: integrity <command> [flags]

commands:
  check [--no-fix] [--scope full|conversions|balances] [--report-dir DIR]
                     audit every record, fix critical issues, write a report
  fix-conversions    audit and fix stored currency conversions only
  add-rate FROM TO RATE DATE
                     seed a manual exchange rate (DATE is YYYY-MM-DD)
  schedule [--cron EXPR] [--no-fix]
                     run check on a cron schedule until interrupted
  issue-token OPERATOR [ROLE...]
                     register an operator and print an API token
  help               show this message

exit codes: 0 clean, 1 critical issues remain, 2 error
`

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitFatal
	}
	command, rest := args[0], args[1:]
	switch command {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	case "check", "fix-conversions", "add-rate", "schedule", "issue-token":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return exitFatal
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitFatal
	}
	log := services.NewLogger(cfg.LogLevel, stderr)

	switch command {
	case "check":
		return runCheck(ctx, cfg, rest, stdout, stderr, open, log)
	case "fix-conversions":
		return withDB(ctx, cfg, stderr, open, func(database *sqlx.DB) int {
			svc := services.NewIntegrityService(services.NewIntegrityDeps(cfg, database, log))
			return check(ctx, svc, services.CheckOptions{Scope: integrity.ScopeConversions, Fix: true}, stdout, stderr)
		})
	case "add-rate":
		return runAddRate(ctx, cfg, rest, stdout, stderr, open, log)
	case "schedule":
		return runSchedule(ctx, cfg, rest, stdout, stderr, open, log)
	default:
		return runIssueToken(ctx, cfg, rest, stdout, stderr, open)
	}
}

func withDB(ctx context.Context, cfg config.Config, stderr io.Writer, open opener, fn func(*sqlx.DB) int) int {
	database, err := open(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(stderr, "failed to connect to database: %v\n", err)
		return exitFatal
	}
	defer database.Close()
	return fn(database)
}

func runCheck(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer, open opener, log *logrus.Logger) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	noFix := fs.Bool("no-fix", false, "report issues without correcting them")
	scopeFlag := fs.String("scope", string(integrity.ScopeFull), "audit scope")
	reportDir := fs.String("report-dir", cfg.ReportDir, "directory for report files")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	scope, ok := integrity.ParseScope(*scopeFlag)
	if !ok {
		fmt.Fprintf(stderr, "invalid scope %q\n", *scopeFlag)
		return exitFatal
	}
	cfg.ReportDir = *reportDir
	return withDB(ctx, cfg, stderr, open, func(database *sqlx.DB) int {
		svc := services.NewIntegrityService(services.NewIntegrityDeps(cfg, database, log))
		return check(ctx, svc, services.CheckOptions{Scope: scope, Fix: !*noFix}, stdout, stderr)
	})
}

func check(ctx context.Context, svc *services.IntegrityService, opts services.CheckOptions, stdout, stderr io.Writer) int {
	out, err := svc.Check(ctx, opts)
	if err != nil {
		return reportFailure(stderr, err)
	}
	printOutcome(stdout, out)
	if out.CriticalRemaining() > 0 {
		fmt.Fprintf(stderr, "%d critical issue(s) remain, see %s\n", out.CriticalRemaining(), out.ReportPath)
		return exitCritical
	}
	return exitOK
}

func reportFailure(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "integrity check failed: %v\n", err)
	switch {
	case errors.Is(err, store.ErrMissingTables):
		fmt.Fprintln(stderr, "hint: run migrations (go run ./cmd/migrate)")
	case errors.Is(err, services.ErrDatabaseDown):
		fmt.Fprintln(stderr, "hint: check DATABASE_URL and that Postgres is reachable")
	case errors.Is(err, services.ErrReportNotWritten):
		fmt.Fprintln(stderr, "hint: check that REPORT_DIR is writable")
	}
	return exitFatal
}

func printOutcome(w io.Writer, out services.Outcome) {
	rep := out.Report
	fmt.Fprintf(w, "scope: %s\n", rep.Scope)
	fmt.Fprintf(w, "issues: %d (%d critical, %d warning) across %d contact(s)\n",
		rep.Summary.Total, rep.Summary.Critical, rep.Summary.Warning, rep.Summary.AffectedContacts)
	types := make([]string, 0, len(rep.Summary.ByType))
	for t := range rep.Summary.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-32s %d\n", t, rep.Summary.ByType[integrity.IssueType(t)])
	}
	if len(rep.AwaitingConversion) > 0 {
		fmt.Fprintf(w, "payments awaiting conversion: %d\n", len(rep.AwaitingConversion))
	}
	if rep.SkippedRecords > 0 {
		fmt.Fprintf(w, "records skipped (rate unavailable): %d\n", rep.SkippedRecords)
	}
	if rep.Fixes != nil {
		fmt.Fprintf(w, "fixes: %d applied, %d recomputed, %d failed, %d skipped\n",
			rep.Fixes.Applied, rep.Fixes.Recomputed, rep.Fixes.Failed, rep.Fixes.Skipped)
		for _, msg := range rep.Fixes.Errors {
			fmt.Fprintf(w, "  fix failed: %s\n", msg)
		}
	}
	fmt.Fprintf(w, "critical remaining: %d\n", out.CriticalRemaining())
	fmt.Fprintf(w, "report: %s\n", out.ReportPath)
}

func runAddRate(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer, open opener, log *logrus.Logger) int {
	if len(args) != 4 {
		fmt.Fprintln(stderr, "usage: integrity add-rate FROM TO RATE DATE")
		return exitFatal
	}
	return withDB(ctx, cfg, stderr, open, func(database *sqlx.DB) int {
		svc := services.NewIntegrityService(services.NewIntegrityDeps(cfg, database, log))
		row, err := svc.AddRate(ctx, cliActor, args[0], args[1], args[2], args[3])
		if err != nil {
			fmt.Fprintf(stderr, "add-rate failed: %v\n", err)
			return exitFatal
		}
		fmt.Fprintf(stdout, "stored %s/%s = %s for %s\n", row.BaseCurrency, row.TargetCurrency, row.Rate.String(), row.Date.Format("2006-01-02"))
		return exitOK
	})
}

func runSchedule(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer, open opener, log *logrus.Logger) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(stderr)
	expr := fs.String("cron", cfg.CheckSchedule, "cron expression")
	noFix := fs.Bool("no-fix", false, "report issues without correcting them")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if _, err := cron.ParseStandard(*expr); err != nil {
		fmt.Fprintf(stderr, "invalid cron expression %q: %v\n", *expr, err)
		return exitFatal
	}
	return withDB(ctx, cfg, stderr, open, func(database *sqlx.DB) int {
		svc := services.NewIntegrityService(services.NewIntegrityDeps(cfg, database, log))
		scheduler := cron.New()
		_, err := scheduler.AddFunc(*expr, func() {
			code := check(ctx, svc, services.CheckOptions{Scope: integrity.ScopeFull, Fix: !*noFix}, stdout, stderr)
			log.WithFields(logrus.Fields{"cron": *expr, "exit_code": code}).Info("scheduled check finished")
		})
		if err != nil {
			fmt.Fprintf(stderr, "invalid cron expression %q: %v\n", *expr, err)
			return exitFatal
		}
		scheduler.Start()
		fmt.Fprintf(stdout, "scheduled integrity checks: %s\n", *expr)
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return exitOK
	})
}

func runIssueToken(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer, open opener) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: integrity issue-token OPERATOR [ROLE...]")
		return exitFatal
	}
	return withDB(ctx, cfg, stderr, open, func(database *sqlx.DB) int {
		svc := services.NewOperatorService(db.NewTxRunner(database), store.NewOperatorStore(database), store.NewAuditStore(database), cfg.JWTSecret, cfg.TokenTTL)
		issued, err := svc.IssueToken(ctx, args[0], args[1:])
		if err != nil {
			fmt.Fprintf(stderr, "issue-token failed: %v\n", err)
			return exitFatal
		}
		if issued.Super {
			fmt.Fprintf(stdout, "operator %s registered as super operator\n", issued.OperatorID)
		}
		fmt.Fprintln(stdout, issued.Token)
		return exitOK
	})
}
