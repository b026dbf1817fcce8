package main

import (
	"context"
	"flag"
	"os"

	"github.com/pressly/goose/v3"

	"donorcrm/internal/config"
	"donorcrm/internal/db"
	"donorcrm/internal/services"
)

func main() {
	cfg, err := config.Load()
	log := services.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := fs.String("dir", cfg.MigrationsDir, "migrations directory")
	_ = fs.Parse(os.Args[1:])
	command := "up"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	goose.SetLogger(log)
	if err := goose.SetDialect("postgres"); err != nil {
		log.WithError(err).Fatal("failed to set goose dialect")
	}
	if err := goose.RunContext(ctx, command, database.DB, *dir, fs.Args()[min(1, fs.NArg()):]...); err != nil {
		log.WithError(err).WithField("command", command).Fatal("migration failed")
	}
}
