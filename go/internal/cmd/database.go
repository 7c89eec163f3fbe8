package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mcdev12/quizbattle/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	dbCfg := dbconfig.NewConfigFromEnv()
	if err := dbCfg.Validate(); err != nil {
		return nil, err
	}

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	database.SetMaxOpenConns(dbCfg.MaxOpenConns)
	database.SetMaxIdleConns(dbCfg.MaxIdleConns)
	database.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.PingTimeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("dsn", dbCfg.Redacted()).
		Int("max_open_conns", dbCfg.MaxOpenConns).
		Msg("connected to database")
	return database, nil
}
