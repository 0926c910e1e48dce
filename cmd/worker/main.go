package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/config"
	"github.com/lokastore/storefront-api/internal/notify"
	"github.com/lokastore/storefront-api/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled {
		mailer = logMailer{log: &logger, from: cfg.EmailFrom}
	}

	emailWorker := notify.EmailWorker{Mail: mailer, Log: &logger}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOpts.Addr,
			Username: redisOpts.Username,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		},
		asynq.Config{
			Concurrency: envInt("WORKER_CONCURRENCY", 10),
		},
	)

	logger.Info().Msg("worker starting")
	if err := srv.Run(emailWorker.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

// logMailer writes deliveries to the log stream in place of an SMTP relay.
type logMailer struct {
	log  *zerolog.Logger
	from string
}

func (m logMailer) Send(to, subject, html string) error {
	m.log.Info().
		Str("from", m.from).
		Str("to", to).
		Str("subject", subject).
		Int("bytes", len(html)).
		Msg("email delivered")
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
