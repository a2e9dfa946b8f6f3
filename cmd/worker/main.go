package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"server/internal/infra"
	"server/internal/providers/avatar"
	"server/internal/search"
	"server/internal/sqlinline"
	"server/internal/storage"
)

const backfillBatchSize = 25

// The worker repairs best-effort bookkeeping the API path deliberately does
// not block on: search text for rows whose normalization write was lost, and
// cached author avatars.
type backfillWorker struct {
	runner  *infra.SQLRunner
	logger  infra.Logger
	store   *storage.FileStore
	avatars avatar.Provider
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage")
	}

	w := &backfillWorker{
		runner:  infra.NewSQLRunner(dbpool, logger),
		logger:  logger,
		store:   store,
		avatars: avatar.NewDiceBear(cfg.AvatarBaseURL),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.WorkerPollInterval)
	defer ticker.Stop()

	logger.Info().Dur("interval", cfg.WorkerPollInterval).Msg("worker started")
	for {
		select {
		case <-stop:
			logger.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *backfillWorker) run(ctx context.Context) {
	w.backfillSearchText(ctx)
	w.backfillAvatars(ctx)
}

func (w *backfillWorker) backfillSearchText(ctx context.Context) {
	rows, err := w.runner.Query(ctx, sqlinline.QListResourcesMissingSearchText, backfillBatchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("list resources missing search text failed")
		return
	}
	type pending struct {
		id   string
		text string
	}
	var batch []pending
	for rows.Next() {
		var id, title, author, aiModel, category, description string
		if err := rows.Scan(&id, &title, &author, &aiModel, &category, &description); err != nil {
			continue
		}
		batch = append(batch, pending{
			id:   id,
			text: search.Document(title, author, aiModel, category, description),
		})
	}
	rows.Close()

	for _, p := range batch {
		if _, err := w.runner.Exec(ctx, sqlinline.QUpdateResourceSearchText, p.id, p.text); err != nil {
			w.logger.Error().Err(err).Str("resource_id", p.id).Msg("search text backfill failed")
		}
	}
}

func (w *backfillWorker) backfillAvatars(ctx context.Context) {
	rows, err := w.runner.Query(ctx, sqlinline.QListResourcesMissingAvatar, backfillBatchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("list resources missing avatar failed")
		return
	}
	type pending struct {
		id     string
		author string
	}
	var batch []pending
	for rows.Next() {
		var id, author string
		if err := rows.Scan(&id, &author); err != nil {
			continue
		}
		batch = append(batch, pending{id: id, author: author})
	}
	rows.Close()

	for _, p := range batch {
		data, _, err := w.avatars.Fetch(ctx, p.author)
		if err != nil {
			w.logger.Warn().Err(err).Str("author", p.author).Msg("avatar fetch failed")
			continue
		}
		key, err := w.store.Write(ctx, "avatars/"+uuid.NewString()+".svg", data)
		if err != nil {
			w.logger.Error().Err(err).Msg("avatar store failed")
			continue
		}
		if _, err := w.runner.Exec(ctx, sqlinline.QSetResourceAvatarKey, p.id, key); err != nil {
			w.logger.Error().Err(err).Str("resource_id", p.id).Msg("avatar key update failed")
		}
	}
}
