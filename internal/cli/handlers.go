package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BartekS5/cinesync/internal/config"
	"github.com/BartekS5/cinesync/internal/etl"
	"github.com/BartekS5/cinesync/internal/state"
	"github.com/BartekS5/cinesync/pkg/database"
	"github.com/BartekS5/cinesync/pkg/logger"
	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/utils"
	"github.com/jedib0t/go-pretty/v6/table"
)

func runSync(ctx context.Context, global *GlobalOptions, opts *SyncOptions) error {
	cfg, err := config.LoadConfig(global.ConfigFile)
	if err != nil {
		return err
	}
	if opts.SchemaDir != "" {
		cfg.SchemaDir = opts.SchemaDir
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}

	if err := logger.InitLogger(cfg.Log.File, cfg.Log.Level); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Close()

	schemas, err := config.LoadSchemas(cfg.SchemaDir)
	if err != nil {
		return err
	}
	dialect, err := etl.DialectFor(cfg.SQLDriver)
	if err != nil {
		return err
	}

	sqlDB, err := database.ConnectSQL(ctx, cfg.SQLDriver, cfg.SQLConnString)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	mongoClient, err := database.ConnectMongo(ctx, cfg.MongoConnString)
	if err != nil {
		return err
	}
	defer database.DisconnectMongo(mongoClient)

	store, err := state.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	source := etl.NewSQLSource(sqlDB, dialect, cfg.SQLSchema)
	db := mongoClient.Database(cfg.MongoDatabase)
	loader := func(collection string) *etl.MongoLoader {
		l := etl.NewMongoLoader(db, collection)
		l.WriteTimeout = cfg.WriteTimeout.Duration
		return l
	}
	policies := etl.Policies{Source: cfg.SourceRetry.Policy(), Sink: cfg.SinkRetry.Policy()}

	pipeline := etl.NewPipeline(store,
		etl.Options{
			BatchSize:    cfg.BatchSize,
			IdleInterval: cfg.IdleInterval.Duration,
			DryRun:       opts.DryRun,
		},
		etl.NewLane(models.StreamFilms, source.Films(), etl.TransformFilms,
			loader(cfg.Collections.Films), schemas[models.StreamFilms], policies),
		etl.NewLane(models.StreamGenres, source.Genres(), etl.TransformGenres,
			loader(cfg.Collections.Genres), schemas[models.StreamGenres], policies),
		etl.NewLane(models.StreamPeople, source.People(), etl.TransformPeople,
			loader(cfg.Collections.People), schemas[models.StreamPeople], policies),
	)

	logger.Infof("Starting sync from %s into %s (batch %d, dry run %t)", dialect.Name(), cfg.MongoDatabase, cfg.BatchSize, opts.DryRun)
	if opts.Once {
		err = pipeline.Drain(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		err = pipeline.Run(ctx)
	}
	if err != nil {
		logger.Errorf("Sync stopped: %v", err)
		return err
	}
	logger.Info("Sync finished.")
	return nil
}

func openStateStore(path string) (*config.Config, state.Store, error) {
	cfg, err := config.LoadStateConfig(path)
	if err != nil {
		return nil, nil, err
	}
	store, err := state.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func runStatus(ctx context.Context, out io.Writer, global *GlobalOptions) error {
	cfg, store, err := openStateStore(global.ConfigFile)
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := store.Load(ctx)
	if err != nil {
		return err
	}

	collections := map[models.Stream]string{
		models.StreamFilms:  cfg.Collections.Films,
		models.StreamGenres: cfg.Collections.Genres,
		models.StreamPeople: cfg.Collections.People,
	}

	t := table.NewWriter()
	t.SetTitle("%s state: %s", cfg.State.Backend, cfg.State.Path)
	t.AppendHeader(table.Row{"Stream", "Collection", "Watermark"})
	for _, stream := range models.AllStreams {
		at, ok := w[stream]
		mark := "-"
		if ok && !at.IsZero() {
			mark = at.UTC().Format(time.RFC3339Nano)
		}
		t.AppendRow(table.Row{stream, collections[stream], mark})
	}
	t.SetStyle(table.StyleLight)

	_, err = fmt.Fprintln(out, t.Render())
	return err
}

func runReset(ctx context.Context, out io.Writer, global *GlobalOptions, opts *ResetOptions) error {
	var streams []models.Stream
	if opts.Stream == "all" {
		streams = models.AllStreams
	} else {
		s, err := models.ParseStream(opts.Stream)
		if err != nil {
			return err
		}
		streams = []models.Stream{s}
	}

	var to time.Time
	if opts.To != "" {
		t, err := utils.ConvertDateTime(opts.To)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}

	_, store, err := openStateStore(global.ConfigFile)
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := store.Load(ctx)
	if err != nil {
		return err
	}
	for _, s := range streams {
		w[s] = to
	}
	if err := store.Save(ctx, w); err != nil {
		return err
	}

	for _, s := range streams {
		if to.IsZero() {
			fmt.Fprintf(out, "%s: reset to the beginning\n", s)
		} else {
			fmt.Fprintf(out, "%s: reset to %s\n", s, to.Format(time.RFC3339Nano))
		}
	}
	return nil
}
