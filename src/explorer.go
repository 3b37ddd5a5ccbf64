package main

import (
	"TaxiGovExplorer/src/api"
	"TaxiGovExplorer/src/config"
	"TaxiGovExplorer/src/datapush"
	"TaxiGovExplorer/src/datasource/file"
	"TaxiGovExplorer/src/datasource/remote"
	"TaxiGovExplorer/src/export"
	"TaxiGovExplorer/src/processor"
	"TaxiGovExplorer/src/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// explorer wires the data sources, the pipeline and the optional sinks.
type explorer struct {
	cfg      *config.Config
	logger   *storage.Logger
	pipeline *processor.Pipeline
	fetcher  *remote.Fetcher
	options  file.Options
	server   *api.Server

	store  *storage.RideStore
	cache  *storage.FrequencyCache
	pusher *datapush.Pusher
}

// newExplorer connects the configured sinks. A sink that cannot be reached is
// logged and left disabled.
func newExplorer(ctx context.Context, cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*explorer, error) {
	pipeline, err := processor.NewPipeline(dcfg, logger)
	if err != nil {
		return nil, err
	}
	opts := file.OptionsFromConfig(cfg, dcfg)
	e := &explorer{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		fetcher:  remote.NewFetcher(cfg.Source.Timeout, opts),
		options:  opts,
	}

	if cfg.Postgres.DSN != "" {
		if store, err := storage.OpenRideStore(ctx, cfg.Postgres.DSN); err != nil {
			logger.Error("Postgres 不可用: " + err.Error())
		} else if err := store.Migrate(); err != nil {
			logger.Error("数据库迁移失败: " + err.Error())
			store.Close()
		} else {
			e.store = store
		}
	}

	if cfg.Redis.Addr != "" {
		cache, err := storage.NewFrequencyCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Error("Redis 不可用: " + err.Error())
		} else {
			e.cache = cache
		}
	}

	if cfg.Webhook.URL != "" {
		e.pusher = datapush.NewPusher(cfg.Webhook.URL)
	}

	if e.cache != nil {
		e.server = api.NewServer(logger, e.cache)
	} else {
		e.server = api.NewServer(logger, nil)
	}
	return e, nil
}

// refresh downloads the remote archive and processes it.
func (e *explorer) refresh(ctx context.Context) error {
	if e.cfg.Source.URL == "" {
		return errors.New("source.url is empty")
	}
	t1 := time.Now()
	df, err := e.fetcher.Fetch(ctx, e.cfg.Source.URL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	e.logger.Info(fmt.Sprintf("下载完成 %s: %d 行, 耗时 %v", e.cfg.Source.URL, df.Nrow(), time.Since(t1)))
	_, err = e.process(ctx, e.cfg.Source.URL, df)
	return err
}

// loadFile processes a file dropped into the watch directory.
func (e *explorer) loadFile(ctx context.Context, path string) error {
	df, err := file.ReadFile(path, e.options)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	_, err = e.process(ctx, path, df)
	return err
}

// process runs the pipeline, publishes the result and feeds the sinks.
// Sink failures are logged and do not fail the run.
func (e *explorer) process(ctx context.Context, source string, df dataframe.DataFrame) (*processor.Result, error) {
	res, err := e.pipeline.Run(ctx, source, df)
	if err != nil {
		return nil, err
	}
	e.server.Publish(res)

	if path, err := export.WriteReport(e.cfg.DataDir, res); err != nil {
		e.logger.Error("保存报表失败: " + err.Error())
	} else {
		e.logger.Info("报表已保存到: " + path)
	}

	if e.store != nil {
		if id, err := e.store.SaveRun(ctx, res.Summary, res.Rides); err != nil {
			e.logger.Error("写入数据库失败: " + err.Error())
		} else {
			e.logger.Info(fmt.Sprintf("run %d: %d 条记录写入数据库", id, len(res.Rides)))
		}
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, "reason", res.Reasons); err != nil {
			e.logger.Error("写入缓存失败: " + err.Error())
		}
		if err := e.cache.Put(ctx, "agency", res.Agencies); err != nil {
			e.logger.Error("写入缓存失败: " + err.Error())
		}
	}

	if e.pusher != nil {
		if err := e.pusher.Push(ctx, res.Summary); err != nil {
			e.logger.Error("推送摘要失败: " + err.Error())
		}
	}
	return res, nil
}

func (e *explorer) close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
}
