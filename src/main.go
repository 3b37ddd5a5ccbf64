package main

import (
	"TaxiGovExplorer/src/api"
	"TaxiGovExplorer/src/config"
	"TaxiGovExplorer/src/datasource/file"
	"TaxiGovExplorer/src/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	if err := writePidFile(cfg.PidFile); err != nil {
		logger.Error("写入 pid 文件失败: " + err.Error())
	}
	defer os.Remove(cfg.PidFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := newExplorer(ctx, cfg, dcfg, logger)
	if err != nil {
		logger.Fatal("初始化失败: " + err.Error())
		log.Fatal(err)
	}
	defer e.close()

	// 首次加载
	if cfg.Source.URL != "" {
		go func() {
			if err := e.refresh(ctx); err != nil {
				logger.Error("首次加载失败: " + err.Error())
			}
		}()
	}

	// 设置定时任务
	c := cron.New()
	if cfg.Source.RefreshInterval > 0 && cfg.Source.URL != "" {
		cronSpec := fmt.Sprintf("@every %s", cfg.Source.RefreshInterval)
		err = c.AddFunc(cronSpec, func() {
			logger.Info(fmt.Sprintf("开始定时刷新(间隔: %v)...", cfg.Source.RefreshInterval))
			if err := e.refresh(ctx); err != nil {
				logger.Error("定时刷新失败: " + err.Error())
			}
		})
		if err != nil {
			logger.Error("创建定时任务失败: " + err.Error())
			return
		}
	}
	if err := c.AddFunc("@every 1m", func() {
		if err := logger.CheckRotate(cfg); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
	}); err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}
	c.Start()
	defer c.Stop()

	// 监控投放目录
	if cfg.Source.WatchDir != "" {
		monitor, err := file.NewFileMonitor(cfg.Source.WatchDir)
		if err != nil {
			logger.Error("File monitoring error: " + err.Error())
		} else {
			defer monitor.Close()
			logger.Info("监控投放目录: " + monitor.Dir())
			go func() {
				err := monitor.Watch(ctx, func(path string) {
					logger.Info("New file detected: " + path)
					if err := e.loadFile(ctx, path); err != nil {
						logger.Error(err.Error())
					}
				})
				if err != nil {
					logger.Error("File monitoring error: " + err.Error())
				}
			}()
		}
	}

	var srv *http.Server
	if cfg.ListenAddr != "" {
		srv = &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: api.RegisterRoutes(e.server, logger),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP 服务异常: " + err.Error())
			}
		}()
	}

	logger.Info(fmt.Sprintf("TaxiGov explorer 已启动(刷新间隔: %v, 监听: %s)，按Ctrl+C退出", cfg.Source.RefreshInterval, cfg.ListenAddr))
	waitForShutdown(logger, cfg)

	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}
	logger.Close()
}

// waitForShutdown reopens the log on SIGHUP and returns on SIGINT/SIGTERM.
func waitForShutdown(logger *storage.Logger, cfg *config.Config) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := logger.Reopen(cfg.LogName); err != nil {
				log.Println("Failed to reopen log:", err)
				continue
			}
			logger.Info("Received SIGHUP, log file reopened")
			continue
		}
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
		return
	}
}

func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}
