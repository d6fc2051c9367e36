package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/config"
	"github.com/Atlasfreak/darmstadt-termine/internal/repository"
	"github.com/Atlasfreak/darmstadt-termine/internal/scraper"
	"github.com/Atlasfreak/darmstadt-termine/pkg/database"
	applogger "github.com/Atlasfreak/darmstadt-termine/pkg/logger"
	"github.com/Atlasfreak/darmstadt-termine/pkg/mailer"
	"github.com/Atlasfreak/darmstadt-termine/pkg/redis"
)

// profileFile CPU 性能分析输出文件
const profileFile = "scraper_run.prof"

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	profile := flag.Bool("profile", false, "输出 CPU 性能分析文件 "+profileFile)
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *profile {
		f, err := os.Create(profileFile)
		if err != nil {
			logger.Fatal("创建性能分析文件失败", zap.Error(err))
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal("启动性能分析失败", zap.Error(err))
		}
		defer pprof.StopCPUProfile()
	}

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
	}()

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 抓取互斥锁（Redis 不可用时降级为无锁运行）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，本轮抓取不持有互斥锁", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
		acquired, err := rdb.AcquireScrapeLock(ctx, cfg.Scraper.LockTTL)
		if err != nil {
			logger.Fatal("获取抓取锁失败", zap.Error(err))
		}
		if !acquired {
			logger.Warn("已有抓取在进行中，本轮退出")
			return
		}
		defer rdb.ReleaseScrapeLock(context.Background())
	}

	// 5. 执行一轮抓取
	repo := repository.NewRepository(db)
	transport := mailer.NewMailer(&cfg.Mail, logger)

	s, err := scraper.New(repo, transport, &cfg.Scraper, logger)
	if err != nil {
		logger.Fatal("初始化抓取器失败", zap.Error(err))
	}

	run, err := s.RunPass(ctx)
	if err != nil {
		logger.Fatal("抓取轮次执行失败", zap.Error(err))
	}

	count, err := repo.Appointment.CountByRun(ctx, run.RunID)
	if err != nil {
		logger.Warn("统计本轮时段数失败", zap.Error(err))
	}
	logger.Info("抓取任务结束",
		zap.String("run_id", run.RunID),
		zap.Int64("slots", count),
	)
}
