package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/config"
	"github.com/Atlasfreak/darmstadt-termine/internal/repository"
	"github.com/Atlasfreak/darmstadt-termine/internal/service"
	"github.com/Atlasfreak/darmstadt-termine/pkg/database"
	applogger "github.com/Atlasfreak/darmstadt-termine/pkg/logger"
	"github.com/Atlasfreak/darmstadt-termine/pkg/mailer"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 清理超期未确认的订阅
	repo := repository.NewRepository(db)
	transport := mailer.NewMailer(&cfg.Mail, logger)
	svc, err := service.NewService(cfg, repo, transport, logger)
	if err != nil {
		logger.Fatal("初始化服务层失败", zap.Error(err))
	}

	deleted, err := svc.Subscription.CleanupUnconfirmed(ctx, time.Now())
	if err != nil {
		logger.Fatal("清理任务失败", zap.Error(err))
	}
	logger.Info("清理任务结束", zap.Int64("deleted", deleted))
}
