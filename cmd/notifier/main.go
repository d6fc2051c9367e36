package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
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
	noUpdate := flag.Bool("no-update", false, "发送后不推进 last_sent（调试用）")
	noHTTPS := flag.Bool("no-https", false, "邮件链接使用 http 协议（本地调试用）")
	typeFilter := flag.String("types", "", "只通知订阅了给定事项的订阅者，逗号分隔的事项 ID")
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

	// 4. 构建并派发通知计划
	repo := repository.NewRepository(db)
	transport := mailer.NewMailer(&cfg.Mail, logger)
	svc, err := service.NewService(cfg, repo, transport, logger)
	if err != nil {
		logger.Fatal("初始化服务层失败", zap.Error(err))
	}

	var typeIDs []string
	if *typeFilter != "" {
		for _, id := range strings.Split(*typeFilter, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				typeIDs = append(typeIDs, trimmed)
			}
		}
	}

	plan, err := svc.Selection.BuildPlan(ctx, time.Now(), typeIDs)
	if err != nil {
		logger.Fatal("构建通知计划失败", zap.Error(err))
	}

	opts := service.DispatchOptions{NoUpdate: *noUpdate}
	if *noHTTPS {
		opts.Protocol = "http"
	}

	sent, err := svc.Dispatch.Dispatch(ctx, plan, opts)
	if err != nil {
		logger.Fatal("派发通知失败", zap.Int("sent", sent), zap.Error(err))
	}
	logger.Info("通知任务结束", zap.Int("sent", sent))
}
