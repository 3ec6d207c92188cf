package services

import (
	"context"
	"fmt"
	"time"

	"cspulse/internal/metrics"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 批处理名称，用于指标与 CLI/HTTP 触发
const (
	SweepAlerts    = "alerts"
	SweepSLA       = "sla"
	SweepSurveys   = "surveys"
	SweepReminders = "reminders"
	SweepAll       = "all"
)

// SweepResult 一次批处理的汇总结果
type SweepResult struct {
	Sweep         string           `json:"sweep"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      string           `json:"duration"`
	AlertsCreated map[string]int   `json:"alerts_created,omitempty"`
	SLABreached   []BreachedTicket `json:"sla_breached,omitempty"`
	SLAChecked    int              `json:"sla_checked,omitempty"`
	Expired       int64            `json:"surveys_expired,omitempty"`
	Reminders     int              `json:"reminders_sent,omitempty"`
	Errors        []ItemError      `json:"errors"`
	Aborted       bool             `json:"aborted"`
}

// TotalAlertsCreated 所有检查新建告警数之和
func (r *SweepResult) TotalAlertsCreated() int {
	total := 0
	for _, n := range r.AlertsCreated {
		total += n
	}
	return total
}

func (r *SweepResult) merge(other *SweepResult) {
	for k, v := range other.AlertsCreated {
		if r.AlertsCreated == nil {
			r.AlertsCreated = map[string]int{}
		}
		r.AlertsCreated[k] += v
	}
	r.SLABreached = append(r.SLABreached, other.SLABreached...)
	r.SLAChecked += other.SLAChecked
	r.Expired += other.Expired
	r.Reminders += other.Reminders
	r.Errors = append(r.Errors, other.Errors...)
	r.Aborted = r.Aborted || other.Aborted
}

type alertCheck struct {
	name string
	run  func(context.Context) (*CheckResult, error)
}

// SweepService 无状态的批处理协调器，由 cron、CLI 或 HTTP 触发
type SweepService struct {
	alerts  *AlertService
	sla     *SLAService
	surveys *SurveyService
	logger  *logrus.Logger
	tracer  trace.Tracer
	checks  []alertCheck
}

// NewSweepService 创建批处理协调器
func NewSweepService(alerts *AlertService, sla *SLAService, surveys *SurveyService, logger *logrus.Logger) *SweepService {
	if logger == nil {
		logger = logrus.New()
	}

	s := &SweepService{
		alerts:  alerts,
		sla:     sla,
		surveys: surveys,
		logger:  logger,
		tracer:  otel.Tracer("cspulse.sweeps"),
	}
	if alerts != nil {
		s.checks = []alertCheck{
			{name: CheckContractExpiry, run: alerts.CheckContractExpiry},
			{name: CheckLicenseExpiry, run: alerts.CheckLicenseExpiry},
			{name: CheckInactivity, run: alerts.CheckInactivity},
		}
	}
	return s
}

func newSweepResult(sweep string) *SweepResult {
	return &SweepResult{Sweep: sweep, StartedAt: time.Now().UTC(), Errors: []ItemError{}}
}

func (s *SweepService) finish(res *SweepResult) *SweepResult {
	elapsed := time.Since(res.StartedAt)
	res.Duration = elapsed.String()
	metrics.ObserveSweep(res.Sweep, elapsed, len(res.Errors), res.Aborted)
	s.logger.WithFields(logrus.Fields{
		"sweep":   res.Sweep,
		"errors":  len(res.Errors),
		"aborted": res.Aborted,
	}).Infof("Sweep %s finished in %s", res.Sweep, res.Duration)
	return res
}

// runIsolated 执行单个步骤，panic 转为错误
func (s *SweepService) runIsolated(component string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("component", component).Errorf("Sweep step panicked: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// RunAllAlertChecks 依次执行所有告警检查，单个检查失败不影响其余检查
func (s *SweepService) RunAllAlertChecks(ctx context.Context) *SweepResult {
	ctx, span := s.tracer.Start(ctx, "sweeps.alerts")
	defer span.End()

	res := newSweepResult(SweepAlerts)
	res.AlertsCreated = make(map[string]int, len(s.checks))
	for _, check := range s.checks {
		res.AlertsCreated[check.name] = 0
	}

	for _, check := range s.checks {
		if ctx.Err() != nil {
			res.Aborted = true
			break
		}
		var cr *CheckResult
		err := s.runIsolated(check.name, func() error {
			var err error
			cr, err = check.run(ctx)
			return err
		})
		if err != nil {
			s.logger.WithField("check", check.name).Errorf("Alert check failed: %v", err)
			res.Errors = append(res.Errors, ItemError{Component: check.name, Message: err.Error()})
			continue
		}
		res.AlertsCreated[check.name] += cr.Created
		res.Errors = append(res.Errors, cr.Errors...)
		if cr.Aborted {
			res.Aborted = true
		}
	}

	span.SetAttributes(attribute.Int("sweeps.alerts_created", res.TotalAlertsCreated()))
	return s.finish(res)
}

// CheckSLABreaches 执行 SLA 巡检
func (s *SweepService) CheckSLABreaches(ctx context.Context) *SweepResult {
	ctx, span := s.tracer.Start(ctx, "sweeps.sla")
	defer span.End()

	res := newSweepResult(SweepSLA)
	if s.sla == nil {
		return s.finish(res)
	}

	err := s.runIsolated("sla", func() error {
		sr, err := s.sla.CheckSLABreaches(ctx)
		if sr != nil {
			res.SLAChecked = sr.Checked
			res.SLABreached = sr.NewlyBreached
			res.Errors = append(res.Errors, sr.Errors...)
			res.Aborted = sr.Aborted
		}
		return err
	})
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Component: "sla", Message: err.Error()})
	}
	return s.finish(res)
}

// ExpireOldSurveyRequests 执行调查过期批处理
func (s *SweepService) ExpireOldSurveyRequests(ctx context.Context) *SweepResult {
	ctx, span := s.tracer.Start(ctx, "sweeps.surveys")
	defer span.End()

	res := newSweepResult(SweepSurveys)
	if s.surveys == nil {
		return s.finish(res)
	}
	if ctx.Err() != nil {
		res.Aborted = true
		return s.finish(res)
	}

	err := s.runIsolated("survey_expiry", func() error {
		n, err := s.surveys.ExpireOldRequests(ctx)
		res.Expired = n
		return err
	})
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Component: "survey_expiry", Message: err.Error()})
	}
	return s.finish(res)
}

// SendSurveyReminders 执行调查提醒批处理
func (s *SweepService) SendSurveyReminders(ctx context.Context) *SweepResult {
	ctx, span := s.tracer.Start(ctx, "sweeps.reminders")
	defer span.End()

	res := newSweepResult(SweepReminders)
	if s.surveys == nil {
		return s.finish(res)
	}

	err := s.runIsolated("survey_reminder", func() error {
		rr, err := s.surveys.SendReminders(ctx)
		if rr != nil {
			res.Reminders = rr.Sent
			res.Errors = append(res.Errors, rr.Errors...)
			res.Aborted = rr.Aborted
		}
		return err
	})
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Component: "survey_reminder", Message: err.Error()})
	}
	return s.finish(res)
}

// RunAll 依次执行全部批处理
func (s *SweepService) RunAll(ctx context.Context) *SweepResult {
	ctx, span := s.tracer.Start(ctx, "sweeps.all")
	defer span.End()

	res := newSweepResult(SweepAll)
	steps := []func(context.Context) *SweepResult{
		s.CheckSLABreaches,
		s.RunAllAlertChecks,
		s.ExpireOldSurveyRequests,
		s.SendSurveyReminders,
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			res.Aborted = true
			break
		}
		res.merge(step(ctx))
	}
	return s.finish(res)
}

// Run 按名称执行批处理
func (s *SweepService) Run(ctx context.Context, sweep string) (*SweepResult, error) {
	switch sweep {
	case SweepAlerts:
		return s.RunAllAlertChecks(ctx), nil
	case SweepSLA:
		return s.CheckSLABreaches(ctx), nil
	case SweepSurveys:
		return s.ExpireOldSurveyRequests(ctx), nil
	case SweepReminders:
		return s.SendSurveyReminders(ctx), nil
	case SweepAll:
		return s.RunAll(ctx), nil
	}
	return nil, validationError("unknown sweep %q", sweep)
}
