package services

import (
	"context"
	"fmt"

	"cspulse/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// 巡检结果中使用的检查名
const (
	CheckContractExpiry = "contract_expiry"
	CheckLicenseExpiry  = "license_expiry"
	CheckInactivity     = "inactivity"
)

// CheckResult 单个告警检查的结果
type CheckResult struct {
	Check      string      `json:"check"`
	Candidates int         `json:"candidates"`
	Created    int         `json:"created"`
	Suppressed int         `json:"suppressed"`
	Errors     []ItemError `json:"errors"`
	Aborted    bool        `json:"aborted"`
}

func newCheckResult(check string) *CheckResult {
	return &CheckResult{Check: check, Errors: []ItemError{}}
}

// CheckContractExpiry 合同到期检查
func (s *AlertService) CheckContractExpiry(ctx context.Context) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.check_contract_expiry")
	defer span.End()

	now := s.now()
	window := s.opts.ContractWindowDays
	var customers []models.Customer
	if err := s.db.WithContext(ctx).
		Where("status <> ? AND contract_end_date IS NOT NULL", models.CustomerChurned).
		Where("contract_end_date BETWEEN ? AND ?", now.AddDate(0, 0, -1), now.AddDate(0, 0, window+1)).
		Order("id").
		Find(&customers).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	candidates := EvaluateContractExpiry(customers, now, s.opts.Location, window)
	result := s.raiseAll(ctx, CheckContractExpiry, candidates)
	span.SetAttributes(attribute.Int("alerts.created", result.Created))
	return result, nil
}

// CheckLicenseExpiry 许可证到期检查，每个产品单独告警
func (s *AlertService) CheckLicenseExpiry(ctx context.Context) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.check_license_expiry")
	defer span.End()

	now := s.now()
	window := s.opts.LicenseWindowDays
	var deployments []models.ProductDeployment
	if err := s.db.WithContext(ctx).
		Preload("Customer").
		Where("status = ? AND license_expiry IS NOT NULL", models.DeploymentActive).
		Where("license_expiry BETWEEN ? AND ?", now.AddDate(0, 0, -1), now.AddDate(0, 0, window+1)).
		Order("id").
		Find(&deployments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load deployments: %w", err)
	}

	candidates := EvaluateLicenseExpiry(deployments, now, s.opts.Location, window)
	result := s.raiseAll(ctx, CheckLicenseExpiry, candidates)
	span.SetAttributes(attribute.Int("alerts.created", result.Created))
	return result, nil
}

type interactionCount struct {
	CustomerID uint
	Total      int64
}

// CheckInactivity 无互动检查
func (s *AlertService) CheckInactivity(ctx context.Context) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.check_inactivity")
	defer span.End()

	now := s.now()
	window := s.opts.InactivityWindowDays
	var customers []models.Customer
	if err := s.db.WithContext(ctx).
		Where("status IN ?", []models.CustomerStatus{models.CustomerActive, models.CustomerAtRisk}).
		Order("id").
		Find(&customers).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	var counts []interactionCount
	if err := s.db.WithContext(ctx).Model(&models.Interaction{}).
		Select("customer_id, COUNT(*) AS total").
		Where("occurred_at >= ?", now.AddDate(0, 0, -window)).
		Group("customer_id").
		Scan(&counts).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}
	recent := make(map[uint]int64, len(counts))
	for _, c := range counts {
		recent[c.CustomerID] = c.Total
	}

	candidates := EvaluateInactivity(customers, recent, window)
	result := s.raiseAll(ctx, CheckInactivity, candidates)
	span.SetAttributes(attribute.Int("alerts.created", result.Created))
	return result, nil
}

// raiseAll 逐个候选经过去重闸门，单个失败只记录不中断
func (s *AlertService) raiseAll(ctx context.Context, check string, candidates []AlertCandidate) *CheckResult {
	result := newCheckResult(check)
	result.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			result.Aborted = true
			break
		}
		res, err := s.RaiseAlert(ctx, c)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"check":       check,
				"customer_id": c.CustomerID,
				"scope":       c.Scope,
			}).Warnf("Failed to raise alert: %v", err)
			result.Errors = append(result.Errors, ItemError{Component: check, EntityID: c.CustomerID, Message: err.Error()})
			continue
		}
		if res.Created {
			result.Created++
		} else {
			result.Suppressed++
		}
	}

	s.logger.Infof("Alert check %s: %d candidates, %d created, %d suppressed, %d errors",
		check, result.Candidates, result.Created, result.Suppressed, len(result.Errors))
	return result
}
