package services

import (
	"fmt"
	"time"

	"cspulse/internal/models"
)

const (
	defaultExpiryWindowDays     = 30
	defaultInactivityWindowDays = 30
)

// AlertCandidate 评估器产出的候选告警，经去重闸门后才会落库
type AlertCandidate struct {
	CustomerID  uint                 `json:"customer_id"`
	AlertType   models.AlertType     `json:"alert_type"`
	Scope       string               `json:"scope,omitempty"`
	Severity    models.AlertSeverity `json:"severity"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
}

// severityForDays 按剩余天数分级
func severityForDays(days int) models.AlertSeverity {
	switch {
	case days <= 7:
		return models.SeverityCritical
	case days <= 14:
		return models.SeverityHigh
	case days <= 30:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// calendarDaysUntil 以 loc 时区的今天计算到 target 日期的天数，target 为按 UTC 存储的日期
func calendarDaysUntil(now, target time.Time, loc *time.Location) int {
	n := now.In(locOrUTC(loc))
	g := target.UTC()
	from := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(g.Year(), g.Month(), g.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func withinWindow(days, window int) bool {
	return days >= 0 && days <= window
}

// EvaluateContractExpiry 合同将在 window 天内到期且未流失的客户
func EvaluateContractExpiry(customers []models.Customer, now time.Time, loc *time.Location, window int) []AlertCandidate {
	if window <= 0 {
		window = defaultExpiryWindowDays
	}

	var out []AlertCandidate
	for _, c := range customers {
		if c.Status == models.CustomerChurned || c.ContractEndDate == nil {
			continue
		}
		days := calendarDaysUntil(now, *c.ContractEndDate, loc)
		if !withinWindow(days, window) {
			continue
		}
		out = append(out, AlertCandidate{
			CustomerID: c.ID,
			AlertType:  models.AlertContractExpiry,
			Severity:   severityForDays(days),
			Title:      fmt.Sprintf("Contract for %s expires in %d days", c.Name, days),
			Description: fmt.Sprintf("Contract end date %s. Start the renewal conversation.",
				c.ContractEndDate.In(locOrUTC(loc)).Format("2006-01-02")),
		})
	}
	return out
}

// EvaluateLicenseExpiry 活跃部署的许可证将在 window 天内到期，按产品分别告警。
// deployments 需预加载 Customer。
func EvaluateLicenseExpiry(deployments []models.ProductDeployment, now time.Time, loc *time.Location, window int) []AlertCandidate {
	if window <= 0 {
		window = defaultExpiryWindowDays
	}

	var out []AlertCandidate
	for _, d := range deployments {
		if d.Status != models.DeploymentActive || d.LicenseExpiry == nil {
			continue
		}
		if d.Customer.Status == models.CustomerChurned {
			continue
		}
		days := calendarDaysUntil(now, *d.LicenseExpiry, loc)
		if !withinWindow(days, window) {
			continue
		}
		out = append(out, AlertCandidate{
			CustomerID: d.CustomerID,
			AlertType:  models.AlertContractExpiry,
			Scope:      d.ProductName,
			Severity:   severityForDays(days),
			Title:      fmt.Sprintf("%s license expires in %d days", d.ProductName, days),
			Description: fmt.Sprintf("License for %s (deployment %d) expires on %s.",
				d.ProductName, d.ID, d.LicenseExpiry.In(locOrUTC(loc)).Format("2006-01-02")),
		})
	}
	return out
}

// EvaluateInactivity active/at_risk 客户在窗口期内没有任何互动记录。
// recent 为窗口期内各客户的互动次数。
func EvaluateInactivity(customers []models.Customer, recent map[uint]int64, window int) []AlertCandidate {
	if window <= 0 {
		window = defaultInactivityWindowDays
	}

	var out []AlertCandidate
	for _, c := range customers {
		if c.Status != models.CustomerActive && c.Status != models.CustomerAtRisk {
			continue
		}
		if recent[c.ID] > 0 {
			continue
		}
		out = append(out, AlertCandidate{
			CustomerID:  c.ID,
			AlertType:   models.AlertInactivity,
			Severity:    models.SeverityMedium,
			Title:       fmt.Sprintf("No interactions with %s in %d days", c.Name, window),
			Description: fmt.Sprintf("No meetings, calls, emails or notes were logged for %s in the last %d days.", c.Name, window),
		})
	}
	return out
}

// IsLowScore csat ≤2 或 nps ≤6
func IsLowScore(surveyType models.SurveyType, score int) bool {
	if surveyType == models.SurveyNPS {
		return score <= 6
	}
	return score <= 2
}

// EvaluateLowScore 提交时评估单条答复，低分返回候选告警
func EvaluateLowScore(resp models.SurveyResponse, customerName string) *AlertCandidate {
	if !IsLowScore(resp.SurveyType, resp.Score) {
		return nil
	}

	severity := models.SeverityMedium
	floor := resp.Score <= 1
	if resp.SurveyType == models.SurveyNPS {
		floor = resp.Score <= 3
	}
	if floor {
		severity = models.SeverityHigh
	}

	lo, hi := resp.SurveyType.ScoreRange()
	desc := fmt.Sprintf("%s score %d (scale %d-%d)", resp.SurveyType, resp.Score, lo, hi)
	if resp.TicketID != nil {
		desc += fmt.Sprintf(" for ticket %d", *resp.TicketID)
	}
	if resp.Comment != "" {
		desc += ": " + resp.Comment
	}

	if customerName == "" {
		customerName = fmt.Sprintf("customer %d", resp.CustomerID)
	}
	return &AlertCandidate{
		CustomerID:  resp.CustomerID,
		AlertType:   models.AlertLowCSAT,
		Severity:    severity,
		Title:       fmt.Sprintf("Low %s score from %s", resp.SurveyType, customerName),
		Description: desc,
	}
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
