package services

import (
	"testing"
	"time"

	"cspulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityForDays(t *testing.T) {
	cases := map[int]models.AlertSeverity{
		0:  models.SeverityCritical,
		7:  models.SeverityCritical,
		8:  models.SeverityHigh,
		14: models.SeverityHigh,
		15: models.SeverityMedium,
		30: models.SeverityMedium,
		31: models.SeverityLow,
	}
	for days, want := range cases {
		assert.Equal(t, want, severityForDays(days), "days=%d", days)
	}
}

func TestCalendarDaysUntil_UsesLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	now := time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC) // 5/2 01:00 CST
	target := time.Date(2026, 5, 3, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, calendarDaysUntil(now, target, time.UTC))
	assert.Equal(t, 1, calendarDaysUntil(now, target, shanghai))
	assert.Equal(t, -1, calendarDaysUntil(now, now.Add(-24*time.Hour), nil))
}

func TestCalendarDaysUntil_DateOnlyWestOfUTC(t *testing.T) {
	newYork := time.FixedZone("EDT", -4*3600)

	now := time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, calendarDaysUntil(now, end, time.UTC))
	assert.Equal(t, 5, calendarDaysUntil(now, end, newYork))

	// 纽约仍是 6/30 晚上
	late := time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, 6, calendarDaysUntil(late, end, newYork))

	tierEdge := time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC)
	got := EvaluateContractExpiry([]models.Customer{
		{ID: 1, Name: "Acme", Status: models.CustomerActive, ContractEndDate: &tierEdge},
	}, now, newYork, 30)
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityHigh, got[0].Severity)
}

func TestEvaluateLicenseExpiry_SeverityTiers(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	active := models.Customer{ID: 1, Name: "Acme", Status: models.CustomerActive}

	deploy := func(id uint, product string, days int) models.ProductDeployment {
		exp := now.AddDate(0, 0, days)
		return models.ProductDeployment{ID: id, CustomerID: 1, ProductName: product, Status: models.DeploymentActive, LicenseExpiry: &exp, Customer: active}
	}

	got := EvaluateLicenseExpiry([]models.ProductDeployment{
		deploy(1, "Analytics", 5),
		deploy(2, "Gateway", 10),
		deploy(3, "Storage", 25),
		deploy(4, "Search", 45),
	}, now, time.UTC, 30)

	require.Len(t, got, 3)
	byScope := map[string]models.AlertSeverity{}
	for _, c := range got {
		assert.Equal(t, models.AlertContractExpiry, c.AlertType)
		assert.Contains(t, c.Title, c.Scope)
		byScope[c.Scope] = c.Severity
	}
	assert.Equal(t, models.SeverityCritical, byScope["Analytics"])
	assert.Equal(t, models.SeverityHigh, byScope["Gateway"])
	assert.Equal(t, models.SeverityMedium, byScope["Storage"])
	assert.NotContains(t, byScope, "Search")
}

func TestEvaluateLicenseExpiry_SkipsChurnedAndInactive(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	exp := now.AddDate(0, 0, 3)
	past := now.AddDate(0, 0, -1)

	got := EvaluateLicenseExpiry([]models.ProductDeployment{
		{ID: 1, CustomerID: 1, ProductName: "A", Status: models.DeploymentActive, LicenseExpiry: &exp, Customer: models.Customer{ID: 1, Status: models.CustomerChurned}},
		{ID: 2, CustomerID: 2, ProductName: "B", Status: models.DeploymentInactive, LicenseExpiry: &exp, Customer: models.Customer{ID: 2, Status: models.CustomerActive}},
		{ID: 3, CustomerID: 3, ProductName: "C", Status: models.DeploymentActive, LicenseExpiry: &past, Customer: models.Customer{ID: 3, Status: models.CustomerActive}},
		{ID: 4, CustomerID: 4, ProductName: "D", Status: models.DeploymentActive, Customer: models.Customer{ID: 4, Status: models.CustomerActive}},
	}, now, time.UTC, 30)
	assert.Empty(t, got)
}

func TestEvaluateContractExpiry(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	in5 := now.AddDate(0, 0, 5)
	in20 := now.AddDate(0, 0, 20)
	in60 := now.AddDate(0, 0, 60)

	got := EvaluateContractExpiry([]models.Customer{
		{ID: 1, Name: "Soon", Status: models.CustomerActive, ContractEndDate: &in5},
		{ID: 2, Name: "Later", Status: models.CustomerOnboarding, ContractEndDate: &in20},
		{ID: 3, Name: "Gone", Status: models.CustomerChurned, ContractEndDate: &in5},
		{ID: 4, Name: "Far", Status: models.CustomerActive, ContractEndDate: &in60},
		{ID: 5, Name: "None", Status: models.CustomerActive},
	}, now, time.UTC, 0)

	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].CustomerID)
	assert.Equal(t, models.SeverityCritical, got[0].Severity)
	assert.Empty(t, got[0].Scope)
	assert.Equal(t, uint(2), got[1].CustomerID)
	assert.Equal(t, models.SeverityMedium, got[1].Severity)
}

func TestEvaluateInactivity(t *testing.T) {
	got := EvaluateInactivity([]models.Customer{
		{ID: 1, Name: "Quiet", Status: models.CustomerActive},
		{ID: 2, Name: "Busy", Status: models.CustomerActive},
		{ID: 3, Name: "Risky", Status: models.CustomerAtRisk},
		{ID: 4, Name: "New", Status: models.CustomerOnboarding},
		{ID: 5, Name: "Gone", Status: models.CustomerChurned},
	}, map[uint]int64{2: 3}, 30)

	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].CustomerID)
	assert.Equal(t, uint(3), got[1].CustomerID)
	for _, c := range got {
		assert.Equal(t, models.AlertInactivity, c.AlertType)
		assert.Equal(t, models.SeverityMedium, c.Severity)
	}
}

func TestEvaluateLowScore(t *testing.T) {
	cases := []struct {
		surveyType models.SurveyType
		score      int
		want       models.AlertSeverity
	}{
		{models.SurveyCSAT, 1, models.SeverityHigh},
		{models.SurveyCSAT, 2, models.SeverityMedium},
		{models.SurveyCSAT, 3, ""},
		{models.SurveyNPS, 0, models.SeverityHigh},
		{models.SurveyNPS, 3, models.SeverityHigh},
		{models.SurveyNPS, 4, models.SeverityMedium},
		{models.SurveyNPS, 6, models.SeverityMedium},
		{models.SurveyNPS, 7, ""},
	}
	for _, tc := range cases {
		got := EvaluateLowScore(models.SurveyResponse{CustomerID: 9, SurveyType: tc.surveyType, Score: tc.score}, "Acme")
		if tc.want == "" {
			assert.Nil(t, got, "%s=%d", tc.surveyType, tc.score)
			continue
		}
		require.NotNil(t, got, "%s=%d", tc.surveyType, tc.score)
		assert.Equal(t, tc.want, got.Severity, "%s=%d", tc.surveyType, tc.score)
		assert.Equal(t, models.AlertLowCSAT, got.AlertType)
		assert.Equal(t, uint(9), got.CustomerID)
	}
}
