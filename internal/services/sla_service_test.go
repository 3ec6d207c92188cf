package services

import (
	"context"
	"testing"
	"time"

	"cspulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSLATestService(t *testing.T, start time.Time) (*SLAService, *fixedClock, *models.Customer) {
	t.Helper()
	db := newEngineTestDB(t)
	clock := newFixedClock(start)
	svc := NewSLAService(db, newTestLogger())
	svc.SetClock(clock.Now)
	customer := seedCustomer(t, db, "Acme", models.CustomerActive)
	return svc, clock, customer
}

func TestSLAThresholdHours(t *testing.T) {
	assert.Equal(t, 4.0, SLAThresholdHours(models.PriorityCritical))
	assert.Equal(t, 8.0, SLAThresholdHours(models.PriorityHigh))
	assert.Equal(t, 24.0, SLAThresholdHours(models.PriorityMedium))
	assert.Equal(t, 72.0, SLAThresholdHours(models.PriorityLow))
	assert.Equal(t, 72.0, SLAThresholdHours(""))
	assert.Equal(t, 72.0, SLAThresholdHours("urgent"))

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, created.Add(4*time.Hour), SLADeadline(models.PriorityCritical, created))
}

func TestSLAService_CheckSLABreaches_CriticalThreshold(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	ticket := &models.Ticket{CustomerID: customer.ID, Title: "db down", Priority: models.PriorityCritical, CreatedAt: start, UpdatedAt: start}
	mustCreate(t, svc.db, ticket)

	clock.Advance(3 * time.Hour)
	res, err := svc.CheckSLABreaches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Empty(t, res.NewlyBreached)

	clock.Advance(2 * time.Hour)
	res, err = svc.CheckSLABreaches(context.Background())
	require.NoError(t, err)
	require.Len(t, res.NewlyBreached, 1)
	assert.Equal(t, ticket.ID, res.NewlyBreached[0].TicketID)
	assert.InDelta(t, 5.0, res.NewlyBreached[0].ElapsedHours, 0.001)

	var stored models.Ticket
	require.NoError(t, svc.db.First(&stored, ticket.ID).Error)
	assert.True(t, stored.SLABreached)
}

func TestSLAService_CheckSLABreaches_ReportsOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	mustCreate(t, svc.db, &models.Ticket{CustomerID: customer.ID, Title: "a", Priority: models.PriorityHigh, CreatedAt: start, UpdatedAt: start})
	clock.Advance(10 * time.Hour)

	first, err := svc.CheckSLABreaches(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.NewlyBreached, 1)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Hour)
		again, err := svc.CheckSLABreaches(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again.NewlyBreached)
		assert.Equal(t, 0, again.Checked)
	}

	var breached int64
	svc.db.Model(&models.Ticket{}).Where("sla_breached = ?", true).Count(&breached)
	assert.Equal(t, int64(1), breached)
}

func TestSLAService_CheckSLABreaches_UnmappedPriorityUsesLow(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	mustCreate(t, svc.db, &models.Ticket{CustomerID: customer.ID, Title: "no priority", CreatedAt: start, UpdatedAt: start})

	clock.Advance(71 * time.Hour)
	res, err := svc.CheckSLABreaches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.NewlyBreached)

	clock.Advance(2 * time.Hour)
	res, err = svc.CheckSLABreaches(context.Background())
	require.NoError(t, err)
	require.Len(t, res.NewlyBreached, 1)
	assert.Equal(t, 72.0, res.NewlyBreached[0].ThresholdHours)
}

func TestSLAService_CheckSLABreaches_SkipsResolvedAndRecordsItemErrors(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	mustCreate(t, svc.db, &models.Ticket{CustomerID: customer.ID, Title: "done", Priority: models.PriorityCritical, Status: models.TicketResolved, CreatedAt: start, UpdatedAt: start})
	future := &models.Ticket{CustomerID: customer.ID, Title: "clock skew", Priority: models.PriorityCritical, CreatedAt: start.Add(48 * time.Hour), UpdatedAt: start}
	mustCreate(t, svc.db, future)
	mustCreate(t, svc.db, &models.Ticket{CustomerID: customer.ID, Title: "late", Priority: models.PriorityCritical, Status: models.TicketInProgress, CreatedAt: start, UpdatedAt: start})

	clock.Advance(6 * time.Hour)
	res, err := svc.CheckSLABreaches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Len(t, res.NewlyBreached, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, future.ID, res.Errors[0].EntityID)
	assert.Equal(t, "sla", res.Errors[0].Component)
}

func TestSLAService_CheckSLABreaches_CancelledContext(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)
	mustCreate(t, svc.db, &models.Ticket{CustomerID: customer.ID, Title: "a", Priority: models.PriorityCritical, CreatedAt: start, UpdatedAt: start})
	clock.Advance(10 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.CheckSLABreaches(ctx)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Empty(t, res.NewlyBreached)
}

func TestSLAService_RecordResolution_Once(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	ticket := &models.Ticket{CustomerID: customer.ID, Title: "slow", Priority: models.PriorityHigh, CreatedAt: start, UpdatedAt: start}
	mustCreate(t, svc.db, ticket)

	clock.Advance(10 * time.Hour)
	ok, err := svc.RecordResolution(context.Background(), nil, ticket, models.TicketResolved)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(5 * time.Hour)
	ok, err = svc.RecordResolution(context.Background(), nil, ticket, models.TicketClosed)
	require.NoError(t, err)
	assert.False(t, ok)

	var stored models.Ticket
	require.NoError(t, svc.db.First(&stored, ticket.ID).Error)
	require.NotNil(t, stored.ResolvedAt)
	require.NotNil(t, stored.ResolutionTimeHours)
	assert.InDelta(t, 10.0, *stored.ResolutionTimeHours, 0.001)
	assert.True(t, stored.SLABreached)
	assert.Equal(t, models.TicketResolved, stored.Status)

	_, err = svc.RecordResolution(context.Background(), nil, ticket, models.TicketOpen)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSLAService_RecordResolution_KeepsExistingBreach(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	ticket := &models.Ticket{CustomerID: customer.ID, Title: "flagged", Priority: models.PriorityLow, SLABreached: true, CreatedAt: start, UpdatedAt: start}
	mustCreate(t, svc.db, ticket)

	clock.Advance(time.Hour)
	ok, err := svc.RecordResolution(context.Background(), nil, ticket, models.TicketResolved)
	require.NoError(t, err)
	assert.True(t, ok)

	var stored models.Ticket
	require.NoError(t, svc.db.First(&stored, ticket.ID).Error)
	assert.True(t, stored.SLABreached)
}

func TestSLAService_AtRiskTickets(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	// critical: 3.5h/4h = 87.5%
	crit := &models.Ticket{CustomerID: customer.ID, Title: "crit", Priority: models.PriorityCritical, CreatedAt: start.Add(-30 * time.Minute), UpdatedAt: start}
	// high: 7.5h/8h = 93.75%
	high := &models.Ticket{CustomerID: customer.ID, Title: "high", Priority: models.PriorityHigh, CreatedAt: start.Add(-4*time.Hour - 30*time.Minute), UpdatedAt: start}
	// medium: 3h/24h = 12.5%
	med := &models.Ticket{CustomerID: customer.ID, Title: "med", Priority: models.PriorityMedium, CreatedAt: start, UpdatedAt: start}
	for _, tk := range []*models.Ticket{crit, high, med} {
		mustCreate(t, svc.db, tk)
	}
	clock.Advance(3 * time.Hour)

	list, err := svc.AtRiskTickets(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, high.ID, list[0].Ticket.ID)
	assert.Equal(t, crit.ID, list[1].Ticket.ID)
	assert.InDelta(t, 93.75, list[0].PercentageUsed, 0.01)
	assert.InDelta(t, 0.5, list[0].HoursRemaining, 0.01)

	list, err = svc.AtRiskTickets(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, high.ID, list[0].Ticket.ID)
}

func TestSLAService_GetTicketSLAStatus(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, clock, customer := newSLATestService(t, start)

	ticket := &models.Ticket{CustomerID: customer.ID, Title: "x", Priority: models.PriorityMedium, CreatedAt: start, UpdatedAt: start}
	mustCreate(t, svc.db, ticket)
	clock.Advance(6 * time.Hour)

	status, err := svc.GetTicketSLAStatus(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 24.0, status.ThresholdHours)
	assert.InDelta(t, 25.0, status.PercentageUsed, 0.01)
	assert.InDelta(t, 18.0, status.HoursRemaining, 0.01)
	assert.Equal(t, start.Add(24*time.Hour), status.Deadline.UTC())

	_, err = svc.GetTicketSLAStatus(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
