package services

import (
	"time"

	"cspulse/internal/models"
)

// slaThresholdHours 各优先级的解决时限（小时）
var slaThresholdHours = map[models.TicketPriority]float64{
	models.PriorityCritical: 4,
	models.PriorityHigh:     8,
	models.PriorityMedium:   24,
	models.PriorityLow:      72,
}

// SLAThresholdHours 返回优先级对应的时限，未知优先级按 low 处理
func SLAThresholdHours(priority models.TicketPriority) float64 {
	if h, ok := slaThresholdHours[priority]; ok {
		return h
	}
	return slaThresholdHours[models.PriorityLow]
}

// SLADeadline 工单的 SLA 截止时间
func SLADeadline(priority models.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(SLAThresholdHours(priority) * float64(time.Hour)))
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}
