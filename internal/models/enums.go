package models

// TicketPriority 工单优先级
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// Valid 是否为已知优先级
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TicketStatus 工单状态
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// IsResolved resolved 与 closed 都视为已解决
func (s TicketStatus) IsResolved() bool {
	return s == TicketResolved || s == TicketClosed
}

// CustomerStatus 客户生命周期状态
type CustomerStatus string

const (
	CustomerOnboarding CustomerStatus = "onboarding"
	CustomerActive     CustomerStatus = "active"
	CustomerAtRisk     CustomerStatus = "at_risk"
	CustomerChurned    CustomerStatus = "churned"
)

func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerOnboarding, CustomerActive, CustomerAtRisk, CustomerChurned:
		return true
	}
	return false
}

// DeploymentStatus 产品部署状态
type DeploymentStatus string

const (
	DeploymentActive         DeploymentStatus = "active"
	DeploymentInactive       DeploymentStatus = "inactive"
	DeploymentDecommissioned DeploymentStatus = "decommissioned"
)

func (s DeploymentStatus) Valid() bool {
	switch s {
	case DeploymentActive, DeploymentInactive, DeploymentDecommissioned:
		return true
	}
	return false
}

// AlertType 告警类型
type AlertType string

const (
	AlertHealthDrop     AlertType = "health_drop"
	AlertContractExpiry AlertType = "contract_expiry"
	AlertLowCSAT        AlertType = "low_csat"
	AlertEscalation     AlertType = "escalation"
	AlertInactivity     AlertType = "inactivity"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertHealthDrop, AlertContractExpiry, AlertLowCSAT, AlertEscalation, AlertInactivity:
		return true
	}
	return false
}

// AlertSeverity 告警级别
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

func (s AlertSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SurveyStatus 调查请求状态，completed/expired/cancelled 为终态
type SurveyStatus string

const (
	SurveyPending   SurveyStatus = "pending"
	SurveyCompleted SurveyStatus = "completed"
	SurveyExpired   SurveyStatus = "expired"
	SurveyCancelled SurveyStatus = "cancelled"
)

func (s SurveyStatus) Valid() bool {
	switch s {
	case SurveyPending, SurveyCompleted, SurveyExpired, SurveyCancelled:
		return true
	}
	return false
}

// IsTerminal 终态不允许再迁移
func (s SurveyStatus) IsTerminal() bool {
	return s == SurveyCompleted || s == SurveyExpired || s == SurveyCancelled
}

// SurveyTargetType 调查投递目标
type SurveyTargetType string

const (
	TargetSpecific SurveyTargetType = "specific"
	TargetPrimary  SurveyTargetType = "primary"
	TargetAll      SurveyTargetType = "all"
)

func (t SurveyTargetType) Valid() bool {
	switch t {
	case TargetSpecific, TargetPrimary, TargetAll:
		return true
	}
	return false
}

// SurveyType 调查类型
type SurveyType string

const (
	SurveyCSAT SurveyType = "csat" // 1-5
	SurveyNPS  SurveyType = "nps"  // 0-10
)

func (t SurveyType) Valid() bool {
	return t == SurveyCSAT || t == SurveyNPS
}

// ScoreRange 返回该调查类型允许的评分区间
func (t SurveyType) ScoreRange() (lo, hi int) {
	if t == SurveyNPS {
		return 0, 10
	}
	return 1, 5
}
