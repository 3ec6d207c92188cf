package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 客户
type Customer struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"not null" json:"name"`
	Status          CustomerStatus `gorm:"type:varchar(20);default:'active';index" json:"status"`
	ContactEmail    string         `json:"contact_email"`
	ContractEndDate *time.Time     `gorm:"index" json:"contract_end_date"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	PortalUsers []PortalUser        `gorm:"foreignKey:CustomerID" json:"portal_users,omitempty"`
	Deployments []ProductDeployment `gorm:"foreignKey:CustomerID" json:"deployments,omitempty"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = CustomerActive
	}
	if !c.Status.Valid() {
		return fmt.Errorf("invalid customer status: %q", c.Status)
	}
	return nil
}

// 客户门户用户
type PortalUser struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"index" json:"customer_id"`
	Email      string    `gorm:"not null" json:"email"`
	Name       string    `json:"name"`
	IsPrimary  bool      `gorm:"default:false" json:"is_primary"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// 产品部署（许可证）
type ProductDeployment struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	CustomerID    uint             `gorm:"index" json:"customer_id"`
	ProductName   string           `gorm:"not null" json:"product_name"`
	Status        DeploymentStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	LicenseExpiry *time.Time       `gorm:"index" json:"license_expiry"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	Customer Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (d *ProductDeployment) BeforeCreate(tx *gorm.DB) error {
	if d.Status == "" {
		d.Status = DeploymentActive
	}
	if !d.Status.Valid() {
		return fmt.Errorf("invalid deployment status: %q", d.Status)
	}
	return nil
}

// 客户互动记录（会议、邮件、电话等）
type Interaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"index:idx_interactions_customer_occurred" json:"customer_id"`
	Type       string    `json:"type"` // meeting, email, call, note
	Summary    string    `gorm:"type:text" json:"summary"`
	OccurredAt time.Time `gorm:"index:idx_interactions_customer_occurred" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// 工单模型
type Ticket struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	CustomerID          uint           `gorm:"index" json:"customer_id"`
	Title               string         `json:"title"`
	Priority            TicketPriority `gorm:"type:varchar(20)" json:"priority"`
	Status              TicketStatus   `gorm:"type:varchar(20);default:'open';index" json:"status"`
	SLABreached         bool           `gorm:"column:sla_breached;default:false" json:"sla_breached"`
	ResolvedAt          *time.Time     `json:"resolved_at"`
	ResolutionTimeHours *float64       `json:"resolution_time_hours"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`

	Customer Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.Status == "" {
		t.Status = TicketOpen
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid ticket status: %q", t.Status)
	}
	// 缺失优先级允许入库，按 low 阈值计算
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("invalid ticket priority: %q", t.Priority)
	}
	return nil
}

// 告警
type Alert struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	CustomerID  uint          `gorm:"uniqueIndex:idx_alerts_open_dedup,where:is_resolved = false;index" json:"customer_id"`
	AlertType   AlertType     `gorm:"type:varchar(32);not null;uniqueIndex:idx_alerts_open_dedup" json:"alert_type"`
	Scope       string        `gorm:"type:varchar(255);not null;default:'';uniqueIndex:idx_alerts_open_dedup" json:"scope"` // 去重范围，license 告警为产品名
	DedupDay    string        `gorm:"type:varchar(10);not null;uniqueIndex:idx_alerts_open_dedup" json:"dedup_day"`          // YYYY-MM-DD
	Severity    AlertSeverity `gorm:"type:varchar(20);not null" json:"severity"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	IsResolved  bool          `gorm:"default:false;index" json:"is_resolved"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at"`

	Customer Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if !a.AlertType.Valid() {
		return fmt.Errorf("invalid alert type: %q", a.AlertType)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("invalid alert severity: %q", a.Severity)
	}
	if a.DedupDay == "" {
		return fmt.Errorf("alert dedup day required")
	}
	return nil
}

// 满意度调查请求
type SurveyRequest struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	CustomerID     uint             `gorm:"index:idx_survey_requests_customer_created" json:"customer_id"`
	TargetType     SurveyTargetType `gorm:"type:varchar(20);not null" json:"target_type"`
	RecipientEmail string           `gorm:"not null" json:"recipient_email"`
	PortalUserID   *uint            `gorm:"index" json:"portal_user_id"`
	SurveyType     SurveyType       `gorm:"type:varchar(20);not null" json:"survey_type"`
	TicketID       *uint            `gorm:"index" json:"ticket_id"`
	Token          string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Status         SurveyStatus     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ExpiresAt      time.Time        `gorm:"not null;index" json:"expires_at"`
	SentAt         *time.Time       `json:"sent_at"`
	CompletedAt    *time.Time       `json:"completed_at"`
	CancelledAt    *time.Time       `json:"cancelled_at"`
	ResponseID     *uint            `json:"response_id"`
	ReminderCount  int              `gorm:"default:0" json:"reminder_count"`
	LastRemindedAt *time.Time       `json:"last_reminded_at"`
	CreatedAt      time.Time        `gorm:"index:idx_survey_requests_customer_created" json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Customer Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (r *SurveyRequest) BeforeCreate(tx *gorm.DB) error {
	if r.Status == "" {
		r.Status = SurveyPending
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid survey status: %q", r.Status)
	}
	if !r.TargetType.Valid() {
		return fmt.Errorf("invalid survey target type: %q", r.TargetType)
	}
	if !r.SurveyType.Valid() {
		return fmt.Errorf("invalid survey type: %q", r.SurveyType)
	}
	if r.Token == "" {
		return fmt.Errorf("survey token required")
	}
	if !r.CreatedAt.IsZero() && !r.ExpiresAt.After(r.CreatedAt) {
		return fmt.Errorf("survey expires_at must be after created_at")
	}
	return nil
}

// 调查答复
type SurveyResponse struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SurveyRequestID uint       `gorm:"uniqueIndex" json:"survey_request_id"`
	CustomerID      uint       `gorm:"index" json:"customer_id"`
	TicketID        *uint      `gorm:"index" json:"ticket_id"`
	SurveyType      SurveyType `gorm:"type:varchar(20);not null" json:"survey_type"`
	Score           int        `gorm:"not null" json:"score"`
	Comment         string     `gorm:"type:text" json:"comment"`
	RespondentEmail string     `json:"respondent_email"`
	SubmittedAt     time.Time  `json:"submitted_at"`
}

// 通知意图（outbox），由外部投递器消费
type NotificationIntent struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Template     string            `gorm:"type:varchar(64);not null;index" json:"template"`
	Recipient    string            `json:"recipient"`
	CustomerID   uint              `gorm:"index" json:"customer_id"`
	Payload      datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	CreatedAt    time.Time         `json:"created_at"`
	DispatchedAt *time.Time        `gorm:"index" json:"dispatched_at"`
}

// AllModels 迁移与测试使用的模型列表
func AllModels() []interface{} {
	return []interface{}{
		&Customer{},
		&PortalUser{},
		&ProductDeployment{},
		&Interaction{},
		&Ticket{},
		&Alert{},
		&SurveyRequest{},
		&SurveyResponse{},
		&NotificationIntent{},
	}
}
