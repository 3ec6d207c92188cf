package notify

import (
	"context"
	"errors"
	"fmt"

	"cspulse/internal/metrics"

	"github.com/sirupsen/logrus"
)

// 通知模板
const (
	TemplateSurveyRequest          = "survey_request"
	TemplateSurveyReminder         = "survey_reminder"
	TemplateSurveyCompleted        = "survey_completed"
	TemplateSurveyLowScoreFollowup = "survey_low_score_followup"
)

// Intent 通知意图，投递与重试由下游负责
type Intent struct {
	Template   string                 `json:"template"`
	Recipient  string                 `json:"recipient"`
	CustomerID uint                   `json:"customer_id"`
	Data       map[string]interface{} `json:"data"`
}

// Notifier 接收通知意图
type Notifier interface {
	Notify(ctx context.Context, intent Intent) error
}

// MultiNotifier 依次投递到所有 sink，单个失败不影响其他 sink
type MultiNotifier struct {
	sinks []Notifier
}

// NewMultiNotifier 创建扇出通知器，忽略 nil
func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len sink 数量
func (m *MultiNotifier) Len() int {
	return len(m.sinks)
}

func (m *MultiNotifier) Notify(ctx context.Context, intent Intent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, intent); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	metrics.IncNotification(intent.Template, err)
	return err
}

// LogNotifier 只记录日志，用于开发环境
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, intent Intent) error {
	n.logger.WithFields(logrus.Fields{
		"template":    intent.Template,
		"recipient":   intent.Recipient,
		"customer_id": intent.CustomerID,
	}).Infof("Notification intent: %v", intent.Data)
	return nil
}

func validateIntent(intent Intent) error {
	if intent.Template == "" {
		return fmt.Errorf("notification template is required")
	}
	return nil
}
