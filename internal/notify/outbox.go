package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cspulse/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxNotifier 把通知意图写入 notification_intents 表，由外部投递器消费
type OutboxNotifier struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOutboxNotifier(db *gorm.DB) *OutboxNotifier {
	return &OutboxNotifier{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (n *OutboxNotifier) Notify(ctx context.Context, intent Intent) error {
	if err := validateIntent(intent); err != nil {
		return err
	}

	row := &models.NotificationIntent{
		Template:   intent.Template,
		Recipient:  intent.Recipient,
		CustomerID: intent.CustomerID,
		Payload:    datatypes.JSONMap(intent.Data),
		CreatedAt:  n.now(),
	}
	if err := n.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to store notification intent: %w", err)
	}
	return nil
}

// Pending 返回尚未投递的意图，按创建顺序
func (n *OutboxNotifier) Pending(ctx context.Context, limit int) ([]models.NotificationIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.NotificationIntent
	if err := n.db.WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending intents: %w", err)
	}
	return rows, nil
}

// MarkDispatched 标记已投递
func (n *OutboxNotifier) MarkDispatched(ctx context.Context, ids ...uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := n.db.WithContext(ctx).Model(&models.NotificationIntent{}).
		Where("id IN ? AND dispatched_at IS NULL", ids).
		Update("dispatched_at", n.now())
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark intents dispatched: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Relay 将待投递的意图转发给 sink，成功的标记为已投递，失败的留待下次。
// 返回本次成功转发的数量。
func (n *OutboxNotifier) Relay(ctx context.Context, sink Notifier, batch int) (int, error) {
	rows, err := n.Pending(ctx, batch)
	if err != nil {
		return 0, err
	}

	var (
		delivered []uint
		errs      []error
	)
	for _, row := range rows {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		intent := Intent{
			Template:   row.Template,
			Recipient:  row.Recipient,
			CustomerID: row.CustomerID,
			Data:       map[string]interface{}(row.Payload),
		}
		if err := sink.Notify(ctx, intent); err != nil {
			errs = append(errs, fmt.Errorf("intent %d: %w", row.ID, err))
			continue
		}
		delivered = append(delivered, row.ID)
	}

	if _, err := n.MarkDispatched(ctx, delivered...); err != nil {
		errs = append(errs, err)
	}
	return len(delivered), errors.Join(errs...)
}
