package services

import (
	"fmt"
	"net/mail"
	"strings"

	"cspulse/internal/models"

	"gorm.io/gorm"
)

// surveyTarget 解析后的单个收件人
type surveyTarget struct {
	Email        string
	PortalUserID *uint
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", validationError("recipient email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", validationError("malformed recipient email %q", raw)
	}
	return strings.ToLower(addr.Address), nil
}

// resolveSurveyTargets 按 target_type 解析收件人：
// specific 使用传入邮箱；primary 优先主联系人，否则客户联系邮箱；
// all 为所有启用的门户用户，否则客户联系邮箱。
func resolveSurveyTargets(tx *gorm.DB, customer *models.Customer, targetType models.SurveyTargetType, email string) ([]surveyTarget, error) {
	switch targetType {
	case models.TargetSpecific:
		addr, err := normalizeEmail(email)
		if err != nil {
			return nil, err
		}
		return []surveyTarget{{Email: addr}}, nil

	case models.TargetPrimary:
		var users []models.PortalUser
		if err := tx.Where("customer_id = ? AND is_primary = ? AND is_active = ?", customer.ID, true, true).
			Order("id").Limit(1).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("failed to load primary contact: %w", err)
		}
		if len(users) == 1 {
			if addr, err := normalizeEmail(users[0].Email); err == nil {
				id := users[0].ID
				return []surveyTarget{{Email: addr, PortalUserID: &id}}, nil
			}
		}
		return contactFallback(customer)

	case models.TargetAll:
		var users []models.PortalUser
		if err := tx.Where("customer_id = ? AND is_active = ?", customer.ID, true).
			Order("id").Find(&users).Error; err != nil {
			return nil, fmt.Errorf("failed to load portal users: %w", err)
		}
		seen := make(map[string]bool, len(users))
		targets := make([]surveyTarget, 0, len(users))
		for _, u := range users {
			addr, err := normalizeEmail(u.Email)
			if err != nil || seen[addr] {
				continue
			}
			seen[addr] = true
			id := u.ID
			targets = append(targets, surveyTarget{Email: addr, PortalUserID: &id})
		}
		if len(targets) > 0 {
			return targets, nil
		}
		return contactFallback(customer)
	}

	return nil, validationError("invalid target type: %s", targetType)
}

func contactFallback(customer *models.Customer) ([]surveyTarget, error) {
	addr, err := normalizeEmail(customer.ContactEmail)
	if err != nil {
		return nil, validationError("customer %d has no reachable contact", customer.ID)
	}
	return []surveyTarget{{Email: addr}}, nil
}
