package notifications

import "github.com/aidso/geo-console/internal/models"

// NotificationInterface defines the contract for task alert delivery
type NotificationInterface interface {
	SendTaskAlert(task models.Task) error
}
