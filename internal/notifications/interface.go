package notifications

import "github.com/contentlab/seo-assistant/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	NotifyJob(notice models.JobNotice) error
	SendAlert(alert models.Alert) error
}
