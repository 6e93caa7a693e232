package bootstrap

import (
	"database/sql"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/mediq-platform/internal/appointments"
	"github.com/wolfman30/mediq-platform/internal/audit"
	appconfig "github.com/wolfman30/mediq-platform/internal/config"
	"github.com/wolfman30/mediq-platform/internal/events"
	"github.com/wolfman30/mediq-platform/internal/notify"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// BuildEmailSender selects SendGrid, SES or the logging stub. Missing
// credentials degrade to the stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("SENDGRID_API_KEY not set; using stub email sender")
	case "ses":
		if awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger)
		}
		logger.Warn("AWS configuration unavailable; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

// ObserverDeps are the collaborators appointment observers need.
type ObserverDeps struct {
	AuditDB  *sql.DB
	Email    notify.EmailSender
	Accounts notify.AccountLookup
	AWS      *aws.Config
	Logger   *logging.Logger
}

// BuildAppointmentObservers assembles the audit, notification and queue
// observers that the current configuration supports.
func BuildAppointmentObservers(cfg *appconfig.Config, deps ObserverDeps) []appointments.Observer {
	var out []appointments.Observer
	if deps.AuditDB != nil {
		out = append(out, audit.NewRecorder(deps.AuditDB))
	}
	if deps.Email != nil && deps.Accounts != nil {
		out = append(out, notify.NewNotifier(deps.Email, deps.Accounts, deps.Logger))
	}
	if cfg.EventsQueueURL != "" && deps.AWS != nil {
		out = append(out, events.NewSQSPublisher(sqs.NewFromConfig(*deps.AWS), cfg.EventsQueueURL))
	}
	return out
}
