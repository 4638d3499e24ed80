package checker

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/integrations"
	"github.com/vigilohq/vigilo/internal/pkg/mail"
)

// Notifier fans a monitor state transition out to the alert's channels.
// Slack and Discord recipients are compound channel keys resolved against
// the owner's installed integrations.
type Notifier struct {
	repo integrations.Repository
}

func NewNotifier(repo integrations.Repository) *Notifier {
	return &Notifier{repo: repo}
}

// Notify delivers the transition message to every recipient of every
// enabled channel. Delivery failures are logged per recipient; one broken
// channel must not silence the others.
func (n *Notifier) Notify(ctx context.Context, monitor *models.Monitor, alert *models.Alert, previous string) {
	message := TransitionMessage(monitor, previous)
	subject := TransitionSubject(monitor)

	channels, err := alert.ChannelList()
	if err != nil {
		log.Errorf("[Checker] alert %d has corrupt channel list: %v", alert.ID, err)
		return
	}

	ref := models.OwnerRef{Kind: monitor.OwnerKind, ID: monitor.OwnerID}
	for _, ch := range channels {
		recipients, err := alert.RecipientsFor(ch)
		if err != nil {
			log.Errorf("[Checker] alert %d has corrupt recipients for %s: %v", alert.ID, ch, err)
			continue
		}
		for _, recipient := range recipients {
			if err := n.deliver(ctx, ref, ch, recipient, subject, message); err != nil {
				log.Errorf("[Checker] delivery to %s recipient %s failed: %v", ch, recipient, err)
			}
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ref models.OwnerRef, channelType, recipient, subject, message string) error {
	switch channelType {
	case models.AlertChannelEmail:
		return mail.SendMail(recipient, subject, message)
	case models.AlertChannelSlack:
		key, err := integrations.ParseChannelKey(recipient)
		if err != nil {
			return err
		}
		integration, err := n.repo.GetIntegration(ref, key.String())
		if err != nil {
			return fmt.Errorf("no integration for %s: %w", key.String(), err)
		}
		return integrations.NewSlackClient(integration.AccessTokenEnc).PostMessage(ctx, key.ChannelID, message)
	case models.AlertChannelDiscord:
		key, err := integrations.ParseChannelKey(recipient)
		if err != nil {
			return err
		}
		if _, err := n.repo.GetIntegration(ref, key.String()); err != nil {
			return fmt.Errorf("no integration for %s: %w", key.String(), err)
		}
		return integrations.NewDiscordClientFromEnv().PostMessage(ctx, key.ChannelID, message)
	default:
		return fmt.Errorf("unknown channel type %s", channelType)
	}
}

// TransitionSubject renders the email subject line for a state change.
func TransitionSubject(monitor *models.Monitor) string {
	if monitor.Status == models.MonitorStatusUp {
		return fmt.Sprintf("RESOLVED: %s is up again", monitor.Name)
	}
	return fmt.Sprintf("ALERT: %s is down", monitor.Name)
}

// TransitionMessage renders the notification body for a state change.
func TransitionMessage(monitor *models.Monitor, previous string) string {
	if monitor.Status == models.MonitorStatusUp {
		return fmt.Sprintf("%s (%s) recovered and is up again.", monitor.Name, monitor.URL)
	}
	if monitor.LastStatusCode > 0 {
		return fmt.Sprintf("%s (%s) went from %s to down (HTTP %d).", monitor.Name, monitor.URL, previous, monitor.LastStatusCode)
	}
	return fmt.Sprintf("%s (%s) went from %s to down (connection failed).", monitor.Name, monitor.URL, previous)
}

// ShouldNotify reports whether a check outcome is a transition worth
// announcing. The first result after creation only notifies when the target
// is already down.
func ShouldNotify(previous, next string) bool {
	if previous == next {
		return false
	}
	switch previous {
	case models.MonitorStatusPending:
		return next == models.MonitorStatusDown
	case models.MonitorStatusPaused:
		return false
	default:
		return true
	}
}
