// Package notify posts rollback notifications to Slack so incident
// responders see flag changes without watching the audit log.
package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/pathcanary/rollback-go/internal/domain"
)

// SlackAPI abstracts the subset of the Slack client used by SlackNotifier.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackNotifier posts a message to a fixed channel for every completed
// rollback.
type SlackNotifier struct {
	api     SlackAPI
	channel string
}

// NewSlackNotifier creates a SlackNotifier posting to the given channel.
func NewSlackNotifier(api SlackAPI, channel string) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel}
}

// NotifyRollback posts a Block Kit message describing the transition.
func (n *SlackNotifier) NotifyRollback(ctx context.Context, tenant *domain.Tenant, ev domain.FlagEvent) error {
	header := fmt.Sprintf(":rotating_light: Flag `%s` rolled back for *%s*", ev.FlagKey, tenant.Name)
	fields := []*slacklib.TextBlockObject{
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Previous state:*\n%s", stateLabel(ev.PreviousState)), false, false),
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*New state:*\n%s", stateLabel(ev.NewState)), false, false),
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Incident:*\n%s", ev.IncidentID), false, false),
		slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Request ID:*\n%s", ev.RequestID), false, false),
	}

	blocks := []slacklib.Block{
		slacklib.NewSectionBlock(slacklib.NewTextBlockObject(slacklib.MarkdownType, header, false, false), nil, nil),
		slacklib.NewSectionBlock(nil, fields, nil),
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slacklib.MsgOptionText(header, false),
		slacklib.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("notify.SlackNotifier.NotifyRollback: %w", err)
	}

	return nil
}

func stateLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
