// Package notify delivers fire-and-forget summaries to the external
// approval channel. Delivery is best-effort: failures are returned to the
// caller to log and swallow, and never affect proposal state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/evolvekit/skillevo/pkg/config"
	"github.com/evolvekit/skillevo/pkg/proposal"
)

// Notifier is the external message sink contract.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// NopSink discards every message. Used when no sink is configured.
type NopSink struct{}

// Send discards the message.
func (NopSink) Send(context.Context, string) error { return nil }

// TelegramSink posts messages to a Telegram chat via the bot API.
type TelegramSink struct {
	token  string
	chatID string
	client *http.Client
	apiURL string
}

// NewTelegramSink builds a sink from config, or a NopSink when no bot
// token is configured.
func NewTelegramSink(cfg config.Telegram) Notifier {
	if cfg.BotToken == "" {
		return NopSink{}
	}
	return &TelegramSink{
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: "https://api.telegram.org",
	}
}

// Send posts one message, retrying transient failures a few times before
// giving up. There is no delivery guarantee.
func (s *TelegramSink) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    s.chatID,
		"text":       message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification payload")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return errors.Errorf("telegram API returned %s", resp.Status)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
	)
}

// PatchApplied formats the summary sent after patch proposals auto-apply.
func PatchApplied(proposals []*proposal.Proposal, displayTime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔧 Skill Evolution (patch)\n📅 %s\n\nApplied automatically:\n", displayTime)
	writeProposalLines(&b, proposals)
	return b.String()
}

// MinorPending formats the delayed auto-apply notice for minor proposals.
// Cancellation is handled by the approval channel, not by this system.
func MinorPending(proposals []*proposal.Proposal, displayTime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ Skill Evolution (minor, pending)\n📅 %s\n\nThese updates will auto-apply in 24 hours:\n", displayTime)
	writeProposalLines(&b, proposals)
	b.WriteString("\nReply \"cancel\" to stop them")
	return b.String()
}

// MajorPending formats the confirmation request for major proposals.
func MajorPending(proposals []*proposal.Proposal, displayTime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔴 Skill Evolution (major, needs confirmation)\n📅 %s\n\nThese updates require your confirmation:\n", displayTime)
	writeProposalLines(&b, proposals)
	b.WriteString("\nReply \"confirm\" to apply or \"cancel\" to drop them")
	return b.String()
}

func writeProposalLines(b *strings.Builder, proposals []*proposal.Proposal) {
	for _, p := range proposals {
		fmt.Fprintf(b, "• %s: %s\n", p.SkillID, p.Title)
	}
}
