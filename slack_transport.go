package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SlackTransport implements AlertTransport by posting to Slack's
// chat.postMessage API. When DryRun is set the composed message is logged
// instead of sent, for local testing without a live Slack workspace.
type SlackTransport struct {
	client  *resty.Client
	channel string
	DryRun  bool
}

func NewSlackTransport(authToken, channel string, dryRun bool) *SlackTransport {
	client := resty.New().
		SetBaseURL("https://slack.com/api").
		SetAuthToken(authToken).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &SlackTransport{client: client, channel: channel, DryRun: dryRun}
}

// categoryEmoji mirrors the *Warning*/*Success*/*Reminder* tags the spec
// asks aggregated messages to carry.
func categoryEmoji(category string) string {
	switch category {
	case "Warning":
		return ":warning:"
	case "Success":
		return ":white_check_mark:"
	case "Reminder":
		return ":bell:"
	default:
		return ""
	}
}

// SendAggregated composes one message per bucket: singular phrasing for one
// item, a numbered list otherwise.
func (t *SlackTransport) SendAggregated(category string, messages []string) error {
	body := composeMessage(category, messages)

	if t.DryRun {
		log.Printf("slack (dry_run): %s", body)
		return nil
	}

	resp, err := t.client.R().
		SetFormData(map[string]string{
			"channel": t.channel,
			"text":    body,
		}).
		Post("/chat.postMessage")
	if err != nil {
		return fmt.Errorf("slack transport: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack transport: http %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func composeMessage(category string, messages []string) string {
	emoji := categoryEmoji(category)
	if len(messages) == 1 {
		return fmt.Sprintf("%s *%s*: %s", emoji, category, messages[0])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s* (%d):\n", emoji, category, len(messages))
	for i, m := range messages {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, m)
	}
	return strings.TrimRight(sb.String(), "\n")
}
