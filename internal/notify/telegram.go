package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ariafx/session-validator/internal/scoring"
)

// Notifier sends alerts to a Telegram chat via the Bot API.
type Notifier struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	enabled    bool
	baseURL    string // overridable for testing; defaults to Telegram API
}

// NewNotifier creates a Notifier. Notifications are enabled only when both
// botToken and chatID are non-empty.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		enabled:    botToken != "" && chatID != "",
	}
}

// Enabled reports whether the notifier is active.
func (n *Notifier) Enabled() bool { return n.enabled }

// Send posts a message to the configured Telegram chat.
func (n *Notifier) Send(ctx context.Context, msg string) error {
	if !n.enabled {
		return nil
	}

	endpoint := n.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	}
	vals := url.Values{
		"chat_id":    {n.chatID},
		"text":       {msg},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("notify: telegram %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}

// NotifyVerdict alerts on a non-acceptable evaluation. Acceptable verdicts
// are not worth a message and return nil without sending.
func (n *Notifier) NotifyVerdict(ctx context.Context, source string, res scoring.Result) error {
	switch res.Verdict {
	case scoring.VerdictCritical:
		msg := fmt.Sprintf(
			"<b>CRITICAL OVERFITTING</b>\nSource: <code>%s</code>\nScore: %.4f\nMax Deviation: %.4f\nDeployment blocked.",
			source, res.Score, res.MaxDeviation,
		)
		return n.Send(ctx, msg)
	case scoring.VerdictWarning:
		msg := fmt.Sprintf(
			"<b>Overfitting Warning</b>\nSource: <code>%s</code>\nScore: %.4f\nSession parameters drift above the accept threshold.",
			source, res.Score,
		)
		return n.Send(ctx, msg)
	default:
		return nil
	}
}

// NotifyGateLocked alerts that the deployment gate locked itself after a
// rejection streak.
func (n *Notifier) NotifyGateLocked(ctx context.Context, consecutiveRejections int) error {
	msg := fmt.Sprintf(
		"<b>Deployment Gate Locked</b>\nConsecutive Rejections: %d\nManual review required before further deployments.",
		consecutiveRejections,
	)
	return n.Send(ctx, msg)
}
