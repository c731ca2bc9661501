// Package telegram implements ports.Notifier against the Telegram Bot API.
// Messages go out through sendMessage; operator commands come back in through
// long-poll-free getUpdates calls driven by the trading loop.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"swingTraderBot/internal/ports"
)

const (
	apiBase        = "https://api.telegram.org"
	requestTimeout = 10 * time.Second
)

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token  string
	ChatID string
	Logger ports.Logger
}

// Notifier sends operator messages and polls for inbound commands. With empty
// credentials it degrades to a disabled no-op, so the bot runs fine without
// Telegram configured.
type Notifier struct {
	cfg     Config
	logger  ports.Logger
	client  *http.Client
	enabled bool

	// getUpdates offset; updates below it are acknowledged and never replayed.
	offset int64
}

// New creates the notifier. Stale updates queued while the bot was down are
// drained immediately so old commands are not executed on startup.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}

	n := &Notifier{
		cfg:     cfg,
		logger:  cfg.Logger,
		client:  &http.Client{Timeout: requestTimeout},
		enabled: cfg.Token != "" && cfg.ChatID != "",
	}
	if !n.enabled {
		cfg.Logger.Warn(context.Background(), "Telegram credentials not configured; notifications disabled")
		return n, nil
	}

	if err := n.drainPending(context.Background()); err != nil {
		// Not fatal: worst case an old command replays once.
		cfg.Logger.Warn(context.Background(), "Failed to drain pending Telegram updates", map[string]interface{}{"error": err.Error()})
	}
	cfg.Logger.Info(context.Background(), "Telegram notifier initialized")
	return n, nil
}

// Send delivers msg to the configured chat. Failures are logged, never
// returned: notification delivery must not influence trading.
func (n *Notifier) Send(ctx context.Context, msg string) {
	if !n.enabled {
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"chat_id":    n.cfg.ChatID,
		"text":       msg,
		"parse_mode": "Markdown",
	})
	if err != nil {
		n.logger.Error(ctx, err, "Failed to marshal Telegram message")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", apiBase, n.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error(ctx, err, "Failed to build Telegram request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error(ctx, err, "Failed to send Telegram message")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn(ctx, "Telegram sendMessage returned non-OK status", map[string]interface{}{"status": resp.StatusCode})
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Commands returns the command messages received since the previous call.
// Only messages from the configured chat that start with "/" qualify.
func (n *Notifier) Commands(ctx context.Context) ([]string, error) {
	if !n.enabled {
		return nil, nil
	}

	updates, err := n.getUpdates(ctx)
	if err != nil {
		return nil, err
	}

	var cmds []string
	for _, u := range updates {
		if u.UpdateID >= n.offset {
			n.offset = u.UpdateID + 1
		}
		if u.Message == nil || !strings.HasPrefix(u.Message.Text, "/") {
			continue
		}
		if fmt.Sprintf("%d", u.Message.Chat.ID) != n.cfg.ChatID {
			n.logger.Warn(ctx, "Ignoring command from unexpected chat", map[string]interface{}{"chatID": u.Message.Chat.ID})
			continue
		}
		cmds = append(cmds, strings.TrimSpace(u.Message.Text))
	}
	return cmds, nil
}

func (n *Notifier) getUpdates(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d", apiBase, n.cfg.Token, n.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building getUpdates request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: getUpdates: %v", ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates returned status %d", resp.StatusCode)
	}

	var parsed updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding getUpdates response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("getUpdates reported not ok")
	}
	return parsed.Result, nil
}

// drainPending advances the offset past everything already queued.
func (n *Notifier) drainPending(ctx context.Context) error {
	updates, err := n.getUpdates(ctx)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if u.UpdateID >= n.offset {
			n.offset = u.UpdateID + 1
		}
	}
	if len(updates) > 0 {
		n.logger.Info(ctx, "Discarded stale Telegram updates from before startup", map[string]interface{}{"count": len(updates)})
	}
	return nil
}

var _ ports.Notifier = (*Notifier)(nil)
