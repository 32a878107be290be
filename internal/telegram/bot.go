package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/radio-control/lorabridge/internal/dispatch"
)

// Options configures the client.
type Options struct {
	// APIServer overrides https://api.telegram.org.
	APIServer string

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client

	// Quiet discards telego's own log output.
	Quiet bool
}

// Client implements dispatch.Messenger and dispatch.CommandRegistrar.
type Client struct {
	bot *telego.Bot

	mu sync.Mutex
	// seen is the highest update id fetched, including updates that carry
	// no message, so they are acknowledged on the next fetch.
	seen int64
}

var (
	_ dispatch.Messenger        = (*Client)(nil)
	_ dispatch.CommandRegistrar = (*Client)(nil)
)

type stdLogger struct{}

func (stdLogger) Debugf(string, ...any) {}

func (stdLogger) Errorf(format string, args ...any) {
	log.Printf("telegram: "+format, args...)
}

// New creates a client for token. The token format is validated locally;
// no request is made.
func New(token string, opts Options) (*Client, error) {
	botOpts := []telego.BotOption{}
	if opts.Quiet {
		botOpts = append(botOpts, telego.WithDiscardLogger())
	} else {
		botOpts = append(botOpts, telego.WithLogger(stdLogger{}))
	}
	if opts.APIServer != "" {
		botOpts = append(botOpts, telego.WithAPIServer(opts.APIServer))
	}
	if opts.HTTPClient != nil {
		botOpts = append(botOpts, telego.WithHTTPClient(opts.HTTPClient))
	}

	bot, err := telego.NewBot(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Client{bot: bot}, nil
}

// GetUpdates fetches updates after the given sequence without long polling.
// Messages and channel posts become inbound messages; the sender identity
// is the chat id.
func (c *Client) GetUpdates(ctx context.Context, after int64) ([]dispatch.InboundMessage, error) {
	c.mu.Lock()
	if c.seen > after {
		after = c.seen
	}
	c.mu.Unlock()

	updates, err := c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset:  int(after + 1),
		Timeout: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}

	msgs := make([]dispatch.InboundMessage, 0, len(updates))
	for _, u := range updates {
		c.mu.Lock()
		if int64(u.UpdateID) > c.seen {
			c.seen = int64(u.UpdateID)
		}
		c.mu.Unlock()

		m := u.Message
		if m == nil {
			m = u.ChannelPost
		}
		if m == nil {
			continue
		}
		msgs = append(msgs, dispatch.InboundMessage{
			Seq:         int64(u.UpdateID),
			Sender:      strconv.FormatInt(m.Chat.ID, 10),
			Text:        m.Text,
			DisplayName: displayName(m),
		})
	}
	return msgs, nil
}

func displayName(m *telego.Message) string {
	if m.From != nil && m.From.FirstName != "" {
		return m.From.FirstName
	}
	if m.Chat.Title != "" {
		return m.Chat.Title
	}
	return m.Chat.FirstName
}

// SendMessage sends plain text to a chat id or @username.
func (c *Client) SendMessage(ctx context.Context, identity, text string) error {
	chat, err := chatID(identity)
	if err != nil {
		return err
	}
	if _, err := c.bot.SendMessage(ctx, tu.Message(chat, text)); err != nil {
		return fmt.Errorf("sendMessage to %s: %w", identity, err)
	}
	return nil
}

func chatID(identity string) (telego.ChatID, error) {
	if identity == "" {
		return telego.ChatID{}, fmt.Errorf("empty chat identity")
	}
	if id, err := strconv.ParseInt(identity, 10, 64); err == nil {
		return tu.ID(id), nil
	}
	return tu.Username(identity), nil
}

// RegisterCommands publishes the bot command menu.
func (c *Client) RegisterCommands(ctx context.Context, cmds []dispatch.CommandInfo) error {
	params := &telego.SetMyCommandsParams{}
	for _, cmd := range cmds {
		params.Commands = append(params.Commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: cmd.Description,
		})
	}
	if err := c.bot.SetMyCommands(ctx, params); err != nil {
		return fmt.Errorf("setMyCommands: %w", err)
	}
	return nil
}

// BotName returns the bot username used as the command qualifier.
func (c *Client) BotName(ctx context.Context) (string, error) {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("getMe: %w", err)
	}
	return me.Username, nil
}
