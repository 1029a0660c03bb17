package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/queue"
)

// Channel names a delivery adapter.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
)

// Sender delivers one body to one target; it reports whether the carrier
// accepted it.
type Sender interface {
	Send(ctx context.Context, target string, subject string, body string) bool
}

// UserReader resolves the recipient of a message.
type UserReader interface {
	GetUser(ctx context.Context, id int64) (*user.User, error)
}

// SendRecorder counts delivery outcomes.
type SendRecorder interface {
	MessageSent(channel string, ok bool)
	MessageDropped()
}

// ErrNoChannel is returned when the user has no usable contact.
var ErrNoChannel = errors.New("no delivery channel for user")

// Dispatcher drains the outbound queue and routes each message to exactly
// one channel. Failed messages are never re-queued.
type Dispatcher struct {
	users    UserReader
	in       *queue.Queue[*Message]
	telegram Sender
	email    Sender
	sms      Sender
	metrics  SendRecorder
	logger   logger.Interface
}

// NewDispatcher accepts nil senders for unconfigured channels.
func NewDispatcher(
	users UserReader,
	in *queue.Queue[*Message],
	telegram, email, sms Sender,
	metrics SendRecorder,
	log logger.Interface,
) *Dispatcher {
	return &Dispatcher{
		users:    users,
		in:       in,
		telegram: telegram,
		email:    email,
		sms:      sms,
		metrics:  metrics,
		logger:   log,
	}
}

// Run consumes messages until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Infow("dispatcher started")
	for {
		msg, err := d.in.Get(ctx)
		if err != nil {
			d.logger.Infow("dispatcher stopped")
			return nil
		}
		d.process(ctx, msg)
	}
}

func (d *Dispatcher) process(ctx context.Context, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("panic while dispatching", "user_id", msg.UserID, "panic", r)
		}
	}()

	u, err := d.users.GetUser(ctx, msg.UserID)
	if err != nil {
		d.logger.Warnw("could not load message recipient", "user_id", msg.UserID, "error", err)
		d.drop()
		return
	}
	if _, err := d.Send(ctx, msg, u); err != nil {
		d.logger.Warnw("message not delivered", "user_id", msg.UserID, "icu_id", msg.ICUID, "error", err)
	}
}

// Send picks the channel for u and delivers msg through it.
func (d *Dispatcher) Send(ctx context.Context, msg *Message, u *user.User) (Channel, error) {
	if u.Locale != "" {
		msg.Locale = u.Locale
	}
	content := Render(msg)

	var (
		channel Channel
		sender  Sender
		target  string
		body    string
	)
	switch {
	case d.telegram != nil && strings.TrimSpace(u.TelegramChatID) != "":
		channel, sender, target, body = ChannelTelegram, d.telegram, u.TelegramChatID, content.HTML
	case d.email != nil && strings.TrimSpace(u.Email) != "":
		channel, sender, target, body = ChannelEmail, d.email, u.Email, content.HTML
	case d.sms != nil && strings.TrimSpace(u.Phone) != "":
		channel, sender, target, body = ChannelSMS, d.sms, u.ASCIIPhone(), content.Text
	default:
		d.drop()
		return "", ErrNoChannel
	}

	ok := sender.Send(ctx, target, content.Subject, body)
	if d.metrics != nil {
		d.metrics.MessageSent(string(channel), ok)
	}
	if !ok {
		return channel, fmt.Errorf("%w: send via %s failed", access.ErrTransient, channel)
	}
	d.logger.Infow("message sent", "channel", channel, "user_id", msg.UserID, "icu", msg.ICUName)
	return channel, nil
}

func (d *Dispatcher) drop() {
	if d.metrics != nil {
		d.metrics.MessageDropped()
	}
}
