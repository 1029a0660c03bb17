package messaging

import (
	"context"
	"strings"
	"time"

	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/shared/logger"
)

const startCommand = "/start"

// BearerAuthenticator checks an update token.
type BearerAuthenticator interface {
	Authenticate(ctx context.Context, bearer string) (*user.User, *icu.ICU, error)
}

// ChatBinder stores the chat of a user.
type ChatBinder interface {
	SetTelegramChatID(ctx context.Context, userID int64, chatID string) error
}

// Replier answers in a chat.
type Replier interface {
	Send(ctx context.Context, chatID string, subject string, body string) bool
}

// PairScheduler is the part of the scheduler registration needs.
type PairScheduler interface {
	Schedule(ctx context.Context, u *user.User, i *icu.ICU, delay *time.Duration) bool
}

// Registrar binds chat-bot users from "/start <token>" messages.
type Registrar struct {
	auth      BearerAuthenticator
	store     ChatBinder
	bot       Replier
	scheduler PairScheduler
	pingDelay time.Duration
	logger    logger.Interface
}

func NewRegistrar(
	auth BearerAuthenticator,
	store ChatBinder,
	bot Replier,
	scheduler PairScheduler,
	pingDelay time.Duration,
	log logger.Interface,
) *Registrar {
	return &Registrar{
		auth:      auth,
		store:     store,
		bot:       bot,
		scheduler: scheduler,
		pingDelay: pingDelay,
		logger:    log,
	}
}

// ExtractToken returns the argument of a /start command.
func ExtractToken(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, startCommand) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, startCommand)), true
}

// InviteURL is the deep link that opens the bot with token pre-filled.
func InviteURL(botName, token string) string {
	return "https://t.me/" + botName + "?start=" + token
}

// HandleMessage processes one incoming chat message. languageCode is the
// sender's client language, used for replies.
func (r *Registrar) HandleMessage(ctx context.Context, chatID, text, languageCode string) {
	if chatID == "" {
		r.logger.Warnw("update has no chat id")
		return
	}
	token, ok := ExtractToken(text)
	if !ok {
		r.bot.Send(ctx, chatID, "", localized(languageCode, keyUsage))
		return
	}

	u, i, err := r.auth.Authenticate(ctx, token)
	if err != nil {
		r.logger.Warnw("cannot identify telegram user", "chat_id", chatID, "error", err)
		r.bot.Send(ctx, chatID, "", localized(languageCode, keyUnknown))
		return
	}

	locale := u.Locale
	if locale == "" {
		locale = languageCode
	}
	if u.TelegramChatID == chatID {
		r.bot.Send(ctx, chatID, "", localized(locale, keyRegistered))
		return
	}
	if err := r.store.SetTelegramChatID(ctx, u.ID, chatID); err != nil {
		r.logger.Errorw("failed to store telegram chat id", "user_id", u.ID, "error", err)
		return
	}
	u.TelegramChatID = chatID
	r.logger.Infow("telegram user registered", "user_id", u.ID, "icu_id", i.ID)

	if r.scheduler != nil {
		delay := r.pingDelay
		r.scheduler.Schedule(ctx, u, i, &delay)
	}
	r.bot.Send(ctx, chatID, "", localized(locale, keyRegistered))
}
