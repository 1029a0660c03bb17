package handlers

import (
	"context"
	"html/template"
	"io"
	"time"

	"github.com/icubam/icubam/internal/application/aggregation"
	"github.com/icubam/icubam/internal/application/export"
	"github.com/icubam/icubam/internal/application/messaging"
	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/telegram"
)

// Ports of UpdateHandler

type updateAuthenticator interface {
	Authenticate(ctx context.Context, bearer string) (*user.User, *icu.ICU, error)
}

type latestBedCountReader interface {
	Now() time.Time
	LatestBedCounts(ctx context.Context, icuIDs []int64, asOf *time.Time) ([]*bedcount.BedCount, error)
}

type bedCountSubmitter interface {
	Submit(b *bedcount.BedCount)
}

type pageRenderer interface {
	Render(w io.Writer, name string, data interface{}) error
	Disclaimer() template.HTML
}

type tagStripper interface {
	StripTags(text string) string
}

// Ports of the external API handlers

type clientAuthenticator interface {
	AuthenticateClient(ctx context.Context, key string) (*access.ExternalClient, error)
}

type tableExporter interface {
	Export(ctx context.Context, client *access.ExternalClient, c export.Collection, opts export.Options) (*export.Table, error)
}

type mapBuilder interface {
	Build(ctx context.Context, opts aggregation.MapOptions) ([]aggregation.ClusterView, error)
}

// Ports of ScheduleHandler

type timerController interface {
	Schedule(ctx context.Context, u *user.User, i *icu.ICU, delay *time.Duration) bool
	Cancel(userID int64, icuIDs ...int64) int
	List(icuIDs []int64) []messaging.Pending
}

type scheduleDirectory interface {
	GetUser(ctx context.Context, id int64) (*user.User, error)
	GetICU(ctx context.Context, id int64) (*icu.ICU, error)
	GetManagedICUs(ctx context.Context, caller *user.User) ([]*icu.ICU, error)
}

// Port of TelegramHandler

type updateHandler interface {
	HandleUpdate(ctx context.Context, update *telegram.Update) error
}
