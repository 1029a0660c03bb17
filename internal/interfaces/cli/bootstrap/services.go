package bootstrap

import (
	"context"
	"fmt"

	httpRouter "github.com/icubam/icubam/internal/interfaces/http"
)

// Session is an opened runtime plus the store and authenticator, without
// any server component.
type Session struct {
	*Runtime
	Services *httpRouter.Container
}

// OpenSession is Open followed by the headless service container.
func OpenSession(ctx context.Context, f *Flags) (*Session, error) {
	rt, err := Open(ctx, f)
	if err != nil {
		return nil, err
	}
	c, err := httpRouter.NewContainer(ctx, rt.DB, rt.Config, httpRouter.Components{}, rt.Log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build services: %w", err)
	}
	return &Session{Runtime: rt, Services: c}, nil
}

// Close shuts the services down, then the database.
func (s *Session) Close() {
	s.Services.Shutdown(context.Background())
	s.Runtime.Close()
}
