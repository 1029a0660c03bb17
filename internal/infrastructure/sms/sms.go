// Package sms sends text messages through one of the supported carriers.
package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	sharedConfig "github.com/icubam/icubam/internal/shared/config"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Carrier codes accepted in sms.carrier.
const (
	CarrierFake        = "fake"
	CarrierMessageBird = "MB"
	CarrierNexmo       = "NX"
	CarrierTwilio      = "TW"
)

type carrier interface {
	name() string
	deliver(ctx context.Context, to, text string) error
}

// Sender delivers text messages through the configured carrier.
type Sender struct {
	carrier carrier
	logger  logger.Interface
}

// New builds the sender for cfg.Carrier. An empty carrier means fake.
func New(cfg sharedConfig.SMSConfig, log logger.Interface) (*Sender, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var c carrier
	switch strings.ToUpper(cfg.Carrier) {
	case "", strings.ToUpper(CarrierFake):
		c = &fakeCarrier{logger: log}
	case CarrierMessageBird:
		c = newMessageBird(cfg.MB, timeout)
	case CarrierNexmo:
		c = newNexmo(cfg.NX, timeout)
	case CarrierTwilio:
		c = newTwilio(cfg.TW, timeout)
	default:
		return nil, fmt.Errorf("unknown sms carrier %q", cfg.Carrier)
	}
	return &Sender{carrier: c, logger: log}, nil
}

// Carrier reports which carrier is in use.
func (s *Sender) Carrier() string {
	return s.carrier.name()
}

// Send texts body to the phone number in target. subject is unused.
func (s *Sender) Send(ctx context.Context, to, subject, body string) bool {
	if err := s.carrier.deliver(ctx, to, body); err != nil {
		s.logger.Warnw("sms send failed",
			"carrier", s.carrier.name(),
			"to", logger.Mask(to),
			"error", err,
		)
		return false
	}
	return true
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// fakeCarrier only logs; used in development and tests.
type fakeCarrier struct {
	logger logger.Interface
}

func (f *fakeCarrier) name() string { return CarrierFake }

func (f *fakeCarrier) deliver(_ context.Context, to, text string) error {
	f.logger.Infow("fake sms", "to", to, "text", text)
	return nil
}
