package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"tradecore/pkg/types"
)

// TickMessage is the wire shape this adapter expects from its JSON feed:
// one flat object per trade, already validated/normalized by the venue.
// A real venue integration would replace this with its own wire format;
// this adapter exists only to demonstrate the ingress boundary of
// spec.md §6, not to implement any venue's protocol.
type TickMessage struct {
	Instrument   string `json:"instrument"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	Precision    uint8  `json:"precision"`
	Aggressor    string `json:"aggressor"`
	TradeID      string `json:"trade_id"`
	TsEventNanos uint64 `json:"ts_event_nanos"`
}

// PollerConfig tunes PollingTickAdapter.
type PollerConfig struct {
	URL             string        `mapstructure:"poll_url"`
	Interval        time.Duration `mapstructure:"poll_interval"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
}

// PollingTickAdapter is a reference VenueIngress source: it polls a JSON
// endpoint for an array of TickMessage on a fixed interval, rate-limited
// by a TokenBucket, and feeds each one to a VenueIngress (normally
// internal/data.Engine). Grounded on the teacher's internal/exchange
// resty-backed REST client, generalized from Polymarket's CLOB endpoints
// to one configurable polling target.
type PollingTickAdapter struct {
	http    *resty.Client
	cfg     PollerConfig
	limiter *TokenBucket
	ingress VenueIngress
	log     *slog.Logger
}

// NewPollingTickAdapter constructs an adapter polling cfg.URL every
// cfg.Interval and pushing parsed ticks into ingress.
func NewPollingTickAdapter(cfg PollerConfig, ingress VenueIngress, log *slog.Logger) *PollingTickAdapter {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 10
	}
	return &PollingTickAdapter{
		http: resty.New().
			SetTimeout(5 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(250 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			}),
		cfg:     cfg,
		limiter: NewTokenBucket(cfg.RateLimitPerSec, cfg.RateLimitPerSec),
		ingress: ingress,
		log:     log.With("component", "poller-adapter"),
	}
}

// Run polls until ctx is canceled, feeding every parsed tick to the
// configured VenueIngress. Poll failures are logged and retried on the
// next tick rather than aborting the loop.
func (a *PollingTickAdapter) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.pollOnce(ctx); err != nil {
				a.log.Warn("poll failed", "error", err)
			}
		}
	}
}

func (a *PollingTickAdapter) pollOnce(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	var messages []TickMessage
	resp, err := a.http.R().SetContext(ctx).SetResult(&messages).Get(a.cfg.URL)
	if err != nil {
		return fmt.Errorf("poll %s: %w", a.cfg.URL, err)
	}
	if resp.IsError() {
		return fmt.Errorf("poll %s: status %d", a.cfg.URL, resp.StatusCode())
	}

	for _, m := range messages {
		tick, err := m.toTradeTick()
		if err != nil {
			a.log.Warn("dropping malformed tick", "error", err)
			continue
		}
		if err := a.ingress.SubmitTradeTick(tick); err != nil {
			a.log.Warn("submit trade tick failed", "instrument", tick.Instrument, "error", err)
		}
	}
	return nil
}

func (m TickMessage) toTradeTick() (types.TradeTick, error) {
	instrument, err := types.NewInstrumentId(m.Instrument)
	if err != nil {
		return types.TradeTick{}, err
	}
	price, err := types.PriceFromText(m.Price, m.Precision)
	if err != nil {
		return types.TradeTick{}, err
	}
	size, err := types.QuantityFromText(m.Size, m.Precision)
	if err != nil {
		return types.TradeTick{}, err
	}
	var aggressor types.AggressorSide
	switch m.Aggressor {
	case "BUYER":
		aggressor = types.AggressorBuyer
	case "SELLER":
		aggressor = types.AggressorSeller
	default:
		aggressor = types.AggressorNone
	}
	var tradeID types.TradeId
	if m.TradeID != "" {
		tradeID, err = types.NewTradeId(m.TradeID)
		if err != nil {
			return types.TradeTick{}, err
		}
	}
	return types.TradeTick{
		Instrument: instrument, Price: price, Size: size,
		Aggressor: aggressor, TradeID: tradeID, TsEventNanos: m.TsEventNanos,
	}, nil
}
