// Package broadcast runs the periodic refresh loop: on every tick it
// pulls fresh data for every asset backing an open bet, publishes
// updates on the signal bus, and persists the latest marks. The
// WebSocket hub subscribes to the bus, so updates reach every replica.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

// Bus channel and stream names shared with the WebSocket hub.
const (
	ChannelPrices  = "prices"
	ChannelWeather = "weather"
	StreamBets     = "bet-update"
)

// PriceChannel names the per-symbol channel for one asset.
func PriceChannel(symbol string) string { return "price:" + symbol }

// BetChannel names the per-bet channel.
func BetChannel(id string) string { return "bet:" + id }

// Event is the wire shape of every broadcast payload.
type Event struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// betUpdate is the bet-update event payload. Distance carries only the
// percent figure; the richer breakdown stays on the REST status endpoint.
type betUpdate struct {
	BetID        string              `json:"betId"`
	Asset        string              `json:"asset"`
	CurrentValue float64             `json:"currentValue"`
	Threshold    float64             `json:"threshold"`
	Position     domain.BetPosition  `json:"position"`
	Distance     float64             `json:"distance"`
	IsWinning    bool                `json:"isWinning"`
	Status       string              `json:"status"`
	PnL          domain.PnLBreakdown `json:"pnl"`
	Stale        bool                `json:"stale,omitempty"`
	Warning      string              `json:"warning,omitempty"`
}

func betUpdateFrom(s domain.BetStatus) betUpdate {
	return betUpdate{
		BetID:        s.BetID,
		Asset:        s.Asset,
		CurrentValue: s.CurrentValue,
		Threshold:    s.Threshold,
		Position:     s.Position,
		Distance:     s.Distance.Percent,
		IsWinning:    s.IsWinning,
		Status:       s.Status,
		PnL:          s.PnL,
		Stale:        s.Stale,
		Warning:      s.Warning,
	}
}

// Broadcaster drives the refresh loop.
type Broadcaster struct {
	bets     *service.BetService
	crypto   *service.CryptoService
	stocks   *service.StockService
	weather  *service.WeatherService
	bus      domain.SignalBus
	notifier service.Notifier
	interval time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	lastWinning map[string]bool
}

// New creates a Broadcaster. The notifier may be nil.
func New(
	bets *service.BetService,
	crypto *service.CryptoService,
	stocks *service.StockService,
	weather *service.WeatherService,
	bus domain.SignalBus,
	notifier service.Notifier,
	interval time.Duration,
	logger *slog.Logger,
) *Broadcaster {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Broadcaster{
		bets:        bets,
		crypto:      crypto,
		stocks:      stocks,
		weather:     weather,
		bus:         bus,
		notifier:    notifier,
		interval:    interval,
		logger:      logger,
		lastWinning: make(map[string]bool),
	}
}

// Run ticks until the context is cancelled. The first tick fires
// immediately so clients see data on startup.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.logger.Info("broadcast loop starting", slog.Duration("interval", b.interval))

	b.Tick(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcast loop stopped")
			return ctx.Err()
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick runs one refresh cycle. Failures in one data domain never block
// the others.
func (b *Broadcaster) Tick(ctx context.Context) {
	bets, err := b.bets.Unresolved(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "broadcast: list open bets failed", slog.String("error", err.Error()))
		return
	}
	if len(bets) == 0 {
		return
	}

	cryptoSyms, stockSyms, cities := groupAssets(bets)

	if len(cryptoSyms) > 0 {
		b.publishCrypto(ctx, cryptoSyms)
	}
	if len(stockSyms) > 0 {
		b.publishStocks(ctx, stockSyms)
	}
	for _, city := range cities {
		b.publishWeather(ctx, city)
	}

	b.publishBets(ctx, bets)
}

func groupAssets(bets []domain.Bet) (cryptoSyms, stockSyms, cities []string) {
	seen := make(map[string]bool)
	for _, bet := range bets {
		if bet.Asset == "" || seen[string(bet.Type)+":"+bet.Asset] {
			continue
		}
		seen[string(bet.Type)+":"+bet.Asset] = true
		switch bet.Type {
		case domain.BetTypeCrypto:
			cryptoSyms = append(cryptoSyms, bet.Asset)
		case domain.BetTypeStock:
			stockSyms = append(stockSyms, bet.Asset)
		case domain.BetTypeWeather:
			cities = append(cities, bet.Asset)
		}
	}
	return cryptoSyms, stockSyms, cities
}

func (b *Broadcaster) publishCrypto(ctx context.Context, symbols []string) {
	readings, err := b.crypto.Prices(ctx, symbols)
	if err != nil {
		b.logger.WarnContext(ctx, "broadcast: crypto refresh failed", slog.String("error", err.Error()))
		return
	}
	b.publish(ctx, ChannelPrices, "price-update", readings)
	for sym, reading := range readings {
		b.publish(ctx, PriceChannel(sym), "price-update", reading)
	}
}

func (b *Broadcaster) publishStocks(ctx context.Context, symbols []string) {
	quotes, err := b.stocks.Quotes(ctx, symbols)
	if err != nil {
		b.logger.WarnContext(ctx, "broadcast: stock refresh failed", slog.String("error", err.Error()))
		return
	}
	b.publish(ctx, ChannelPrices, "price-update", quotes)
	for sym, quote := range quotes {
		b.publish(ctx, PriceChannel(sym), "price-update", quote)
	}
}

func (b *Broadcaster) publishWeather(ctx context.Context, city string) {
	reading, err := b.weather.Current(ctx, city)
	if err != nil {
		b.logger.WarnContext(ctx, "broadcast: weather refresh failed",
			slog.String("city", city),
			slog.String("error", err.Error()),
		)
		return
	}
	b.publish(ctx, ChannelWeather, "weather-update", reading)
}

func (b *Broadcaster) publishBets(ctx context.Context, bets []domain.Bet) {
	for _, bet := range bets {
		status, err := b.bets.StatusOf(ctx, bet)
		if err != nil {
			b.logger.DebugContext(ctx, "broadcast: bet status skipped",
				slog.String("id", bet.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		update := betUpdateFrom(status)
		b.publish(ctx, BetChannel(bet.ID), "bet-update", update)
		b.append(ctx, StreamBets, "bet-update", update)

		// CurrentValue on a bet holds the latest share price, so the
		// snapshot writes the odds the status was computed with.
		odds := bet.EntryOdds
		if bet.CurrentValue != nil {
			odds = *bet.CurrentValue
		}
		if err := b.bets.SaveSnapshot(ctx, bet.ID, odds, status.PnL.UnrealizedPnL); err != nil {
			b.logger.WarnContext(ctx, "broadcast: snapshot failed",
				slog.String("id", bet.ID),
				slog.String("error", err.Error()),
			)
		}

		b.notifyFlip(ctx, bet, status)
	}
}

// notifyFlip alerts when a bet crosses between winning and losing
// since the previous tick.
func (b *Broadcaster) notifyFlip(ctx context.Context, bet domain.Bet, status domain.BetStatus) {
	b.mu.Lock()
	last, seen := b.lastWinning[bet.ID]
	b.lastWinning[bet.ID] = status.IsWinning
	b.mu.Unlock()

	if !seen || last == status.IsWinning || b.notifier == nil {
		return
	}

	title := "Bet now losing"
	if status.IsWinning {
		title = "Bet now winning"
	}
	msg := fmt.Sprintf("%s: %s at %.2f vs threshold %.2f",
		bet.Market, bet.Asset, status.CurrentValue, status.Threshold)
	if err := b.notifier.Notify(ctx, "bet_flip", title, msg); err != nil {
		b.logger.WarnContext(ctx, "broadcast: flip notification failed",
			slog.String("id", bet.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Broadcaster) publish(ctx context.Context, channel, event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data, Timestamp: time.Now()})
	if err != nil {
		b.logger.ErrorContext(ctx, "broadcast: marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := b.bus.Publish(ctx, channel, payload); err != nil {
		b.logger.WarnContext(ctx, "broadcast: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Broadcaster) append(ctx context.Context, stream, event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data, Timestamp: time.Now()})
	if err != nil {
		return
	}
	if err := b.bus.StreamAppend(ctx, stream, payload); err != nil {
		b.logger.WarnContext(ctx, "broadcast: stream append failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
	}
}
