package services

import (
	"context"
	"errors"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

// PolicyKind selects how a time window is evaluated. Cooldown policies use
// rolling elapsed time; calendar-day policies reset at UTC midnight. The
// two are deliberately distinct — "resets at midnight" and "rolling 24h"
// are different product semantics.
type PolicyKind int

const (
	// CooldownSince allows once per rolling duration since last use.
	CooldownSince PolicyKind = iota
	// CalendarDay allows at most MaxPerDay uses per UTC calendar day.
	CalendarDay
	// AbsoluteWindow is valid between StartsAt and EndsAt, with lazy
	// self-deactivation once EndsAt has passed.
	AbsoluteWindow
)

type Policy struct {
	Kind      PolicyKind
	Cooldown  time.Duration // CooldownSince
	MaxPerDay int64         // CalendarDay
	StartsAt  *time.Time    // AbsoluteWindow
	EndsAt    *time.Time    // AbsoluteWindow
}

// Decision is the gate verdict. RetryAfter is only set on denial.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

const gateRetries = 3

// Gate enforces "N per period" and "active between start/end" constraints.
// Check and consume happen in one conditional write: two concurrent
// requests cannot both observe "allowed" and both consume.
type Gate struct {
	ledger store.Ledger
	clock  store.Clock
	logger zerolog.Logger
}

func NewGate(ledger store.Ledger, clock store.Clock, logger zerolog.Logger) *Gate {
	if clock == nil {
		clock = store.RealClock()
	}
	return &Gate{ledger: ledger, clock: clock, logger: logger}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func untilNextUTCMidnight(now time.Time) time.Duration {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return midnight.Sub(utc)
}

// CheckAndConsume evaluates the policy for key and, when allowed, writes
// the consumed state under the same version guard. A concurrent writer
// triggers a re-read and re-evaluation, bounded by gateRetries.
func (g *Gate) CheckAndConsume(ctx context.Context, key string, p Policy) (Decision, error) {
	for attempt := 0; attempt < gateRetries; attempt++ {
		win, created, err := g.loadOrInit(ctx, key, p)
		if err != nil {
			return Decision{}, err
		}

		decision := g.evaluate(win, p)
		if !decision.Allowed {
			g.selfHeal(ctx, win, p)
			return decision, nil
		}

		g.consume(win, p)
		if created {
			err = g.ledger.CreateWindow(ctx, win)
		} else {
			err = g.ledger.UpdateWindow(ctx, win)
		}
		if err == nil {
			return decision, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return Decision{}, err
		}
		// Lost the race; re-read and re-evaluate.
	}
	return Decision{}, ErrConflict("time window contention on " + key)
}

// Peek evaluates without consuming. Expired absolute windows still
// self-heal on read.
func (g *Gate) Peek(ctx context.Context, key string, p Policy) (Decision, error) {
	win, _, err := g.loadOrInit(ctx, key, p)
	if err != nil {
		return Decision{}, err
	}
	decision := g.evaluate(win, p)
	if !decision.Allowed {
		g.selfHeal(ctx, win, p)
	}
	return decision, nil
}

func (g *Gate) loadOrInit(ctx context.Context, key string, p Policy) (*models.TimeWindow, bool, error) {
	win, err := g.ledger.GetWindow(ctx, key)
	if err == nil {
		return win, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	fresh := &models.TimeWindow{
		Key:          key,
		IsActive:     true,
		StartsAt:     p.StartsAt,
		EndsAt:       p.EndsAt,
		MaxPerPeriod: p.MaxPerDay,
	}
	if p.Kind == AbsoluteWindow && p.StartsAt == nil && p.EndsAt == nil {
		// An absolute window nobody configured is closed, not open.
		// Cooldown and calendar rows still synthesize as usable so a
		// first use can succeed.
		fresh.IsActive = false
	}
	return fresh, true, nil
}

func (g *Gate) evaluate(win *models.TimeWindow, p Policy) Decision {
	now := g.clock.Now()

	switch p.Kind {
	case CooldownSince:
		if win.LastUsedAt == nil {
			return Decision{Allowed: true}
		}
		elapsed := now.Sub(*win.LastUsedAt)
		if elapsed >= p.Cooldown {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, RetryAfter: p.Cooldown - elapsed}

	case CalendarDay:
		today := dayKey(now)
		if win.PeriodKey != today {
			// New day; stored counter belongs to a stale period.
			return Decision{Allowed: true}
		}
		if win.Counter < p.MaxPerDay {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, RetryAfter: untilNextUTCMidnight(now)}

	case AbsoluteWindow:
		if !win.IsActive {
			return Decision{Allowed: false}
		}
		if win.StartsAt != nil && now.Before(*win.StartsAt) {
			return Decision{Allowed: false, RetryAfter: win.StartsAt.Sub(now)}
		}
		if win.EndsAt != nil && !now.Before(*win.EndsAt) {
			// Implicitly inactive regardless of the stored flag.
			return Decision{Allowed: false}
		}
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false}
}

func (g *Gate) consume(win *models.TimeWindow, p Policy) {
	now := g.clock.Now()
	switch p.Kind {
	case CooldownSince:
		win.LastUsedAt = &now
	case CalendarDay:
		today := dayKey(now)
		if win.PeriodKey != today {
			win.PeriodKey = today
			win.Counter = 0
		}
		win.Counter++
		win.LastUsedAt = &now
	case AbsoluteWindow:
		win.Counter++
		win.LastUsedAt = &now
	}
}

// selfHeal clears the stored active flag once an absolute window has
// expired, so later reads see consistent state. Best-effort; a losing CAS
// here just means someone else healed it first.
func (g *Gate) selfHeal(ctx context.Context, win *models.TimeWindow, p Policy) {
	if p.Kind != AbsoluteWindow || !win.IsActive || win.ID == "" {
		return
	}
	now := g.clock.Now()
	if win.EndsAt == nil || now.Before(*win.EndsAt) {
		return
	}
	win.IsActive = false
	if err := g.ledger.UpdateWindow(ctx, win); err != nil && !errors.Is(err, store.ErrVersionConflict) {
		g.logger.Warn().Err(err).Str("key", win.Key).Msg("failed to deactivate expired window")
	}
}
