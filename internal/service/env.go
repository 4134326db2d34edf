package service

import (
	"context"
	"time"

	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/ws"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Clock supplies timestamps for lot ordering and audit rows.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Notifier receives events after a write commits.
type Notifier interface {
	Publish(ev ws.Event)
}

// Env carries what every engine service shares.
type Env struct {
	DB     *gorm.DB
	Locker lock.Locker
	Clock  Clock
	Notify Notifier
	Log    *logrus.Logger
}

func (e *Env) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock.Now().UTC()
}

func (e *Env) publish(ev ws.Event) {
	if e.Notify != nil {
		e.Notify.Publish(ev)
	}
}

// atomically runs fn in one transaction while holding keys.
func (e *Env) atomically(ctx context.Context, keys []string, fn func(tx *gorm.DB) error) error {
	release, err := e.Locker.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return e.DB.WithContext(ctx).Transaction(fn)
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(model.Scale)
}
