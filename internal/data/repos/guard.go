package repos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/platform/logger"
)

// availabilityGuard wraps a DocumentRepo with a failure-cooldown window:
// after a backend error, calls inside the window return
// ErrRegistryUnavailable immediately instead of hammering an unreachable
// store. Exactly one attempt is made per failure window. The guard owns its
// own timer state; nothing here is package-global.
type availabilityGuard struct {
	inner    DocumentRepo
	log      *logger.Logger
	cooldown time.Duration

	mu         sync.Mutex
	failedAt   time.Time
	failLogged bool
}

func NewAvailabilityGuard(inner DocumentRepo, baseLog *logger.Logger, cooldown time.Duration) DocumentRepo {
	return &availabilityGuard{
		inner:    inner,
		log:      baseLog.With("repo", "AvailabilityGuard", "backend", inner.Backend()),
		cooldown: cooldown,
	}
}

func (g *availabilityGuard) Upsert(ctx context.Context, rec *domain.DocumentRecord) error {
	if err := g.enter(); err != nil {
		return err
	}
	return g.observe(g.inner.Upsert(ctx, rec))
}

func (g *availabilityGuard) FindByID(ctx context.Context, docID string) (*domain.DocumentRecord, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	rec, err := g.inner.FindByID(ctx, docID)
	if err := g.observe(err); err != nil {
		return nil, err
	}
	return rec, nil
}

func (g *availabilityGuard) ListAll(ctx context.Context) ([]*domain.DocumentRecord, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	recs, err := g.inner.ListAll(ctx)
	if err := g.observe(err); err != nil {
		return nil, err
	}
	return recs, nil
}

func (g *availabilityGuard) Backend() string { return g.inner.Backend() }

// enter rejects calls while the cooldown window is open.
func (g *availabilityGuard) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failedAt.IsZero() {
		return nil
	}
	if time.Since(g.failedAt) < g.cooldown {
		return ErrRegistryUnavailable
	}
	g.failedAt = time.Time{}
	g.failLogged = false
	return nil
}

// observe classifies a backend error. Data-shape errors pass through;
// anything else (dead connection, unreachable host, closed pool) opens the
// cooldown window and is reported as unavailability.
func (g *availabilityGuard) observe(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrInvalidData) {
		return err
	}
	g.mu.Lock()
	g.failedAt = time.Now()
	logIt := !g.failLogged
	g.failLogged = true
	g.mu.Unlock()
	if logIt {
		g.log.Warn("Registry backend failed, entering cooldown",
			"error", err, "cooldown", g.cooldown.String())
	}
	return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
}
