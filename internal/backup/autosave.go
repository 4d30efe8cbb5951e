package backup

import (
	"crypto/sha256"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/cardfile"
	"github.com/iurnickita/giftcards/internal/metrics"
	"github.com/iurnickita/giftcards/internal/model"
)

type State string

const (
	StateDisabled           State = "disabled"
	StateIdle               State = "idle"
	StatePending            State = "pending"
	StateSaving             State = "saving"
	StateSaved              State = "saved"
	StateFailed             State = "failed"
	StatePermissionRequired State = "permission_required"
)

const DefaultDelay = 2 * time.Second

type Status struct {
	Target  string
	State   State
	Message string
	SavedAt time.Time
}

// Autosaver batches rapid mutations into one write after a quiet period.
// Only the latest snapshot is kept; a write that has started is never cancelled.
// Failures are reported through Status and are not retried.
type Autosaver struct {
	delay   time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	target     Target
	timer      *time.Timer
	pending    []model.Card
	hasPending bool
	status     Status
	lastSum    [sha256.Size]byte
	closed     bool

	writeMu sync.Mutex
	writes  sync.WaitGroup
}

func NewAutosaver(delay time.Duration, logger *zap.Logger, m *metrics.Metrics) *Autosaver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Autosaver{
		delay:   delay,
		logger:  logger,
		metrics: m,
		status:  Status{State: StateDisabled},
	}
}

// SetTarget replaces the target and clears any failure. A nil target disables autosave.
func (a *Autosaver) SetTarget(target Target) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopTimer()
	a.pending, a.hasPending = nil, false
	a.target = target
	a.lastSum = [sha256.Size]byte{}
	if target == nil {
		a.status = Status{State: StateDisabled}
		return
	}
	a.status = Status{Target: target.Name(), State: StateIdle}
}

// Schedule replaces the pending snapshot and restarts the quiet period.
func (a *Autosaver) Schedule(cards []model.Card) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.target == nil {
		return
	}
	// без повторного разрешения не пишем
	if a.status.State == StatePermissionRequired {
		return
	}

	a.pending = append([]model.Card(nil), cards...)
	a.hasPending = true
	a.status.State = StatePending
	a.stopTimer()
	a.timer = time.AfterFunc(a.delay, a.fire)
}

// Flush writes the pending snapshot now, if there is one.
func (a *Autosaver) Flush() {
	a.mu.Lock()
	a.stopTimer()
	a.mu.Unlock()
	a.fire()
}

// Verify re-checks access to the target without writing.
func (a *Autosaver) Verify() error {
	a.mu.Lock()
	target := a.target
	a.mu.Unlock()
	if target == nil {
		return ErrNoTarget
	}

	err := target.CheckPermission()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target == target && errors.Is(err, ErrPermissionRequired) {
		a.status.State = StatePermissionRequired
		a.status.Message = "access to " + target.Name() + " must be granted again"
	}
	return err
}

func (a *Autosaver) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Wrote reports whether data is exactly what the last successful write produced.
func (a *Autosaver) Wrote(data []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSum != [sha256.Size]byte{} && a.lastSum == sha256.Sum256(data)
}

// Close flushes the pending snapshot and waits for writes in flight.
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.Flush()
	a.writes.Wait()
}

func (a *Autosaver) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	if !a.hasPending || a.target == nil {
		a.mu.Unlock()
		return
	}
	cards, target := a.pending, a.target
	a.pending, a.hasPending = nil, false
	a.status.State = StateSaving
	a.writes.Add(1)
	a.mu.Unlock()

	defer a.writes.Done()
	a.write(target, cards)
}

func (a *Autosaver) write(target Target, cards []model.Card) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	data, err := a.encodeAndWrite(target, cards)

	a.mu.Lock()
	defer a.mu.Unlock()
	// цель сменилась, пока шла запись
	if a.target != target {
		return
	}

	switch {
	case errors.Is(err, ErrPermissionRequired):
		a.status.State = StatePermissionRequired
		a.status.Message = "access to " + target.Name() + " must be granted again"
		a.logger.Warn("backup permission required", zap.String("target", target.Name()))
	case err != nil:
		a.status.State = StateFailed
		a.status.Message = err.Error()
		a.logger.Warn("backup write failed", zap.String("target", target.Name()), zap.Error(err))
	default:
		a.status.State = StateSaved
		a.status.Message = ""
		a.status.SavedAt = time.Now()
		a.lastSum = sha256.Sum256(data)
		a.logger.Debug("backup written", zap.String("target", target.Name()), zap.Int("cards", len(cards)))
	}
	a.metrics.RecordAutosave(string(a.status.State))

	if a.hasPending && a.status.State != StatePermissionRequired {
		a.status.State = StatePending
	}
}

func (a *Autosaver) encodeAndWrite(target Target, cards []model.Card) ([]byte, error) {
	if err := target.CheckPermission(); err != nil {
		return nil, err
	}
	data, err := cardfile.Encode(cards)
	if err != nil {
		return nil, err
	}
	return data, target.Write(data)
}
