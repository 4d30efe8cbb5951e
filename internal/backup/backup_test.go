package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/cardfile"
	"github.com/iurnickita/giftcards/internal/model"
)

type fakeTarget struct {
	mu       sync.Mutex
	writes   [][]byte
	checkErr error
	writeErr error
}

func (f *fakeTarget) Name() string { return "fake" }

func (f *fakeTarget) CheckPermission() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkErr
}

func (f *fakeTarget) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeTarget) last() []model.Card {
	f.mu.Lock()
	defer f.mu.Unlock()
	cards, _ := cardfile.Decode(f.writes[len(f.writes)-1])
	return cards
}

func (f *fakeTarget) set(checkErr, writeErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkErr, f.writeErr = checkErr, writeErr
}

func cards(n int) []model.Card {
	var out []model.Card
	for i := 0; i < n; i++ {
		out = append(out, model.Card{ID: string(rune('a' + i)), Data: model.CardData{
			Number:  "CARD" + string(rune('A'+i)),
			PIN:     "12",
			Balance: decimal.NewFromInt(int64(i)),
		}})
	}
	return out
}

const delay = 20 * time.Millisecond

func TestAutosaverDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &fakeTarget{}
	a := NewAutosaver(delay, zap.NewNop(), nil)
	a.SetTarget(target)

	a.Schedule(cards(1))
	a.Schedule(cards(2))
	a.Schedule(cards(3))
	require.Equal(t, StatePending, a.Status().State)

	require.Eventually(t, func() bool { return a.Status().State == StateSaved }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, target.count())
	require.Len(t, target.last(), 3)
	require.False(t, a.Status().SavedAt.IsZero())

	a.Close()
}

func TestAutosaverFailureIsNotRetried(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &fakeTarget{}
	target.set(nil, errors.New("disk full"))
	a := NewAutosaver(delay, zap.NewNop(), nil)
	a.SetTarget(target)

	a.Schedule(cards(1))
	require.Eventually(t, func() bool { return a.Status().State == StateFailed }, time.Second, 5*time.Millisecond)
	require.Equal(t, "disk full", a.Status().Message)

	// повтора нет
	time.Sleep(3 * delay)
	require.Equal(t, StateFailed, a.Status().State)
	require.Equal(t, 0, target.count())

	// следующая мутация пишет снова
	target.set(nil, nil)
	a.Schedule(cards(2))
	require.Eventually(t, func() bool { return a.Status().State == StateSaved }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, target.count())

	a.Close()
}

func TestAutosaverPermissionRequired(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &fakeTarget{}
	target.set(ErrPermissionRequired, nil)
	a := NewAutosaver(delay, zap.NewNop(), nil)
	a.SetTarget(target)

	a.Schedule(cards(1))
	require.Eventually(t, func() bool { return a.Status().State == StatePermissionRequired }, time.Second, 5*time.Millisecond)

	// без повторного разрешения запись не планируется
	a.Schedule(cards(2))
	require.Equal(t, StatePermissionRequired, a.Status().State)

	target.set(nil, nil)
	a.SetTarget(target)
	require.Equal(t, StateIdle, a.Status().State)
	a.Schedule(cards(2))
	require.Eventually(t, func() bool { return a.Status().State == StateSaved }, time.Second, 5*time.Millisecond)
	require.Len(t, target.last(), 2)

	a.Close()
}

func TestAutosaverFlushAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &fakeTarget{}
	a := NewAutosaver(time.Hour, zap.NewNop(), nil)
	a.SetTarget(target)

	a.Schedule(cards(2))
	a.Close()

	require.Equal(t, 1, target.count())
	require.Equal(t, StateSaved, a.Status().State)

	// после закрытия ничего не планируется
	a.Schedule(cards(3))
	require.Equal(t, StateSaved, a.Status().State)
}

func TestAutosaverWithoutTarget(t *testing.T) {
	a := NewAutosaver(delay, zap.NewNop(), nil)
	a.Schedule(cards(1))
	require.Equal(t, StateDisabled, a.Status().State)
	a.Close()
}

func TestAutosaverWrote(t *testing.T) {
	target := &fakeTarget{}
	a := NewAutosaver(time.Hour, zap.NewNop(), nil)
	a.SetTarget(target)

	require.False(t, a.Wrote([]byte("[]")))
	a.Schedule(cards(1))
	a.Flush()

	data, err := cardfile.Encode(cards(1))
	require.NoError(t, err)
	require.True(t, a.Wrote(data))
	require.False(t, a.Wrote([]byte("[]")))
	a.Close()
}

func TestAutosaverVerify(t *testing.T) {
	a := NewAutosaver(time.Hour, zap.NewNop(), nil)
	require.ErrorIs(t, a.Verify(), ErrNoTarget)

	target := &fakeTarget{}
	a.SetTarget(target)
	require.NoError(t, a.Verify())
	require.Equal(t, StateIdle, a.Status().State)

	target.set(ErrPermissionRequired, nil)
	require.ErrorIs(t, a.Verify(), ErrPermissionRequired)
	require.Equal(t, StatePermissionRequired, a.Status().State)

	// до повторного разрешения изменения не пишутся
	a.Schedule(cards(1))
	a.Flush()
	require.Equal(t, 0, target.count())

	target.set(nil, nil)
	a.SetTarget(target)
	a.Schedule(cards(1))
	a.Flush()
	require.Equal(t, 1, target.count())
	a.Close()
}

func TestFileTarget(t *testing.T) {
	dir := t.TempDir()
	target, err := NewFileTarget(filepath.Join(dir, "backup.json"))
	require.NoError(t, err)

	require.NoError(t, target.CheckPermission())
	_, err = os.Stat(target.Path())
	require.True(t, os.IsNotExist(err))

	require.NoError(t, target.Write([]byte("[]")))
	data, err := target.Read()
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	_, err = NewFileTarget("")
	require.ErrorIs(t, err, ErrNoTarget)
}

func TestWatcherReportsExternalChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.json")

	var (
		mu       sync.Mutex
		received []model.Card
	)
	own, err := cardfile.Encode(cards(1))
	require.NoError(t, err)

	w, err := NewWatcher(
		func(data []byte) bool { return string(data) == string(own) },
		func(c []model.Card) {
			mu.Lock()
			defer mu.Unlock()
			received = c
		},
		zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Watch(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// собственная запись игнорируется
	require.NoError(t, os.WriteFile(path, own, 0o600))
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	require.Nil(t, received)
	mu.Unlock()

	external, err := cardfile.Encode(cards(3))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, external, 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	require.NoError(t, w.Close())
}
