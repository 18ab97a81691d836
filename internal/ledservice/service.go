// Package ledservice serializes access to one IS31FL3236A so that the HTTP
// API, MQTT bridge and console can share it, keeps a snapshot of the last
// known channel state, and persists commanded values.
package ledservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"is31ledd/internal/is31fl3236a"
	"is31ledd/internal/logging"
	"is31ledd/internal/sdb"
	"is31ledd/internal/store"
)

var ErrClosed = errors.New("ledservice: closed")

var persistTimeout = 2 * time.Second

// StateStore is the persistence the service writes through. *store.Store
// implements it.
type StateStore interface {
	SaveDuty(ctx context.Context, channel, duty int) error
	SaveDuties(ctx context.Context, duties map[int]int) error
	SaveFrequency(ctx context.Context, hz int) error
	Clear(ctx context.Context) error
	Load(ctx context.Context) (store.State, error)
}

type Options struct {
	// Store is optional.
	Store StateStore
	// SDB is optional; it is shut down after the device on Close.
	SDB    sdb.Pin
	Logger *slog.Logger
}

// ChannelState mirrors one channel's registers. Duty keeps the last PWM value
// even when the channel is switched off, as the chip does.
type ChannelState struct {
	Index   int    `json:"index"`
	Duty    uint16 `json:"duty"`
	Enabled bool   `json:"enabled"`
}

// Effective is the duty cycle actually driven on the output.
func (c ChannelState) Effective() uint16 {
	if !c.Enabled {
		return 0
	}
	return c.Duty
}

type Snapshot struct {
	Address     uint16         `json:"address"`
	FrequencyHz int            `json:"frequency_hz"`
	Channels    []ChannelState `json:"channels"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Service is safe for concurrent use.
type Service struct {
	dev   *is31fl3236a.Device
	store StateStore
	pin   sdb.Pin
	log   *slog.Logger

	// mu serializes every bus transaction and guards snap and closed.
	mu     sync.Mutex
	snap   Snapshot
	closed bool

	// outMu keeps store writes and subscriber updates in bus order. It is
	// taken before mu is released.
	outMu sync.Mutex

	subMu      sync.Mutex
	subs       map[int]chan Snapshot
	nextID     int
	subsClosed bool

	closeOnce sync.Once
	closeErr  error
}

// New wraps dev. The chip is assumed to be freshly reset (all channels off,
// 3 kHz), which is what is31fl3236a.New leaves it in.
func New(dev *is31fl3236a.Device, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	s := &Service{
		dev:   dev,
		store: opts.Store,
		pin:   opts.SDB,
		log:   log.With("component", "ledservice"),
		subs:  make(map[int]chan Snapshot),
	}
	s.snap = s.resetSnapshot()
	return s
}

func (s *Service) resetSnapshot() Snapshot {
	chs := make([]ChannelState, is31fl3236a.NumChannels)
	for i := range chs {
		chs[i].Index = i
	}
	return Snapshot{
		Address:      s.dev.Address(),
		FrequencyHz:  is31fl3236a.Freq3kHz,
		Channels:     chs,
		LastUpdateAt: time.Now().UTC(),
	}
}

// Snapshot returns a copy of the cached state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnapLocked()
}

func (s *Service) copySnapLocked() Snapshot {
	out := s.snap
	out.Channels = append([]ChannelState(nil), s.snap.Channels...)
	return out
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only see the most recent one. cancel must be called.
// After Close the returned channel is already closed.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	if s.subsClosed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Service) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// commitLocked stamps the snapshot, records err, and hands a copy to
// subscribers after the caller unlocks.
func (s *Service) commitLocked(err error) Snapshot {
	s.snap.LastUpdateAt = time.Now().UTC()
	if err != nil {
		s.snap.LastError = err.Error()
	} else {
		s.snap.LastError = ""
	}
	return s.copySnapLocked()
}

// handOffLocked releases mu and returns the unlock for outMu, which the
// caller holds while persisting and publishing.
func (s *Service) handOffLocked() func() {
	s.outMu.Lock()
	s.mu.Unlock()
	return s.outMu.Unlock
}

// rereadLocked refreshes one cached channel after a partial write. Best
// effort: a failed read keeps the cached value.
func (s *Service) rereadLocked(index int) {
	if st, err := s.readChannelLocked(index); err == nil {
		s.snap.Channels[index] = st
	}
}

func (s *Service) persist(what string, fn func(ctx context.Context, st StateStore) error) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx, s.store); err != nil {
		s.log.Warn("persist failed", "what", what, "error", err)
	}
}

// SetDuty sets one channel's duty cycle (0..0xFFFF).
func (s *Service) SetDuty(index, duty int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	ch, err := s.dev.Channels().Get(index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := ch.SetDutyCycle(duty); err != nil {
		if !errors.Is(err, is31fl3236a.ErrBus) {
			s.mu.Unlock()
			return err
		}
		s.rereadLocked(index)
		snap := s.commitLocked(err)
		done := s.handOffLocked()
		defer done()
		s.publish(snap)
		return err
	}
	s.applyDutyLocked(index, duty)
	snap := s.commitLocked(nil)
	done := s.handOffLocked()
	defer done()

	s.log.Debug("duty set", "channel", index, "duty", duty)
	s.persist("duty", func(ctx context.Context, st StateStore) error { return st.SaveDuty(ctx, index, duty) })
	s.publish(snap)
	return nil
}

func (s *Service) applyDutyLocked(index, duty int) {
	cs := &s.snap.Channels[index]
	if duty == 0 {
		cs.Enabled = false
		return
	}
	cs.Enabled = true
	cs.Duty = uint16(duty) & 0xFF00
}

// SetAll sets every channel to duty. The value is validated before any write;
// a bus failure stops at the failing channel.
func (s *Service) SetAll(duty int) error {
	if duty < 0 || duty > is31fl3236a.MaxDutyCycle {
		return fmt.Errorf("%w: duty cycle %d (want 0..0x%X)", is31fl3236a.ErrOutOfRange, duty, is31fl3236a.MaxDutyCycle)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	written := make(map[int]int, is31fl3236a.NumChannels)
	var setErr error
	cs := s.dev.Channels()
	for i := 0; i < cs.Len(); i++ {
		ch, err := cs.Get(i)
		if err == nil {
			err = ch.SetDutyCycle(duty)
		}
		if err != nil {
			if errors.Is(err, is31fl3236a.ErrBus) {
				s.rereadLocked(i)
			}
			setErr = err
			break
		}
		s.applyDutyLocked(i, duty)
		written[i] = duty
	}
	snap := s.commitLocked(setErr)
	done := s.handOffLocked()
	defer done()

	if len(written) > 0 {
		s.persist("duties", func(ctx context.Context, st StateStore) error { return st.SaveDuties(ctx, written) })
	}
	s.publish(snap)
	return setErr
}

// ApplyDuties sets several channels in ascending channel order. Used for
// startup state; stops at the first error.
func (s *Service) ApplyDuties(duties map[int]int) error {
	idx := make([]int, 0, len(duties))
	for i := range duties {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		if err := s.SetDuty(i, duties[i]); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
	}
	return nil
}

// Channel reads one channel back from the chip and refreshes the snapshot.
func (s *Service) Channel(index int) (ChannelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ChannelState{}, ErrClosed
	}
	st, err := s.readChannelLocked(index)
	if err != nil {
		return ChannelState{}, err
	}
	s.snap.Channels[index] = st
	return st, nil
}

func (s *Service) readChannelLocked(index int) (ChannelState, error) {
	ch, err := s.dev.Channels().Get(index)
	if err != nil {
		return ChannelState{}, err
	}
	duty, err := ch.DutyCycle()
	if err != nil {
		return ChannelState{}, err
	}
	on, err := ch.Enabled()
	if err != nil {
		return ChannelState{}, err
	}
	return ChannelState{Index: index, Duty: duty, Enabled: on}, nil
}

// Refresh re-reads every channel and the frequency from the chip.
func (s *Service) Refresh() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	var err error
	for i := 0; i < is31fl3236a.NumChannels && err == nil; i++ {
		var st ChannelState
		if st, err = s.readChannelLocked(i); err == nil {
			s.snap.Channels[i] = st
		}
	}
	if err == nil {
		var hz int
		if hz, err = s.dev.Frequency(); err == nil {
			s.snap.FrequencyHz = hz
		}
	}
	snap := s.commitLocked(err)
	done := s.handOffLocked()
	defer done()

	s.publish(snap)
	return snap, err
}

// Frequency reads the PWM frequency from the chip.
func (s *Service) Frequency() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	hz, err := s.dev.Frequency()
	if err != nil {
		return 0, err
	}
	s.snap.FrequencyHz = hz
	return hz, nil
}

// SetFrequency sets the PWM frequency shared by all channels.
func (s *Service) SetFrequency(hz int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.dev.SetFrequency(hz); err != nil {
		s.mu.Unlock()
		return err
	}
	s.snap.FrequencyHz = hz
	snap := s.commitLocked(nil)
	done := s.handOffLocked()
	defer done()

	s.log.Info("frequency set", "hz", hz)
	s.persist("frequency", func(ctx context.Context, st StateStore) error { return st.SaveFrequency(ctx, hz) })
	s.publish(snap)
	return nil
}

// Reset soft-resets the chip: all channels off, PWM registers cleared,
// frequency back to 3 kHz. Persisted duties are cleared.
func (s *Service) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.dev.Reset(); err != nil {
		snap := s.commitLocked(err)
		done := s.handOffLocked()
		defer done()
		s.publish(snap)
		return err
	}
	s.snap = s.resetSnapshot()
	snap := s.copySnapLocked()
	done := s.handOffLocked()
	defer done()

	s.log.Info("device reset")
	s.persist("reset", func(ctx context.Context, st StateStore) error {
		if err := st.Clear(ctx); err != nil {
			return err
		}
		return st.SaveFrequency(ctx, is31fl3236a.Freq3kHz)
	})
	s.publish(snap)
	return nil
}

// Restore applies the persisted frequency and duties. Without a store it is
// a no-op.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	st, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if st.FrequencyHz != 0 {
		if err := s.SetFrequency(st.FrequencyHz); err != nil {
			return fmt.Errorf("restore frequency: %w", err)
		}
	}
	if err := s.ApplyDuties(st.Duties); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.log.Info("state restored", "channels", len(st.Duties), "frequency_hz", st.FrequencyHz)
	return nil
}

// Close resets the chip once, then drives SDB low and releases it.
// Subscribers' channels are closed.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		err := s.dev.Close()
		s.mu.Unlock()

		if s.pin != nil {
			err = errors.Join(err, s.pin.Shutdown(), s.pin.Close())
		}

		s.subMu.Lock()
		s.subsClosed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subMu.Unlock()

		s.closeErr = err
	})
	return s.closeErr
}
