package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"is31ledd/internal/ledservice"
	"is31ledd/internal/logging"
)

// Transport is the broker side of the bridge. *Client implements it.
type Transport interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, h MessageHandler) error
}

// Controller is the LED service as seen by the bridge.
type Controller interface {
	Snapshot() ledservice.Snapshot
	SetDuty(index, duty int) error
	SetFrequency(hz int) error
	Subscribe() (<-chan ledservice.Snapshot, func())
}

// Bridge applies MQTT commands to the service and mirrors its state back
// as retained messages.
type Bridge struct {
	tr     Transport
	ctl    Controller
	topics Topics
	log    *slog.Logger

	// last published payloads by topic; owned by Run.
	last map[string]string
}

func NewBridge(tr Transport, ctl Controller, prefix string, log *slog.Logger) *Bridge {
	if log == nil {
		log = logging.Discard()
	}
	return &Bridge{
		tr:     tr,
		ctl:    ctl,
		topics: Topics{Prefix: prefix},
		log:    log.With("component", "mqtt-bridge"),
		last:   make(map[string]string),
	}
}

// Start subscribes to the command topics.
func (b *Bridge) Start() error {
	if err := b.tr.Subscribe(b.topics.ChannelSetAll(), b.handleChannelSet); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topics.ChannelSetAll(), err)
	}
	if err := b.tr.Subscribe(b.topics.FrequencySet(), b.handleFrequencySet); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topics.FrequencySet(), err)
	}
	return nil
}

// Run publishes the current state, then every change, until ctx is done or
// the service closes.
func (b *Bridge) Run(ctx context.Context) {
	updates, cancel := b.ctl.Subscribe()
	defer cancel()

	b.publishSnapshot(b.ctl.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			b.publishSnapshot(snap)
		}
	}
}

func (b *Bridge) handleChannelSet(topic string, payload []byte) error {
	idx, err := b.topics.ParseChannelSet(topic)
	if err != nil {
		return err
	}
	duty, err := ParseInt(payload)
	if err != nil {
		return err
	}
	if err := b.ctl.SetDuty(idx, duty); err != nil {
		return fmt.Errorf("channel %d: %w", idx, err)
	}
	return nil
}

func (b *Bridge) handleFrequencySet(_ string, payload []byte) error {
	hz, err := ParseInt(payload)
	if err != nil {
		return err
	}
	return b.ctl.SetFrequency(hz)
}

// publishSnapshot publishes only the topics whose payload changed. A failed
// publish is retried on the next snapshot.
func (b *Bridge) publishSnapshot(snap ledservice.Snapshot) {
	if snap.FrequencyHz != 0 {
		b.publishIfChanged(b.topics.FrequencyState(), strconv.Itoa(snap.FrequencyHz))
	}
	for _, ch := range snap.Channels {
		b.publishIfChanged(b.topics.ChannelState(ch.Index), strconv.Itoa(int(ch.Effective())))
	}
}

func (b *Bridge) publishIfChanged(topic, payload string) {
	if prev, ok := b.last[topic]; ok && prev == payload {
		return
	}
	if err := b.tr.Publish(topic, []byte(payload), true); err != nil {
		b.log.Warn("publish failed", "topic", topic, "error", err)
		return
	}
	b.last[topic] = payload
}
