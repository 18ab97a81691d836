package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// Topics builds the bridge's topic names under one prefix.
type Topics struct {
	Prefix string
}

func (t Topics) Status() string { return t.Prefix + "/status" }

// ChannelSetAll is the wildcard subscription for per-channel commands.
func (t Topics) ChannelSetAll() string { return t.Prefix + "/channel/+/set" }

func (t Topics) ChannelSet(index int) string {
	return fmt.Sprintf("%s/channel/%d/set", t.Prefix, index)
}

func (t Topics) ChannelState(index int) string {
	return fmt.Sprintf("%s/channel/%d/state", t.Prefix, index)
}

func (t Topics) FrequencySet() string   { return t.Prefix + "/frequency/set" }
func (t Topics) FrequencyState() string { return t.Prefix + "/frequency/state" }

// ParseChannelSet extracts the channel index from a <prefix>/channel/<n>/set
// topic. The index is not range-checked; the driver does that.
func (t Topics) ParseChannelSet(topic string) (int, error) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/channel/")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	num, ok := strings.CutSuffix(rest, "/set")
	if !ok || num == "" || strings.Contains(num, "/") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	idx, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("%w: channel %q is not an integer", ErrInvalidTopic, num)
	}
	return idx, nil
}

// ParseInt decodes a decimal command payload. Surrounding whitespace is
// ignored.
func ParseInt(payload []byte) (int, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, s)
	}
	return v, nil
}
