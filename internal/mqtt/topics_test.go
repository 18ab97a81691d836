package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	tp := Topics{Prefix: "leds"}
	assert.Equal(t, "leds/status", tp.Status())
	assert.Equal(t, "leds/channel/+/set", tp.ChannelSetAll())
	assert.Equal(t, "leds/channel/7/set", tp.ChannelSet(7))
	assert.Equal(t, "leds/channel/35/state", tp.ChannelState(35))
	assert.Equal(t, "leds/frequency/set", tp.FrequencySet())
	assert.Equal(t, "leds/frequency/state", tp.FrequencyState())
}

func TestParseChannelSet(t *testing.T) {
	tp := Topics{Prefix: "a/b"}

	idx, err := tp.ParseChannelSet("a/b/channel/12/set")
	require.NoError(t, err)
	assert.Equal(t, 12, idx)

	// Range is the driver's concern.
	idx, err = tp.ParseChannelSet("a/b/channel/99/set")
	require.NoError(t, err)
	assert.Equal(t, 99, idx)

	for _, bad := range []string{
		"a/b/channel//set",
		"a/b/channel/x/set",
		"a/b/channel/1/state",
		"a/b/channel/1/2/set",
		"other/channel/1/set",
		"a/b/frequency/set",
	} {
		_, err := tp.ParseChannelSet(bad)
		assert.ErrorIs(t, err, ErrInvalidTopic, bad)
	}
}

func TestParseInt(t *testing.T) {
	v, err := ParseInt([]byte(" 65535\n"))
	require.NoError(t, err)
	assert.Equal(t, 65535, v)

	v, err = ParseInt([]byte("-1"))
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	for _, bad := range []string{"", "1.5", "on", "0x10"} {
		_, err := ParseInt([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidPayload, bad)
	}
}
