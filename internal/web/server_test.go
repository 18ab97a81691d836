package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"is31ledd/internal/is31fl3236a"
	"is31ledd/internal/is31fl3236a/is31test"
	"is31ledd/internal/ledservice"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *ledservice.Service, *is31test.Bus) {
	t.Helper()
	bus := &is31test.Bus{}
	dev, err := is31fl3236a.New(bus)
	require.NoError(t, err)
	bus.ClearLog()

	svc := ledservice.New(dev, ledservice.Options{})
	ts := httptest.NewServer(Handler(svc, opts))
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Close()
	})
	return ts, svc, bus
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPIStatus(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	snap := decode[ledservice.Snapshot](t, resp)
	assert.Equal(t, uint16(0x3C), snap.Address)
	assert.Equal(t, 3000, snap.FrequencyHz)
	assert.Len(t, snap.Channels, 36)
}

func TestAPISetChannel(t *testing.T) {
	ts, _, bus := newTestServer(t, Options{})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/channels/7", `{"duty": 40960}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[ledservice.ChannelState](t, resp)
	assert.Equal(t, ledservice.ChannelState{Index: 7, Duty: 0xA000, Enabled: true}, st)
	assert.Equal(t, []is31test.Write{
		{Reg: 0x01 + 7, Val: 0xA0},
		{Reg: 0x26 + 7, Val: 0x01},
		{Reg: 0x25, Val: 0x00},
	}, bus.WriteLog())

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/channels/7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, st, decode[ledservice.ChannelState](t, resp))
}

func TestAPISetChannel_Errors(t *testing.T) {
	ts, _, bus := newTestServer(t, Options{})

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"OutOfRange", "/api/channels/0", `{"duty": 65536}`, http.StatusBadRequest, codeOutOfRange},
		{"Negative", "/api/channels/0", `{"duty": -1}`, http.StatusBadRequest, codeOutOfRange},
		{"BadIndex", "/api/channels/36", `{"duty": 1}`, http.StatusNotFound, codeInvalidChannel},
		{"NegativeIndex", "/api/channels/-1", `{"duty": 1}`, http.StatusNotFound, codeInvalidChannel},
		{"NotInteger", "/api/channels/x", `{"duty": 1}`, http.StatusBadRequest, codeBadRequest},
		{"MissingDuty", "/api/channels/0", `{}`, http.StatusBadRequest, codeBadRequest},
		{"UnknownField", "/api/channels/0", `{"duty": 1, "x": 2}`, http.StatusBadRequest, codeBadRequest},
		{"BadJSON", "/api/channels/0", `{`, http.StatusBadRequest, codeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPut, ts.URL+tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
			er := decode[ErrorResponse](t, resp)
			assert.Equal(t, tc.code, er.Code)
			assert.NotEmpty(t, er.Error)
		})
	}
	assert.Empty(t, bus.WriteLog())
}

func TestAPIGetChannel_NotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/channels/99", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPISetAll(t *testing.T) {
	ts, _, bus := newTestServer(t, Options{})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/channels", `{"duty": 256}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cr := decode[ChannelsResponse](t, resp)
	require.Len(t, cr.Channels, 36)
	for _, ch := range cr.Channels {
		assert.True(t, ch.Enabled)
		assert.Equal(t, uint16(0x100), ch.Duty)
	}
	assert.Len(t, bus.WriteLog(), 36*3)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/channels", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[ChannelsResponse](t, resp).Channels, 36)
}

func TestAPIFrequency(t *testing.T) {
	ts, _, bus := newTestServer(t, Options{})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/frequency", `{"hz": 22000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, byte(0x01), bus.Reg(0x4B))

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/frequency", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 22000, decode[FrequencyResponse](t, resp).Hz)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/frequency", `{"hz": 9600}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeInvalidArgument, decode[ErrorResponse](t, resp).Code)
	assert.Equal(t, byte(0x01), bus.Reg(0x4B))
}

func TestAPIReset(t *testing.T) {
	ts, svc, bus := newTestServer(t, Options{})
	require.NoError(t, svc.SetDuty(1, 0xFFFF))
	bus.ClearLog()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[ledservice.Snapshot](t, resp)
	assert.False(t, snap.Channels[1].Enabled)
	assert.Equal(t, []is31test.Write{{Reg: 0x4C, Val: 0x00}, {Reg: 0x00, Val: 0x01}}, bus.WriteLog())
}

func TestAPIBusError(t *testing.T) {
	ts, _, bus := newTestServer(t, Options{})
	bus.FailWrites(0x25, nil)

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/channels/3", `{"duty": 1}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, codeBusError, decode[ErrorResponse](t, resp).Code)
}

func TestAPIClosedService(t *testing.T) {
	ts, svc, _ := newTestServer(t, Options{})
	require.NoError(t, svc.Close())

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/channels/3", `{"duty": 1}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPIMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/channels/3", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPIAbout(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/about", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "is31ledd", decode[AboutResponse](t, resp).Service)
}

func TestRootPage(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	resp := doJSON(t, http.MethodGet, ts.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(10)
	_, _ = logs.Write([]byte("one\ntwo\n"))
	ts, _, _ := newTestServer(t, Options{Logs: logs})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/logs?tail=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"two"}, decode[LogsResponse](t, resp).Lines)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/logs?tail=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPILogs_NotMountedWithoutBuffer(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/logs", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
