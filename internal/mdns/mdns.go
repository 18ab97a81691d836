// Package mdns advertises the HTTP API on the local network via DNS-SD.
package mdns

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

const Domain = "local."

var ErrInvalidPort = errors.New("mdns: invalid port")

// Info describes the advertised instance.
type Info struct {
	Instance string
	Service  string // e.g. "_is31ledd._tcp"
	Port     int

	// Address is the chip's I2C address, published in TXT as address=0x3c.
	Address  uint16
	Channels int
	Version  string
}

// TXT builds the sorted key=value TXT strings for info.
func TXT(info Info) []string {
	txt := []string{
		fmt.Sprintf("address=0x%02x", info.Address),
		"channels=" + strconv.Itoa(info.Channels),
		"path=/api",
	}
	if info.Version != "" {
		txt = append(txt, "version="+info.Version)
	}
	sort.Strings(txt)
	return txt
}

// PortFromListen extracts the TCP port from an http.listen value such as
// ":8080" or "0.0.0.0:80".
func PortFromListen(listen string) (int, error) {
	_, p, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPort, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, p)
	}
	return port, nil
}

// Advertiser owns one zeroconf registration.
type Advertiser struct {
	iface string

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser advertises on iface, or on every interface when iface is empty.
func NewAdvertiser(iface string) *Advertiser {
	return &Advertiser{iface: iface}
}

func (a *Advertiser) interfaces() ([]net.Interface, error) {
	if a.iface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		return nil, fmt.Errorf("mdns interface %q: %w", a.iface, err)
	}
	return []net.Interface{*iface}, nil
}

// Advertise registers info, replacing any previous registration.
func (a *Advertiser) Advertise(info Info) error {
	if info.Port <= 0 || info.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, info.Port)
	}
	ifaces, err := a.interfaces()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(info.Instance, info.Service, Domain, info.Port, TXT(info), ifaces)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", info.Service, err)
	}
	a.server = server
	return nil
}

// Shutdown withdraws the advertisement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
