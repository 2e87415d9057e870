//go:build tinygo && picow

// Package wifi brings up the Pico W radio and an lneto network stack.
//
// Credentials are set at link time:
//
//	tinygo flash -target=pico-w -tags=picow \
//	  -ldflags="-X github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/wifi.ssid=NET -X github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/wifi.pass=SECRET"
package wifi

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/x/xnet"
)

const mtu = cyw43439.MTU

var (
	ssid string
	pass string
)

// SSID returns the network name set via linker flags.
func SSID() string { return ssid }

// Config describes how to join the network.
type Config struct {
	Hostname string
	// StaticAddr is requested over DHCP and used as a static address when
	// DHCP does not answer. Zero means DHCP only.
	StaticAddr  netip.Addr
	MaxTCPConns int
	Logger      *slog.Logger
}

// Stack is a joined network interface with its lneto stack.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
}

// Join initializes the radio, joins the network from the linker flags,
// retrying until it succeeds, and resets the stack. Call Configure next.
func Join(cfg Config) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)

	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("wifi:init", slog.Duration("duration", time.Since(start)))

	for {
		err := dev.JoinWPA2(ssid, pass)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.String("ssid", ssid), slog.String("err", err.Error()))
		time.Sleep(5 * time.Second)
	}

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("get hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("ssid", ssid), slog.String("mac", net.HardwareAddr(mac[:]).String()))

	st := &Stack{
		dev:     dev,
		log:     logger,
		sendbuf: make([]byte, mtu),
	}

	err = st.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     max(cfg.MaxTCPConns, 1),
		RandSeed:        time.Since(start).Nanoseconds(),
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}

	dev.RecvEthHandle(func(pkt []byte) error {
		return st.s.Demux(pkt, 0)
	})

	return st, nil
}

// Configure obtains an address over DHCP, falling back to cfg.StaticAddr.
// The packet pump must already be running.
func (s *Stack) Configure(cfg Config) error {
	requested := cfg.StaticAddr
	if !requested.IsValid() {
		requested = netip.AddrFrom4([4]byte{})
	}
	if !requested.Is4() {
		return errors.New("only dhcpv4 supported")
	}

	rstack := s.s.StackRetrying(50 * time.Millisecond)

	s.log.Info("dhcp:starting")
	results, err := rstack.DoDHCPv4(requested.As4(), 3*time.Second, 3)
	if err != nil {
		if requested.IsUnspecified() {
			return errors.New("dhcp failed:" + err.Error())
		}
		s.log.Warn("dhcp:static-fallback", slog.String("ip", requested.String()))
		s.s.SetIPAddr(requested)
		return nil
	}

	if err := s.s.AssimilateDHCPResults(results); err != nil {
		return errors.New("assimilate dhcp:" + err.Error())
	}

	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)

	s.log.Info("dhcp:complete",
		slog.String("ip", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	return nil
}

// Pump moves packets between the radio and the stack forever.
// Run it in its own goroutine.
func (s *Stack) Pump() {
	for {
		send, recv, _ := s.exchange()
		if send == 0 && recv == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// exchange polls for one incoming packet and sends one outgoing packet.
func (s *Stack) exchange() (send, recv int, err error) {
	got, errRecv := s.dev.PollOne()
	if got {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("wifi:poll", slog.String("err", errRecv.Error()))
	}

	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("wifi:encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
	} else {
		err = errRecv
	}
	if send == 0 {
		return send, recv, err
	}

	if err = s.dev.SendEth(s.sendbuf[:send]); err != nil {
		s.log.Error("wifi:send", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// Lneto returns the underlying stack for dialing and DNS.
func (s *Stack) Lneto() *xnet.StackAsync {
	return &s.s
}

// Addr returns the current IP address.
func (s *Stack) Addr() netip.Addr {
	return s.s.Addr()
}
