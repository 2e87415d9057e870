//go:build tinygo && picow

package publish

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/lneto/tcp"
	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/wifi"
)

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// Client publishes queued events to an MQTT broker over the Pico W radio.
type Client struct {
	ID                string
	Broker            string // host:port
	Timeout           time.Duration
	TCPBufSize        int
	HeartbeatInterval time.Duration
	Username          string // optional
	Password          string // optional, requires Username
	Logger            *slog.Logger
}

// Run connects to the broker and publishes every event from events,
// reconnecting whenever the connection drops. It only returns on
// configuration errors.
func (c *Client) Run(stack *wifi.Stack, events <-chan Event) error {
	const pollTime = 5 * time.Millisecond

	host, portStr, err := splitHostPort(c.Broker)
	if err != nil {
		return errors.New("parsing host:port from " + c.Broker + ": " + err.Error())
	}
	port := parsePort(portStr)
	if port == 0 {
		return errors.New("invalid port in " + c.Broker)
	}

	lstack := stack.Lneto()
	rstack := lstack.StackRetrying(pollTime)

	var brokerAddr netip.Addr
	if parsed, err := netip.ParseAddr(host); err == nil {
		brokerAddr = parsed
	} else {
		c.Logger.Info("dns:resolving", slog.String("host", host))
		addrs, err := rstack.DoLookupIP(host, 5*time.Second, 3)
		if err != nil {
			return errors.New("dns lookup for " + host + ": " + err.Error())
		}
		if len(addrs) == 0 {
			return errors.New("dns lookup for " + host + ": no addresses returned")
		}
		brokerAddr = addrs[0]
	}
	serverAddr := netip.AddrPortFrom(brokerAddr, port)

	mqttClient := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(_ mqtt.Header, _ mqtt.VariablesPublish, _ io.Reader) error {
			return nil
		},
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, c.TCPBufSize),
		TxBuf:             make([]byte, c.TCPBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	closeConn := func(reason string) {
		c.Logger.Warn("tcp:closing", slog.String("reason", reason))
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		conn.Abort()
	}

	pubVar := mqtt.VariablesPublish{TopicName: []byte(Topic)}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	heartbeat := time.NewTicker(c.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		localPort := uint16(lstack.Prand32()>>17) + 1024
		c.Logger.Info("tcp:dialing", slog.String("broker", serverAddr.String()))
		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			closeConn("dial failed: " + err.Error())
			time.Sleep(2 * time.Second)
			continue
		}

		conn.SetDeadline(time.Now().Add(c.Timeout))
		if err = mqttClient.StartConnect(&conn, &varconn); err != nil {
			closeConn("connect failed: " + err.Error())
			continue
		}
		for retries := 50; retries > 0 && !mqttClient.IsConnected(); retries-- {
			time.Sleep(100 * time.Millisecond)
			if err = mqttClient.HandleNext(); err != nil {
				c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
		}
		if !mqttClient.IsConnected() {
			closeConn("connect timed out")
			continue
		}
		c.Logger.Info("mqtt:connected", slog.String("topic", Topic))

		for mqttClient.IsConnected() {
			select {
			case ev := <-events:
				payload, err := ev.Payload()
				if err != nil {
					c.Logger.Error("mqtt:marshal-failed", slog.String("err", err.Error()))
					continue
				}
				conn.SetDeadline(time.Now().Add(c.Timeout))
				pubVar.PacketIdentifier = uint16(lstack.Prand32())
				if err = mqttClient.PublishPayload(pubFlags, pubVar, payload); err != nil {
					c.Logger.Error("mqtt:publish-failed", slog.String("err", err.Error()))
					continue
				}
				c.Logger.Info("mqtt:published", slog.String("value", ev.Value))
				if err = mqttClient.HandleNext(); err != nil {
					c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
				}
			case <-heartbeat.C:
				// keepalive
				if err = mqttClient.HandleNext(); err != nil {
					c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
				}
			default:
				// TinyGo is single core; let the main loop run.
				runtime.Gosched()
			}
		}

		c.Logger.Error("mqtt:disconnected", slog.Any("reason", mqttClient.Err()))
		closeConn("disconnected")
		runtime.Gosched()
	}
}
