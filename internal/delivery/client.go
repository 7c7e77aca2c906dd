package delivery

import (
	"net"
	"time"

	"github.com/sweeney/andon-agent/internal/logging"
)

// ackBufSize bounds the acknowledgment read. The collector replies with a
// short status line; anything longer is cut off here.
const ackBufSize = 1024

// Client delivers events to the collector. Each Send opens its own
// connection; nothing is pooled and nothing is retried.
type Client struct {
	addr    string
	timeout time.Duration
	log     *logging.Logger
}

// NewClient creates a Client for the collector at addr. The timeout bounds
// connect, write and read individually.
func NewClient(addr string, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		addr:    addr,
		timeout: timeout,
		log:     log.With("component", "delivery"),
	}
}

// Send transmits one event and classifies the result. The connection is
// closed on every path.
func (c *Client) Send(e Event) Outcome {
	body, err := Payload(e)
	if err != nil {
		c.log.Error("marshal event", "error", err)
		return OtherError
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		c.log.Warn("connect failed", "collector", c.addr, "error", err)
		return classify(err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return OtherError
	}
	if _, err := conn.Write(body); err != nil {
		c.log.Warn("write failed", "collector", c.addr, "error", err)
		return classify(err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return OtherError
	}
	buf := make([]byte, ackBufSize)
	n, err := conn.Read(buf)
	if err != nil {
		c.log.Warn("no acknowledgment", "collector", c.addr, "error", err)
		return classify(err)
	}

	if ack := string(buf[:n]); ack != "OK" {
		c.log.Warn("collector rejected event", "reply", ack)
		return ServerRejected
	}
	return Success
}
