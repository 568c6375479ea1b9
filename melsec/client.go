// Package melsec implements an MC-protocol (3E frame, binary mode) client
// for Mitsubishi controllers. One Client owns one TCP connection; all
// register access is serialized through it, and connection loss is
// recovered with a bounded, fixed-delay retry policy.
package melsec

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"linesign/logging"
)

// RetryPolicy bounds automatic reconnection. With AutoReconnect off a
// single connection attempt is made and failure surfaces immediately.
type RetryPolicy struct {
	MaxRetries    int           // Connection attempts per recovery (not per-attempt extras)
	RetryDelay    time.Duration // Fixed delay between attempts; deliberately not exponential
	AutoReconnect bool
}

// Dialer opens the underlying transport connection. Overridable for tests.
type Dialer func(address string, timeout time.Duration) (net.Conn, error)

// Client is an MC-protocol 3E client bound to one controller.
// Methods are safe for concurrent use; the internal mutex serializes all
// connection management and register access, so at most one request is in
// flight at a time.
type Client struct {
	mu sync.Mutex

	address  string
	timeout  time.Duration
	monTimer uint16 // Controller-side monitoring timer, 250ms units
	retry    RetryPolicy
	route    route

	dial  Dialer
	sleep func(time.Duration)

	conn          net.Conn
	state         ConnectionState
	everConnected bool
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithTimeout sets the dial and response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetryPolicy sets the reconnection policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithMonitoringTimer sets the controller-side monitoring timer in 250ms
// units (0 = wait indefinitely on the controller side).
func WithMonitoringTimer(units uint16) Option {
	return func(c *Client) {
		c.monTimer = units
	}
}

// WithRoute sets the network and station numbers for multidrop setups.
// The defaults address the local station CPU.
func WithRoute(network, station byte) Option {
	return func(c *Client) {
		c.route.network = network
		c.route.station = station
	}
}

// WithDialer overrides the transport dialer. Used by tests.
func WithDialer(dial Dialer) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// NewClient creates a client for the controller at host:port. No
// connection is made until Connect or EnsureConnected is called.
func NewClient(host string, port int, opts ...Option) *Client {
	c := &Client{
		address:  fmt.Sprintf("%s:%d", host, port),
		timeout:  3 * time.Second,
		monTimer: 0x0010, // 4 seconds
		retry: RetryPolicy{
			MaxRetries:    3,
			RetryDelay:    5 * time.Second,
			AutoReconnect: true,
		},
		route: defaultRoute,
		dial: func(address string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", address, timeout)
		},
		sleep: time.Sleep,
		state: StateDisconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Address returns the controller address as host:port.
func (c *Client) Address() string {
	return c.address
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Connect establishes the connection. Calling it while already connected
// is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

// connectLocked performs a single connection attempt. Must be called with
// c.mu held.
func (c *Client) connectLocked() error {
	if c.state == StateConnected {
		return nil
	}

	if c.everConnected {
		c.state = StateReconnecting
	} else {
		c.state = StateConnecting
	}

	logging.DebugConnect("melsec", c.address)
	conn, err := c.dial(c.address, c.timeout)
	if err != nil {
		c.state = StateDisconnected
		logging.DebugConnectError("melsec", c.address, err)
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, c.address, err)
	}

	c.conn = conn
	c.state = StateConnected
	c.everConnected = true
	logging.DebugConnectSuccess("melsec", c.address, fmt.Sprintf("timeout=%s", c.timeout))
	return nil
}

// EnsureConnected returns immediately when connected; otherwise it runs
// the bounded retry loop: exactly MaxRetries attempts with RetryDelay
// between them. With AutoReconnect off a single attempt is made.
func (c *Client) EnsureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnectedLocked()
}

func (c *Client) ensureConnectedLocked() error {
	if c.state == StateConnected {
		return nil
	}

	attempts := c.retry.MaxRetries
	if !c.retry.AutoReconnect {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			c.sleep(c.retry.RetryDelay)
		}
		if err := c.connectLocked(); err != nil {
			lastErr = err
			logging.DebugLog("melsec", "connection attempt %d/%d failed: %v", i+1, attempts, err)
			continue
		}
		return nil
	}

	c.state = StateDisconnected
	if lastErr == nil {
		return fmt.Errorf("%w: no connection attempts permitted (max retries is 0)", ErrConnection)
	}
	return fmt.Errorf("%w: exhausted %d connection attempts: %v", ErrConnection, attempts, lastErr)
}

// Disconnect releases the connection. Safe to call multiple times; never
// fails.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked("disconnect requested")
}

// closeLocked tears the connection down. Must be called with c.mu held.
func (c *Client) closeLocked(reason string) {
	if c.conn != nil {
		logging.DebugDisconnect("melsec", c.address, reason)
		c.conn.Close() // close errors are ignored: disconnect never fails
		c.conn = nil
	}
	c.state = StateDisconnected
}

// dropConn handles a mid-request I/O failure: the connection is no longer
// trustworthy, so it is closed and the state downgraded. The returned
// error is ErrTimeout for deadline expiry, ErrConnection otherwise.
// Must be called with c.mu held.
func (c *Client) dropConn(op string, err error) error {
	c.closeLocked(fmt.Sprintf("%s: %v", op, err))
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrConnection, op, err)
}

// ReadWords reads count word devices starting at the named device, e.g.
// ReadWords("D100", 2).
func (c *Client) ReadWords(device string, count int) ([]uint16, error) {
	addr, err := ParseDevice(device)
	if err != nil {
		return nil, err
	}
	if count < 1 || count > maxBatchReadPoints {
		return nil, fmt.Errorf("%w: word count %d out of range 1-%d", ErrInvalidAddress, count, maxBatchReadPoints)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.request(cmdBatchRead, subWordUnits, buildBatchReadPayload(addr, uint16(count)))
	if err != nil {
		return nil, err
	}
	if len(resp) < count*2 {
		return nil, fmt.Errorf("%w: short word data: got %d bytes, want %d", ErrProtocol, len(resp), count*2)
	}

	return wordsFromBytes(resp[:count*2]), nil
}

// ReadBits reads count bit devices starting at the named device, e.g.
// ReadBits("M100", 8). The device must be a bit device.
func (c *Client) ReadBits(device string, count int) ([]bool, error) {
	addr, err := ParseDevice(device)
	if err != nil {
		return nil, err
	}
	if !addr.IsBitDevice() {
		return nil, fmt.Errorf("%w: %s is not a bit device", ErrInvalidAddress, addr)
	}
	if count < 1 || count > maxBitReadPoints {
		return nil, fmt.Errorf("%w: bit count %d out of range 1-%d", ErrInvalidAddress, count, maxBitReadPoints)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.request(cmdBatchRead, subBitUnits, buildBatchReadPayload(addr, uint16(count)))
	if err != nil {
		return nil, err
	}
	want := (count + 1) / 2
	if len(resp) < want {
		return nil, fmt.Errorf("%w: short bit data: got %d bytes, want %d", ErrProtocol, len(resp), want)
	}

	return bitsFromBytes(resp, count), nil
}

// ReadBlocks issues one Multiple Block Batch Read covering every requested
// device range and returns the word groups in request order. All blocks
// come from the same protocol exchange, so the result is a consistent
// point-in-time view across ranges.
func (c *Client) ReadBlocks(blocks []Block) ([][]uint16, error) {
	payload, err := buildBlockReadPayload(blocks)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, blk := range blocks {
		total += int(blk.Points)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.request(cmdBlockRead, subWordUnits, payload)
	if err != nil {
		return nil, err
	}
	if len(resp) < total*2 {
		return nil, fmt.Errorf("%w: short block data: got %d bytes, want %d", ErrProtocol, len(resp), total*2)
	}

	words := wordsFromBytes(resp[:total*2])
	groups := make([][]uint16, len(blocks))
	off := 0
	for i, blk := range blocks {
		groups[i] = words[off : off+int(blk.Points)]
		off += int(blk.Points)
	}

	return groups, nil
}

// request performs one serialized command exchange. When auto-reconnect is
// enabled and the connection was lost, the bounded reconnect loop runs
// first, so a public call never silently retries beyond the configured
// budget. Must be called with c.mu held.
func (c *Client) request(cmd, sub uint16, payload []byte) ([]byte, error) {
	if c.state != StateConnected {
		if !c.retry.AutoReconnect {
			return nil, fmt.Errorf("%w: not connected to %s", ErrConnection, c.address)
		}
		if err := c.ensureConnectedLocked(); err != nil {
			return nil, err
		}
	}
	if c.conn == nil {
		return nil, fmt.Errorf("%w: not connected to %s", ErrConnection, c.address)
	}

	frame := buildRequest(c.route, c.monTimer, cmd, sub, payload)
	logging.DebugTX("melsec", frame)

	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := c.conn.Write(frame); err != nil {
		return nil, c.dropConn("send request", err)
	}

	hdr := make([]byte, responseHeaderSize)
	if _, err := io.ReadFull(c.conn, hdr); err != nil {
		return nil, c.dropConn("read response header", err)
	}

	dataLen, err := parseResponseHeader(hdr)
	if err != nil {
		// Framing is broken; the stream cannot be resynchronized.
		c.closeLocked("response framing error")
		return nil, err
	}

	body := make([]byte, dataLen)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, c.dropConn("read response body", err)
	}

	logging.DebugRX("melsec", append(hdr[:responseHeaderSize:responseHeaderSize], body...))

	if err := endCodeError(binary.LittleEndian.Uint16(body[0:2])); err != nil {
		return nil, err
	}

	return body[2:], nil
}
