package supervisor

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"time"
)

// secretLength is the number of random bytes drawn per generation before
// hex-encoding into the ASCII secret exposed via WATCHDOG_SECRET. A
// CSPRNG-generated secret with constant-time comparison hardens the
// liveness token without altering the wire protocol.
const secretLength = 24

// heartbeatServer is the per-generation UDP liveness listener. A fresh
// one is created for every child generation and torn down when that
// generation ends.
type heartbeatServer struct {
	conn     *net.UDPConn
	secret   []byte
	timeout  time.Duration
	nextPing time.Time
}

// newHeartbeatServer binds a fresh ephemeral UDP port on the loopback
// interface and generates a fresh secret. Returns (nil, nil) if timeout
// is <= 0: heartbeat is disabled for this generation, not an error.
func newHeartbeatServer(timeout time.Duration) (*heartbeatServer, error) {
	if timeout <= 0 {
		return nil, nil
	}

	raw := make([]byte, secretLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("supervisor: generating heartbeat secret: %w", err)
	}
	secret := []byte(hex.EncodeToString(raw))

	addr, err := net.ResolveUDPAddr("udp4", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolving loopback UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("supervisor: binding heartbeat socket: %w", err)
	}

	return &heartbeatServer{
		conn:     conn,
		secret:   secret,
		timeout:  timeout,
		nextPing: time.Now().Add(timeout),
	}, nil
}

// port reports the ephemeral port assigned by the OS, for WATCHDOG_PORT.
func (h *heartbeatServer) port() int {
	return h.conn.LocalAddr().(*net.UDPAddr).Port
}

// secretEnv is the ASCII secret exposed via WATCHDOG_SECRET.
func (h *heartbeatServer) secretEnv() string {
	return string(h.secret)
}

// drainResult reports what a drain pass observed, for the caller to log.
type drainResult struct {
	valid       int
	malformed   []string // sanitized text of each rejected payload
}

// drain reads every pending datagram, waiting at most one millisecond
// once none is left. A datagram whose payload byte-equals the secret
// advances nextPing (idempotently: any number of valid datagrams in a
// window just keeps re-arming the deadline). Anything else is reported
// back, sanitized, for the caller to log at Warning.
func (h *heartbeatServer) drain() drainResult {
	var result drainResult
	buf := make([]byte, 2048)

	for {
		// A deadline that has already passed makes the read fail before
		// it looks at the socket, so it is set just ahead of now.
		h.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, _, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			return result
		}
		payload := buf[:n]
		if subtle.ConstantTimeCompare(payload, h.secret) == 1 {
			h.nextPing = time.Now().Add(h.timeout)
			result.valid++
			continue
		}
		result.malformed = append(result.malformed, sanitizeForLog(payload))
	}
}

// sanitizeForLog replaces non-printable ASCII bytes with spaces so a
// hostile or corrupted datagram can't inject control characters into the
// log stream.
func sanitizeForLog(payload []byte) string {
	out := make([]byte, len(payload))
	for i, b := range payload {
		if b < 0x20 || b > 0x7e {
			out[i] = ' '
		} else {
			out[i] = b
		}
	}
	return string(out)
}

// expired reports whether the current moment is past nextPing, i.e. the
// child has missed its heartbeat window.
func (h *heartbeatServer) expired(now time.Time) bool {
	return now.After(h.nextPing)
}

func (h *heartbeatServer) close() error {
	return h.conn.Close()
}
