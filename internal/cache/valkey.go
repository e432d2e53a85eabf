package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider implements Provider over RESP2. It opens one connection per call,
// which is plenty for a lease taken once per training run and a handful of registry lookups.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// NewValkeyProvider pings the server so misconfiguration fails at startup rather than mid-train.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	withDefaults(&cfg)
	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	reply, err := p.do(ctx, "PING")
	if err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	if reply.kind != '+' || reply.text() != "PONG" {
		return nil, fmt.Errorf("unexpected PING response: %q", reply.text())
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	switch {
	case reply.null:
		return nil, ErrCacheMiss
	case reply.kind == '$':
		return reply.data, nil
	default:
		return nil, fmt.Errorf("unexpected GET reply type %q", reply.kind)
	}
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	reply, err := p.do(ctx, setArgs(key, value, ttl, false)...)
	if err != nil {
		return err
	}
	if reply.kind != '+' || reply.text() != "OK" {
		return fmt.Errorf("unexpected SET response: %q", reply.text())
	}
	return nil
}

// SetNX stores the value only if the key does not exist.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	reply, err := p.do(ctx, setArgs(key, value, ttl, true)...)
	if err != nil {
		return false, err
	}
	if reply.null {
		return false, nil
	}
	return reply.kind == '+', nil
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", key)
	return err
}

// Close is a no-op; connections are per call.
func (p *ValkeyProvider) Close() error { return nil }

func setArgs(key string, value []byte, ttl time.Duration, nx bool) []string {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	if nx {
		args = append(args, "NX")
	}
	return args
}

// do runs one command on a fresh connection, retrying transient network errors.
func (p *ValkeyProvider) do(ctx context.Context, args ...string) (respReply, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return respReply{}, err
		}
		reply, err := p.roundTrip(ctx, args)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return respReply{}, lastErr
}

func (p *ValkeyProvider) roundTrip(ctx context.Context, args []string) (respReply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return respReply{}, err
	}
	defer conn.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	if err := p.handshake(conn, rw); err != nil {
		return respReply{}, err
	}
	if err := sendCommand(conn, rw, p.cfg.WriteTimeout, args); err != nil {
		return respReply{}, err
	}
	return receive(conn, rw, p.cfg.ReadTimeout)
}

func (p *ValkeyProvider) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}
	if p.cfg.TLS {
		host, _, err := net.SplitHostPort(p.cfg.Addr)
		if err != nil {
			host = p.cfg.Addr
		}
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}}
		return tlsDialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	return dialer.DialContext(ctx, "tcp", p.cfg.Addr)
}

func (p *ValkeyProvider) handshake(conn net.Conn, rw *bufio.ReadWriter) error {
	var steps [][]string
	if p.cfg.Password != "" {
		if p.cfg.Username != "" {
			steps = append(steps, []string{"AUTH", p.cfg.Username, p.cfg.Password})
		} else {
			steps = append(steps, []string{"AUTH", p.cfg.Password})
		}
	}
	if p.cfg.DB > 0 {
		steps = append(steps, []string{"SELECT", strconv.Itoa(p.cfg.DB)})
	}
	for _, step := range steps {
		if err := sendCommand(conn, rw, p.cfg.WriteTimeout, step); err != nil {
			return err
		}
		reply, err := receive(conn, rw, p.cfg.ReadTimeout)
		if err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(step[0]), err)
		}
		if !strings.EqualFold(reply.text(), "OK") {
			return fmt.Errorf("%s failed: %q", strings.ToLower(step[0]), reply.text())
		}
	}
	return nil
}

type respReply struct {
	kind byte
	data []byte
	null bool
}

func (r respReply) text() string { return string(r.data) }

func sendCommand(conn net.Conn, rw *bufio.ReadWriter, timeout time.Duration, args []string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	fmt.Fprintf(rw, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(rw, "$%d\r\n%s\r\n", len(arg), arg)
	}
	return rw.Flush()
}

func receive(conn net.Conn, rw *bufio.ReadWriter, timeout time.Duration) (respReply, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return respReply{}, err
	}
	line, err := rw.ReadString('\n')
	if err != nil {
		return respReply{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return respReply{}, errors.New("empty RESP reply")
	}
	kind, body := line[0], line[1:]
	switch kind {
	case '+', ':':
		return respReply{kind: kind, data: []byte(body)}, nil
	case '-':
		return respReply{}, fmt.Errorf("valkey: %s", body)
	case '$':
		size, err := strconv.Atoi(body)
		if err != nil {
			return respReply{}, fmt.Errorf("bulk length %q: %w", body, err)
		}
		if size < 0 {
			return respReply{kind: kind, null: true}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rw, buf); err != nil {
			return respReply{}, err
		}
		return respReply{kind: kind, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", kind)
	}
}

func withDefaults(cfg *ValkeyConfig) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
