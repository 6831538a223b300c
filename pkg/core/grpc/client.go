package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/pkg/core/version"
)

// ClientConfig holds gRPC client configuration
type ClientConfig struct {
	Target     string
	DomainName string // TLS server name; defaults to the target host

	RootsFile string // PEM bundle; ignored when RootsPEM is set
	RootsPEM  []byte
	Insecure  bool // plaintext, for local emulators only

	ConnectTimeout    time.Duration
	MaxRecvMsgSize    int
	MaxSendMsgSize    int
	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration
	UserAgent         string

	// Credentials, when set, installs BearerInterceptor on the channel
	Credentials TokenSource
}

// DefaultClientConfig returns a default client configuration
func DefaultClientConfig(target string) ClientConfig {
	return ClientConfig{
		Target:            target,
		ConnectTimeout:    10 * time.Second,
		MaxRecvMsgSize:    16 * 1024 * 1024, // 16MB
		MaxSendMsgSize:    16 * 1024 * 1024, // 16MB
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
		UserAgent:         version.UserAgent(),
	}
}

// LoadRoots builds the trust pool for server verification. Explicit PEM
// bytes win over a file; with neither the system pool is used.
func LoadRoots(pemBytes []byte, file string) (*x509.CertPool, error) {
	if len(pemBytes) == 0 && file == "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, transportError("load system trust roots", err)
		}
		return pool, nil
	}

	if len(pemBytes) == 0 {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, transportError("read trust roots", err).WithDetail(fderror.DetailPath, file)
		}
		pemBytes = data
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		e := transportError("trust roots contain no PEM certificates", nil)
		if file != "" {
			e.WithDetail(fderror.DetailPath, file)
		}
		return nil, e
	}
	return pool, nil
}

// TransportCredentials builds the channel credentials for cfg. TLS requires
// at least version 1.2 and presents no client certificate.
func TransportCredentials(cfg ClientConfig) (credentials.TransportCredentials, error) {
	if cfg.Insecure {
		return insecure.NewCredentials(), nil
	}

	roots, err := LoadRoots(cfg.RootsPEM, cfg.RootsFile)
	if err != nil {
		return nil, err
	}

	serverName := cfg.DomainName
	if serverName == "" {
		serverName = hostOf(cfg.Target)
	}

	return credentials.NewTLS(&tls.Config{
		RootCAs:    roots,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}), nil
}

func dialOptions(cfg ClientConfig, creds credentials.TransportCredentials) []grpc.DialOption {
	unary := []grpc.UnaryClientInterceptor{
		ClientRequestIDInterceptor(),
		ClientLoggingInterceptor(),
	}
	if cfg.Credentials != nil {
		unary = append(unary, BearerInterceptor(cfg.Credentials))
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveInterval,
			Timeout: cfg.KeepaliveTimeout,
		}),
		grpc.WithChainUnaryInterceptor(unary...),
		grpc.WithChainStreamInterceptor(
			ClientStreamLoggingInterceptor(),
		),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, grpc.WithUserAgent(cfg.UserAgent))
	}
	return opts
}

// Dial creates a client connection and waits for the handshake to finish,
// bounded by ConnectTimeout and ctx.
func Dial(ctx context.Context, cfg ClientConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if cfg.Target == "" {
		return nil, transportError("target is required", nil)
	}
	cfg = withDefaults(cfg)

	creds, err := TransportCredentials(cfg)
	if err != nil {
		return nil, err
	}

	dialOpts := dialOptions(cfg, creds)
	dialOpts = append(dialOpts,
		grpc.WithBlock(),
		grpc.WithReturnConnectionError(),
		grpc.FailOnNonTempDialError(true),
	)
	// Append custom options
	dialOpts = append(dialOpts, opts...)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, cfg.Target, dialOpts...)
	if err != nil {
		return nil, transportError("failed to connect", err).WithDetail("target", cfg.Target)
	}
	return conn, nil
}

func withDefaults(cfg ClientConfig) ClientConfig {
	def := DefaultClientConfig(cfg.Target)
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.MaxRecvMsgSize <= 0 {
		cfg.MaxRecvMsgSize = def.MaxRecvMsgSize
	}
	if cfg.MaxSendMsgSize <= 0 {
		cfg.MaxSendMsgSize = def.MaxSendMsgSize
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = def.KeepaliveInterval
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}
	return cfg
}

// Channel is a shared connection to one endpoint. The underlying
// *grpc.ClientConn is never mutated; Reconnect swaps in a new one.
type Channel struct {
	cfg   ClientConfig
	extra []grpc.DialOption

	reconnectMu sync.Mutex
	conn        atomic.Pointer[grpc.ClientConn]
}

// Connect dials cfg and wraps the connection in a Channel
func Connect(ctx context.Context, cfg ClientConfig, opts ...grpc.DialOption) (*Channel, error) {
	conn, err := Dial(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	ch := &Channel{cfg: cfg, extra: opts}
	ch.conn.Store(conn)
	return ch, nil
}

// NewChannel wraps an existing connection, e.g. one made over bufconn.
// Reconnect is not available on such a channel.
func NewChannel(conn *grpc.ClientConn) *Channel {
	ch := &Channel{}
	ch.conn.Store(conn)
	return ch
}

// Conn returns the current connection
func (c *Channel) Conn() *grpc.ClientConn {
	return c.conn.Load()
}

// Invoke implements grpc.ClientConnInterface on the current connection
func (c *Channel) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	return c.conn.Load().Invoke(ctx, method, args, reply, opts...)
}

// NewStream implements grpc.ClientConnInterface on the current connection
func (c *Channel) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return c.conn.Load().NewStream(ctx, desc, method, opts...)
}

// Target returns the dialed address
func (c *Channel) Target() string {
	if c.cfg.Target != "" {
		return c.cfg.Target
	}
	return c.conn.Load().Target()
}

// State returns the connectivity state of the current connection
func (c *Channel) State() connectivity.State {
	return c.conn.Load().GetState()
}

// Healthy reports whether the connection is in a usable state
func (c *Channel) Healthy() bool {
	state := c.State()
	return state == connectivity.Ready || state == connectivity.Idle
}

// Reconnect dials a fresh connection and replaces the current one wholesale.
// Calls in flight on the old connection finish before it is closed.
func (c *Channel) Reconnect(ctx context.Context) error {
	if c.cfg.Target == "" {
		return transportError("channel was not created by Connect", nil)
	}

	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	fresh, err := Dial(ctx, c.cfg, c.extra...)
	if err != nil {
		return err
	}
	old := c.conn.Swap(fresh)
	if old != nil {
		go old.Close()
	}
	return nil
}

// Close closes the current connection
func (c *Channel) Close() error {
	return c.conn.Load().Close()
}

func hostOf(target string) string {
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	return target
}

func transportError(message string, cause error) *fderror.Error {
	var e *fderror.Error
	if cause != nil {
		e = fderror.Wrap(cause, message)
	} else {
		e = fderror.New(message)
	}
	return e.WithCode(fderror.CodeTransport).WithOperation("Connect")
}
