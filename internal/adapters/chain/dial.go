package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// Connection is a dialed EVM client that owns its RPC connection.
type Connection struct {
	*EVMClient
	client *ethclient.Client
}

// Close closes the underlying RPC connection.
func (c *Connection) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Dial connects to cfg.RPCURL, optionally through proxy, and verifies the node
// serves cfg.ChainID.
func Dial(ctx context.Context, cfg config.Config, proxy domain.ProxyRef) (*Connection, error) {
	opts, err := dialOptions(cfg, proxy)
	if err != nil {
		return nil, err
	}

	rc, err := rpc.DialOptions(ctx, cfg.RPCURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	client := ethclient.NewClient(rc)

	evm := NewEVMClient(client, cfg.ChainID, cfg.Contracts.Quoter, WithConfirmTimeout(cfg.ConfirmTimeout))
	id, err := evm.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if id.Cmp(cfg.ChainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %s, got %s", cfg.ChainID, id)
	}

	return &Connection{EVMClient: evm, client: client}, nil
}

func dialOptions(cfg config.Config, proxy domain.ProxyRef) ([]rpc.ClientOption, error) {
	var opts []rpc.ClientOption

	if proxy != "" {
		proxyURL, err := ParseProxy(proxy)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			rpc.WithHTTPClient(&http.Client{
				Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
				Timeout:   30 * time.Second,
			}),
			rpc.WithWebsocketDialer(websocket.Dialer{
				Proxy:            http.ProxyURL(proxyURL),
				HandshakeTimeout: 45 * time.Second,
			}),
		)
	}

	if cfg.RPCJWTSecret != "" {
		opts = append(opts, rpc.WithHTTPAuth(jwtAuth(cfg.RPCJWTSecret)))
	}

	return opts, nil
}

// ParseProxy turns a proxy line into a URL. Lines without a scheme are treated as
// http proxies, so "user:pass@host:port" and "host:port" are both accepted.
func ParseProxy(ref domain.ProxyRef) (*url.URL, error) {
	raw := strings.TrimSpace(string(ref))
	if raw == "" {
		return nil, fmt.Errorf("empty proxy")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", redactProxy(ref), err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", redactProxy(ref))
	}
	return u, nil
}

// redactProxy keeps proxy credentials out of error messages.
func redactProxy(ref domain.ProxyRef) string {
	s := string(ref)
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return "****" + s[i:]
	}
	return s
}

// jwtAuth signs a fresh HS256 token per request, as authenticated node RPC
// endpoints expect. Hex secrets are decoded; anything else is used verbatim.
func jwtAuth(secret string) rpc.HTTPAuth {
	key := []byte(secret)
	if decoded, err := hex.DecodeString(strings.TrimPrefix(secret, "0x")); err == nil && len(decoded) > 0 {
		key = decoded
	}

	return func(h http.Header) error {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iat": time.Now().Unix(),
		})
		signed, err := token.SignedString(key)
		if err != nil {
			return fmt.Errorf("failed to sign RPC token: %w", err)
		}
		h.Set("Authorization", "Bearer "+signed)
		return nil
	}
}

// ProxyDialer implements domain.Dialer. It keeps one connection per proxy for
// the life of the process and closes them all on Close.
type ProxyDialer struct {
	cfg config.Config

	mu    sync.Mutex
	conns map[domain.ProxyRef]*Connection
}

// NewProxyDialer creates a dialer for cfg's RPC endpoint.
func NewProxyDialer(cfg config.Config) *ProxyDialer {
	return &ProxyDialer{cfg: cfg, conns: make(map[domain.ProxyRef]*Connection)}
}

// DialProxy implements domain.Dialer. Repeated calls with the same proxy reuse
// the first connection.
func (d *ProxyDialer) DialProxy(ctx context.Context, proxy domain.ProxyRef) (domain.ChainClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.conns[proxy]; ok {
		return conn, nil
	}

	conn, err := Dial(ctx, d.cfg, proxy)
	if err != nil {
		return nil, err
	}
	d.conns[proxy] = conn
	return conn, nil
}

// Close closes all dialed connections.
func (d *ProxyDialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for proxy, c := range d.conns {
		c.Close()
		delete(d.conns, proxy)
	}
}
