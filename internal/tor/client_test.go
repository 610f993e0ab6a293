package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, expected %q", client.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	for _, addr := range []string{"", "127.0.0.1", ":9050", "127.0.0.1:", "host:0", "host:65536", "host:abc", "a:b:c"} {
		t.Run("rejects "+addr, func(t *testing.T) {
			t.Parallel()

			_, err := NewClient(addr, 30*time.Second)
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewClient(%q) error = %v, want ErrInvalidProxyAddress", addr, err)
			}
		})
	}
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"[::1]:9050", true},
		{"tor.internal:1", true},
		{"tor.internal:65535", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"host:0", false},
		{"host:70000", false},
		{"host:-1", false},
	}

	for _, tt := range tests {
		if got := isValidProxyAddress(tt.address); got != tt.want {
			t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		str     string
		wantErr error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tt := range tests {
		if tt.status.String() != tt.str {
			t.Errorf("%d.String() = %q, want %q", tt.status, tt.status.String(), tt.str)
		}
		if !errors.Is(tt.status.Error(), tt.wantErr) {
			t.Errorf("%d.Error() = %v, want %v", tt.status, tt.status.Error(), tt.wantErr)
		}
	}

	if ProxyStatus(99).String() != "unknown" {
		t.Error("expected unknown status string")
	}
	if ProxyStatus(99).Error() == nil {
		t.Error("expected error for unknown status")
	}
}

// serveOnce accepts one connection on a local listener and hands it to fn.
func serveOnce(t *testing.T, fn func(conn net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()

	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		serve func(conn net.Conn)
		want  ProxyStatus
	}{
		{
			name: "non-SOCKS5 server",
			serve: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "SOCKS5 requiring auth",
			serve: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte{0x05, 0xFF})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "valid SOCKS5 proxy",
			serve: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte{0x05, 0x00})
				connectBuf := make([]byte, 256)
				_, _ = conn.Read(connectBuf)
				// Host unreachable is still a SOCKS5 answer.
				_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
			},
			want: ProxyStatusOK,
		},
		{
			name: "wrong version in CONNECT response",
			serve: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte{0x05, 0x00})
				connectBuf := make([]byte, 256)
				_, _ = conn.Read(connectBuf)
				_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
			},
			want: ProxyStatusWrongType,
		},
		{
			name: "server closes after greeting",
			serve: func(conn net.Conn) {
				buf := make([]byte, 3)
				_, _ = conn.Read(buf)
			},
			want: ProxyStatusWrongType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(serveOnce(t, tt.serve), 30*time.Second)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			if status := client.CheckConnection(context.Background()); status != tt.want {
				t.Errorf("CheckConnection() = %v, want %v", status, tt.want)
			}
		})
	}

	t.Run("no listener", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := NewClient(addr, 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("CheckConnection() = %v, want cannot connect", status)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59998", 30*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := client.CheckConnection(ctx)
		if status != ProxyStatusCannotConnect && status != ProxyStatusTimeout {
			t.Errorf("expected cannot connect or timeout, got %v", status)
		}
	})
}

// socks5Forwarder is a minimal no-auth SOCKS5 server that connects every
// CONNECT request to target, whatever host was requested.
func socks5Forwarder(t *testing.T, target string) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start proxy: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()

				greeting := make([]byte, 3)
				if _, err := io.ReadFull(conn, greeting); err != nil {
					return
				}
				_, _ = conn.Write([]byte{0x05, 0x00})

				// version, cmd, reserved, atyp
				head := make([]byte, 4)
				if _, err := io.ReadFull(conn, head); err != nil {
					return
				}
				var addrLen int
				switch head[3] {
				case 0x01:
					addrLen = 4
				case 0x04:
					addrLen = 16
				case 0x03:
					l := make([]byte, 1)
					if _, err := io.ReadFull(conn, l); err != nil {
						return
					}
					addrLen = int(l[0])
				}
				rest := make([]byte, addrLen+2)
				if _, err := io.ReadFull(conn, rest); err != nil {
					return
				}

				upstream, err := net.Dial("tcp", target) //nolint:noctx // test code
				if err != nil {
					_, _ = conn.Write([]byte{0x05, 0x01, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
					return
				}
				defer upstream.Close()
				_, _ = conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 127, 0, 0, 1, 0, 0})

				go func() { _, _ = io.Copy(upstream, conn) }()
				_, _ = io.Copy(conn, upstream)
			}(conn)
		}
	}()

	return listener.Addr().String()
}

func TestTransport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "via proxy: "+r.Host)
	}))
	defer server.Close()

	client, err := NewClient(socks5Forwarder(t, server.Listener.Addr().String()), 5*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	httpClient := &http.Client{Transport: client.Transport(), Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.invalid/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("request through proxy failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "via proxy: example.invalid" {
		t.Errorf("body = %q", body)
	}
}

func TestDialContextCancelled(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:9050", 30*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.DialContext(ctx, "tcp", "example.onion:80"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
