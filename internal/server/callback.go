package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/shared"
)

const (
	maxRequestSize = 2048
	lingerDelay    = 100 * time.Millisecond
	readTimeout    = 5 * time.Second
)

// CallbackListener is a one-shot loopback server that captures a single OAuth redirect.
type CallbackListener struct {
	port   int
	logger *log.Logger
	linger time.Duration

	mu sync.Mutex
	ln net.Listener
}

// NewCallbackListener creates a listener for 127.0.0.1:port. Port 0 picks a free port on [CallbackListener.Bind].
func NewCallbackListener(port int, logger *log.Logger) *CallbackListener {
	return &CallbackListener{
		port:   port,
		logger: shared.Component(logger, "callback"),
		linger: lingerDelay,
	}
}

// Bind opens the TCP socket. Failures wrap [shared.ErrListenerBind].
func (l *CallbackListener) Bind() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return nil
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(l.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w on %s: %v", shared.ErrListenerBind, addr, err)
	}

	l.ln = ln
	l.logger.Debug("listening for callback", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound address, or nil before [CallbackListener.Bind].
func (l *CallbackListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Accept waits for the first connection carrying a request line with a method and a path, answers it,
// and returns the reconstructed redirect URL.
//
// Malformed requests get a 400 and are skipped. The listener is closed when Accept returns.
func (l *CallbackListener) Accept(ctx context.Context) (string, error) {
	if err := l.Bind(); err != nil {
		return "", err
	}

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer l.Close()

	fallbackHost := ln.Addr().String()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					return "", fmt.Errorf("%w: waiting for callback", shared.ErrTimeout)
				}
				return "", ctxErr
			}
			return "", fmt.Errorf("accept callback connection: %w", err)
		}

		redirect, ok := l.handle(conn, fallbackHost)
		if ok {
			l.logger.Info("received callback")
			return redirect, nil
		}
	}
}

// Close releases the socket. Safe to call more than once.
func (l *CallbackListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (l *CallbackListener) handle(conn net.Conn, fallbackHost string) (string, bool) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	buf := make([]byte, maxRequestSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		l.logger.Warn("failed to read callback request", "error", err)
		return "", false
	}

	redirect, err := reconstructURL(string(buf[:n]), fallbackHost)
	if err != nil {
		l.logger.Warn("malformed callback request", "error", err)
		l.respond(conn, "400 Bad Request", "text/plain; charset=utf-8", badRequestBody)
		return "", false
	}

	l.respond(conn, "200 OK", "text/html; charset=utf-8", successPage)
	return redirect, true
}

// respond writes a complete response, then holds the connection for the linger period.
func (l *CallbackListener) respond(conn net.Conn, status, contentType, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", status)
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)

	if _, err := conn.Write([]byte(b.String())); err != nil {
		l.logger.Warn("failed to write callback response", "error", err)
	}
	time.Sleep(l.linger)
}

// reconstructURL rebuilds http://<host><path> from a raw request. The Host header is matched
// case-insensitively and keeps its port; fallbackHost is used when it is absent.
func reconstructURL(raw, fallbackHost string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return "", fmt.Errorf("request line %q has no path", lines[0])
	}
	path := fields[1]

	host := fallbackHost
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		if len(line) >= 5 && strings.EqualFold(line[:5], "host:") {
			if h := strings.TrimSpace(line[5:]); h != "" {
				host = h
			}
			break
		}
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + host + path, nil
}

// Listen binds 127.0.0.1:port and waits for one callback.
func Listen(ctx context.Context, port int, logger *log.Logger) (string, error) {
	return NewCallbackListener(port, logger).Accept(ctx)
}
