// Package server accepts TLS connections and hands each one, once its
// handshake is done, to a transport.Connection.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"secure-chat/contract"
	"secure-chat/infrastructure/transport"
	"sync"
	"time"
)

// Server is the accept loop. Run returns nil on shutdown and an error when
// the listener itself breaks.
type Server struct {
	log              *slog.Logger
	address          string
	tlsConfig        *tls.Config
	dispatcher       contract.IDispatcher
	handshakeTimeout time.Duration
	queueSize        int

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

func NewServer(log *slog.Logger,
	address string,
	tlsConfig *tls.Config,
	dispatcher contract.IDispatcher,
	handshakeTimeout time.Duration,
	queueSize int) *Server {
	return &Server{
		log:              log,
		address:          address,
		tlsConfig:        tlsConfig,
		dispatcher:       dispatcher,
		handshakeTimeout: handshakeTimeout,
		queueSize:        queueSize,
		ready:            make(chan struct{}),
	}
}

// Ready is closed once the server listens for the first time.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address, nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.markReady(listener.Addr())
	s.log.Info("Listening for TLS connections", "address", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	// Connections are always waited for, even when the listener fails
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		raw, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("Listener closed, waiting for connections to finish")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Warn("Accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, raw)
		}()
	}
}

func (s *Server) handle(ctx context.Context, raw net.Conn) {
	log := s.log.With("remote", raw.RemoteAddr().String())

	conn := tls.Server(raw, s.tlsConfig)
	handshakeCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	err := conn.HandshakeContext(handshakeCtx)
	cancel()
	if err != nil {
		log.Warn("TLS handshake failed, connection never became usable", "error", err)
		_ = raw.Close()
		return
	}

	connection := transport.NewConnection(log, conn, s.dispatcher, s.queueSize, 0)
	log.Debug("Connection established", "session_id", connection.Session().ID())
	if err := connection.Serve(ctx); err != nil {
		log.Info("Connection closed on error", "session_id", connection.Session().ID(), "error", err)
	}
}

func (s *Server) markReady(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = addr
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}
