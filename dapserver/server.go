// Copyright © 2024 The ELPS authors

// Package dapserver exposes variable objects over the Debug Adapter
// Protocol. Evaluate requests create root variable objects and variables
// requests expand them, so a DAP client browses the same trees the MI
// front-end serves.
//
// The server supports two transport modes:
//   - TCP: the server listens on a port and accepts a single client.
//   - Stdio: the server reads from stdin and writes to stdout, as editors
//     expect when they launch a debug adapter as a child process.
package dapserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
)

// Control resumes the debuggee.
type Control interface {
	Registers() target.Registers
	Exited() bool
	Continue() (target.Registers, error)
}

var _ Control = (*target.Target)(nil)

// Server is a DAP protocol server over a variable object engine.
type Server struct {
	engine  *varobj.Engine
	control Control
	log     *logrus.Logger

	mu     sync.Mutex
	seq    int
	writer io.Writer

	// done is closed when the server should stop processing messages.
	done chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger directs server logs to log.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New creates a DAP server for engine. The control resumes the target the
// engine observes.
func New(engine *varobj.Engine, control Control, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		control: control,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(io.Discard)
	}
	return s
}

// ServeConn serves DAP messages on a single connection. It blocks until
// the connection is closed or a disconnect request is received.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	defer conn.Close() //nolint:errcheck // best-effort cleanup
	return s.serve(ctx, conn, conn)
}

// ServeTCP listens on addr and serves a single DAP client. It blocks until
// the client disconnects.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close() //nolint:errcheck // best-effort cleanup
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts a single connection from ln and serves DAP
// messages on it.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("waiting for DAP client")
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	return s.ServeConn(ctx, conn)
}

// ServeStdio serves DAP messages on r and w, typically os.Stdin and
// os.Stdout.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	return s.serve(ctx, r, w)
}

func (s *Server) serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	s.writer = w
	s.mu.Unlock()
	reader := bufio.NewReader(r)
	h := newHandler(s)
	for {
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := dap.ReadProtocolMessage(reader)
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				if errors.Is(err, io.EOF) {
					return nil
				}
				s.log.WithError(err).Error("read DAP message")
				return err
			}
		}

		h.handle(ctx, msg)
	}
}

// send writes a DAP protocol message to the client. The caller sets the
// Seq field through the newResponse and newEvent helpers.
func (s *Server) send(msg dap.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dap.WriteProtocolMessage(s.writer, msg)
}

// nextSeq returns the next sequence number for outgoing messages.
func (s *Server) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// close signals the server to stop processing messages.
func (s *Server) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
