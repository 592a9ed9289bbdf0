// Copyright © 2024 The ELPS authors

// Package mi serves the variable object engine over a line oriented,
// GDB/MI flavored protocol. Each request line produces one result record,
// optionally followed by asynchronous records.
package mi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
)

// Prompt is written after every response by Serve.
const Prompt = "(gdb) "

// Control resumes and modifies the debuggee.
type Control interface {
	Registers() target.Registers
	Exited() bool
	Continue() (target.Registers, error)
	Jump(pc uint32) error
	WriteMemory(addr uint32, b []byte) error
}

var _ Control = (*target.Target)(nil)

// Server dispatches request lines to a variable object engine.
type Server struct {
	engine      *varobj.Engine
	control     Control
	log         *logrus.Logger
	printValues varobj.PrintValues
	commands    map[string]handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger directs server logs to log.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithPrintValues sets the print-values used by var-list-children when
// the request names none. var-update reports names only by default.
func WithPrintValues(pv varobj.PrintValues) Option {
	return func(s *Server) {
		s.printValues = pv
	}
}

// NewServer returns a server for engine. The control resumes the target
// the engine observes.
func NewServer(engine *varobj.Engine, control Control, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		control:     control,
		printValues: varobj.AllValues,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(io.Discard)
	}
	s.commands = commandTable()
	return s
}

// Response is the output of one request.
type Response struct {
	Records []string
	// Exit is set when the request ended the session.
	Exit bool
}

func (r Response) String() string {
	return strings.Join(r.Records, "\n")
}

// Execute runs one request line.
func (s *Server) Execute(ctx context.Context, line string) Response {
	cmd, err := ParseCommand(line)
	if err != nil {
		return Response{Records: []string{errorRecord(cmd.Token, err)}}
	}
	log := s.log.WithFields(logrus.Fields{"cmd": cmd.Name, "token": cmd.Token})
	h, ok := s.commands[cmd.Name]
	if !ok {
		log.Debug("undefined command")
		err := fmt.Errorf("Undefined MI command: %s", cmd.Name)
		return Response{Records: []string{errorRecord(cmd.Token, err)}}
	}
	rep, err := h(ctx, s, cmd.Args)
	if err != nil {
		log.WithError(err).Debug("command failed")
		return Response{Records: []string{errorRecord(cmd.Token, err)}}
	}
	log.Debug("command done")
	class := rep.class
	if class == "" {
		class = "done"
	}
	resp := Response{
		Records: []string{Record(cmd.Token, ResultRecord, class, rep.fields...)},
		Exit:    class == "exit",
	}
	resp.Records = append(resp.Records, rep.async...)
	return resp
}

func errorRecord(token string, err error) string {
	fields := []Field{Str("msg", err.Error())}
	var verr *varobj.Error
	if errors.As(err, &verr) {
		fields = append(fields, Int("code", verr.Kind.Code()))
	}
	return Record(token, ResultRecord, "error", fields...)
}

// Serve reads request lines from r and writes responses to w until r is
// exhausted, a request ends the session or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(r)
	if _, err := bw.WriteString(Prompt + "\n"); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		resp := s.Execute(ctx, line)
		for _, rec := range resp.Records {
			bw.WriteString(rec) //nolint:errcheck
			bw.WriteByte('\n')  //nolint:errcheck
		}
		if !resp.Exit {
			bw.WriteString(Prompt + "\n") //nolint:errcheck
		}
		if err := bw.Flush(); err != nil {
			s.log.WithError(err).Error("write response")
			return err
		}
		if resp.Exit {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		s.log.WithError(err).Error("read request")
		return err
	}
	return nil
}
