// Copyright © 2024 The ELPS authors

package dapserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
	"github.com/luthersystems/varobj/varobjtest"
)

// dapTestSession reduces boilerplate for DAP protocol tests.
type dapTestSession struct {
	t      *testing.T
	target *target.Target
	client net.Conn
	reader *bufio.Reader
	seq    int
}

func setupDAPSession(t *testing.T) *dapTestSession {
	t.Helper()
	tgt := varobjtest.NewTarget(t)
	log, _ := varobjtest.NewLogrus(t)
	engine := varobj.New(tgt, expr.NewEvaluator(tgt), varobj.WithLogger(log))
	srv := New(engine, tgt, WithLogger(log))

	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() }) //nolint:errcheck,gosec

	go func() {
		_ = srv.ServeConn(context.Background(), server)
	}()

	s := &dapTestSession{
		t:      t,
		target: tgt,
		client: client,
		reader: bufio.NewReader(client),
	}

	s.send(&dap.InitializeRequest{
		Request: s.request("initialize"),
		Arguments: dap.InitializeRequestArguments{
			AdapterID:     "varobj",
			LinesStartAt1: true,
		},
	})
	msg := s.read()
	initResp, ok := msg.(*dap.InitializeResponse)
	require.True(t, ok, "expected InitializeResponse, got %T", msg)
	require.True(t, initResp.Success)
	assert.True(t, initResp.Body.SupportsConfigurationDoneRequest)
	_, ok = s.read().(*dap.InitializedEvent)
	require.True(t, ok)
	return s
}

func (s *dapTestSession) request(command string) dap.Request {
	s.seq++
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: s.seq, Type: "request"},
		Command:         command,
	}
}

func (s *dapTestSession) send(msg dap.Message) {
	sendDAPRequest(s.t, s.client, msg)
}

func (s *dapTestSession) read() dap.Message {
	return readDAPMessage(s.t, s.reader)
}

func (s *dapTestSession) sendEvaluate(expression string) {
	s.send(&dap.EvaluateRequest{
		Request:   s.request("evaluate"),
		Arguments: dap.EvaluateArguments{Expression: expression, Context: "watch"},
	})
}

func (s *dapTestSession) evaluate(expression string) *dap.EvaluateResponse {
	s.sendEvaluate(expression)
	msg := s.read()
	resp, ok := msg.(*dap.EvaluateResponse)
	require.True(s.t, ok, "expected EvaluateResponse, got %T", msg)
	return resp
}

func (s *dapTestSession) sendVariables(ref int) {
	s.send(&dap.VariablesRequest{
		Request:   s.request("variables"),
		Arguments: dap.VariablesArguments{VariablesReference: ref},
	})
}

func (s *dapTestSession) variables(ref int) *dap.VariablesResponse {
	s.sendVariables(ref)
	msg := s.read()
	resp, ok := msg.(*dap.VariablesResponse)
	require.True(s.t, ok, "expected VariablesResponse, got %T", msg)
	return resp
}

// readError reads an error response to command and returns it.
func (s *dapTestSession) readError(command string) *dap.ErrorResponse {
	msg := s.read()
	resp, ok := msg.(*dap.ErrorResponse)
	require.True(s.t, ok, "expected ErrorResponse, got %T", msg)
	assert.False(s.t, resp.Success)
	assert.Equal(s.t, command, resp.Command)
	if assert.NotNil(s.t, resp.Body.Error) {
		assert.Equal(s.t, resp.Message, resp.Body.Error.Format)
	}
	return resp
}

// continueExec resumes the target and returns the event that followed the
// response.
func (s *dapTestSession) continueExec() dap.Message {
	s.send(&dap.ContinueRequest{
		Request:   s.request("continue"),
		Arguments: dap.ContinueArguments{ThreadId: threadID},
	})
	msg := s.read()
	resp, ok := msg.(*dap.ContinueResponse)
	require.True(s.t, ok, "expected ContinueResponse, got %T", msg)
	require.True(s.t, resp.Success)
	return s.read()
}

func (s *dapTestSession) disconnect() {
	s.send(&dap.DisconnectRequest{Request: s.request("disconnect")})
	_, ok := s.read().(*dap.DisconnectResponse)
	assert.True(s.t, ok)
	_, ok = s.read().(*dap.TerminatedEvent)
	assert.True(s.t, ok)
}

func values(vars []dap.Variable) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Name] = v.Value
	}
	return m
}

func TestDAPServer_InitializeAndDisconnect(t *testing.T) {
	t.Parallel()
	s := setupDAPSession(t)
	s.send(&dap.ConfigurationDoneRequest{Request: s.request("configurationDone")})
	_, ok := s.read().(*dap.ConfigurationDoneResponse)
	assert.True(t, ok)
	evt, ok := s.read().(*dap.StoppedEvent)
	require.True(t, ok)
	assert.Equal(t, "entry", evt.Body.Reason)
	assert.Equal(t, threadID, evt.Body.ThreadId)

	s.send(&dap.SetBreakpointsRequest{Request: s.request("setBreakpoints")})
	unsupported := s.readError("setBreakpoints")
	assert.Equal(t, "unsupported request", unsupported.Message)
	s.disconnect()
}

func TestDAPServer_ThreadsAndStack(t *testing.T) {
	t.Parallel()
	s := setupDAPSession(t)
	s.send(&dap.ThreadsRequest{Request: s.request("threads")})
	threads, ok := s.read().(*dap.ThreadsResponse)
	require.True(t, ok)
	require.Len(t, threads.Body.Threads, 1)
	assert.Equal(t, "main", threads.Body.Threads[0].Name)

	s.send(&dap.StackTraceRequest{
		Request:   s.request("stackTrace"),
		Arguments: dap.StackTraceArguments{ThreadId: threadID},
	})
	stack, ok := s.read().(*dap.StackTraceResponse)
	require.True(t, ok)
	require.Len(t, stack.Body.StackFrames, 1)
	assert.Equal(t, "0x00000020", stack.Body.StackFrames[0].InstructionPointerReference)

	s.send(&dap.ScopesRequest{
		Request:   s.request("scopes"),
		Arguments: dap.ScopesArguments{FrameId: 1},
	})
	scopes, ok := s.read().(*dap.ScopesResponse)
	require.True(t, ok)
	require.Len(t, scopes.Body.Scopes, 1)
	assert.Equal(t, watchRef, scopes.Body.Scopes[0].VariablesReference)
	s.disconnect()
}

func TestDAPServer_EvaluateAndExpand(t *testing.T) {
	t.Parallel()
	s := setupDAPSession(t)

	arr := s.evaluate("myArray")
	require.True(t, arr.Success, arr.Message)
	assert.Equal(t, varobj.CompositeValue, arr.Body.Result)
	assert.Equal(t, "int [3]", arr.Body.Type)
	require.NotZero(t, arr.Body.VariablesReference)

	elems := s.variables(arr.Body.VariablesReference)
	require.True(t, elems.Success)
	require.Len(t, elems.Body.Variables, 3)
	assert.Equal(t, "[0]", elems.Body.Variables[0].Name)
	assert.Equal(t, "(myArray)[0]", elems.Body.Variables[0].EvaluateName)
	assert.Equal(t, map[string]string{"[0]": "1", "[1]": "2", "[2]": "3"}, values(elems.Body.Variables))
	assert.Zero(t, elems.Body.Variables[0].VariablesReference)

	x := s.evaluate("5")
	require.True(t, x.Success)
	assert.Equal(t, "5", x.Body.Result)
	assert.Zero(t, x.Body.VariablesReference)

	watch := s.variables(watchRef)
	require.Len(t, watch.Body.Variables, 2)
	assert.Equal(t, "var0", watch.Body.Variables[0].Name)
	assert.Equal(t, "var1", watch.Body.Variables[1].Name)

	s.sendEvaluate("nosuch")
	bad := s.readError("evaluate")
	assert.Equal(t, `No symbol "nosuch" in current context.`, bad.Message)

	s.sendVariables(nodeRefBase + 999)
	missing := s.readError("variables")
	assert.Equal(t, "Missing variable.", missing.Message)

	s.sendVariables(watchRef + 1)
	unknown := s.readError("variables")
	assert.Equal(t, "unknown variables reference 2", unknown.Message)
	s.disconnect()
}

func TestDAPServer_StructGroups(t *testing.T) {
	t.Parallel()
	s := setupDAPSession(t)
	pt := s.evaluate("pt")
	require.True(t, pt.Success)
	groups := s.variables(pt.Body.VariablesReference)
	require.Len(t, groups.Body.Variables, 1)
	public := groups.Body.Variables[0]
	assert.Equal(t, "public", public.Name)
	assert.Equal(t, "", public.Value)
	members := s.variables(public.VariablesReference)
	assert.Equal(t, map[string]string{"x": "3", "y": "4"}, values(members.Body.Variables))
	s.disconnect()
}

func TestDAPServer_Continue(t *testing.T) {
	t.Parallel()
	s := setupDAPSession(t)
	arr := s.evaluate("myArray")
	require.True(t, arr.Success)
	i := s.evaluate("i")
	require.True(t, i.Success)
	assert.Equal(t, "11", i.Body.Result)

	evt, ok := s.continueExec().(*dap.StoppedEvent)
	require.True(t, ok)
	assert.Equal(t, "step", evt.Body.Reason)
	elems := s.variables(arr.Body.VariablesReference)
	assert.Equal(t, "20", values(elems.Body.Variables)["[1]"])
	watch := s.variables(watchRef)
	assert.Equal(t, "12", values(watch.Body.Variables)["var1"])

	_, ok = s.continueExec().(*dap.StoppedEvent) // pc 0x40
	require.True(t, ok)
	watch = s.variables(watchRef)
	assert.Equal(t, "<out of scope>", values(watch.Body.Variables)["var1"])

	s.continueExec()
	s.continueExec()
	exited, ok := s.continueExec().(*dap.ExitedEvent)
	require.True(t, ok)
	assert.Equal(t, 0, exited.Body.ExitCode)
	_, ok = s.read().(*dap.TerminatedEvent)
	require.True(t, ok)
	assert.True(t, s.target.Exited())

	s.send(&dap.ContinueRequest{Request: s.request("continue")})
	resp := s.readError("continue")
	assert.Equal(t, target.ErrExited.Error(), resp.Message)
	s.disconnect()
}

func sendDAPRequest(t *testing.T, w io.Writer, msg dap.Message) {
	t.Helper()
	err := dap.WriteProtocolMessage(w, msg)
	require.NoError(t, err)
}

func readDAPMessage(t *testing.T, r *bufio.Reader) dap.Message {
	t.Helper()
	done := make(chan dap.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		msg, err := dap.ReadProtocolMessage(r)
		if err != nil {
			errCh <- err
			return
		}
		done <- msg
	}()
	select {
	case msg := <-done:
		return msg
	case err := <-errCh:
		t.Fatalf("error reading DAP message: %v", err)
		return nil
	case <-time.After(5 * time.Second):
		t.Fatal("timeout reading DAP message")
		return nil
	}
}
