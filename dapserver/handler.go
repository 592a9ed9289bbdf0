// Copyright © 2024 The ELPS authors

package dapserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
)

// handler dispatches incoming DAP messages to the appropriate method.
type handler struct {
	server *Server
	engine *varobj.Engine
	log    *logrus.Logger
}

func newHandler(s *Server) *handler {
	return &handler{
		server: s,
		engine: s.engine,
		log:    s.log,
	}
}

// send sends a DAP message and logs any write error.
func (h *handler) send(msg dap.Message) {
	if err := h.server.send(msg); err != nil {
		h.log.WithError(err).Error("dap: send")
	}
}

func (h *handler) handle(ctx context.Context, msg dap.Message) {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		h.onInitialize(req)
	case *dap.ConfigurationDoneRequest:
		h.onConfigurationDone(req)
	case *dap.ThreadsRequest:
		h.onThreads(req)
	case *dap.StackTraceRequest:
		h.onStackTrace(req)
	case *dap.ScopesRequest:
		h.onScopes(req)
	case *dap.VariablesRequest:
		h.onVariables(ctx, req)
	case *dap.EvaluateRequest:
		h.onEvaluate(ctx, req)
	case *dap.ContinueRequest:
		h.onContinue(ctx, req)
	case *dap.DisconnectRequest:
		h.onDisconnect(req)
	case dap.RequestMessage:
		r := req.GetRequest()
		h.log.WithField("command", r.Command).Warn("dap: unsupported request")
		h.fail(r.Seq, r.Command, errors.New("unsupported request"))
	default:
		h.log.Warnf("dap: unhandled message type: %T", msg)
	}
}

func (h *handler) onInitialize(req *dap.InitializeRequest) {
	resp := &dap.InitializeResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	resp.Body = dap.Capabilities{
		SupportsConfigurationDoneRequest: true,
		SupportsEvaluateForHovers:        true,
	}
	h.send(resp)

	// Tell the client it can send configuration.
	h.send(&dap.InitializedEvent{
		Event: h.newEvent("initialized"),
	})
}

func (h *handler) onConfigurationDone(req *dap.ConfigurationDoneRequest) {
	resp := &dap.ConfigurationDoneResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	h.send(resp)
	h.sendStoppedEvent("entry")
}

func (h *handler) onThreads(req *dap.ThreadsRequest) {
	resp := &dap.ThreadsResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	resp.Body.Threads = []dap.Thread{
		{Id: threadID, Name: "main"},
	}
	h.send(resp)
}

func (h *handler) onStackTrace(req *dap.StackTraceRequest) {
	resp := &dap.StackTraceResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	if !h.server.control.Exited() {
		resp.Body.StackFrames = []dap.StackFrame{translateFrame(h.server.control.Registers())}
		resp.Body.TotalFrames = 1
	}
	h.send(resp)
}

func (h *handler) onScopes(req *dap.ScopesRequest) {
	resp := &dap.ScopesResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	resp.Body.Scopes = []dap.Scope{
		{
			Name:               "Watch",
			VariablesReference: watchRef,
			Expensive:          false,
		},
	}
	h.send(resp)
}

func (h *handler) onVariables(ctx context.Context, req *dap.VariablesRequest) {
	resp := &dap.VariablesResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)

	ref := req.Arguments.VariablesReference
	if ref == watchRef {
		resp.Body.Variables = translateVariables(h.engine.Roots(), true)
		h.send(resp)
		return
	}
	hdl, ok := refHandle(ref)
	if !ok {
		h.fail(req.Seq, req.Command, fmt.Errorf("unknown variables reference %d", ref))
		return
	}
	_, children, err := h.engine.ListChildrenOf(ctx, hdl)
	if err != nil {
		h.fail(req.Seq, req.Command, err)
		return
	}
	resp.Body.Variables = translateVariables(children, false)
	h.send(resp)
}

func (h *handler) onEvaluate(ctx context.Context, req *dap.EvaluateRequest) {
	resp := &dap.EvaluateResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)

	info, err := h.engine.Create(ctx, varobj.AutoName, expr.CurrentFrame, req.Arguments.Expression)
	if err != nil {
		h.fail(req.Seq, req.Command, err)
		return
	}
	v := translateVariable(info, true)
	resp.Body.Result = v.Value
	resp.Body.Type = v.Type
	resp.Body.VariablesReference = v.VariablesReference
	h.send(resp)
}

func (h *handler) onContinue(ctx context.Context, req *dap.ContinueRequest) {
	resp := &dap.ContinueResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	if h.server.control.Exited() {
		h.fail(req.Seq, req.Command, target.ErrExited)
		return
	}
	resp.Body.AllThreadsContinued = true
	h.send(resp)

	_, err := h.server.control.Continue()
	if errors.Is(err, target.ErrExited) {
		evt := &dap.ExitedEvent{Event: h.newEvent("exited")}
		evt.Body.ExitCode = 0
		h.send(evt)
		h.send(&dap.TerminatedEvent{Event: h.newEvent("terminated")})
		return
	}
	if err != nil {
		h.log.WithError(err).Error("dap: continue")
	}
	// Refresh cached values so listings of grouping objects are current.
	changes, err := h.engine.Update(ctx, varobj.All)
	if err != nil {
		h.log.WithError(err).Warn("dap: update after stop")
	}
	h.log.WithField("changes", len(changes)).Debug("dap: stopped")
	h.sendStoppedEvent("step")
}

func (h *handler) onDisconnect(req *dap.DisconnectRequest) {
	resp := &dap.DisconnectResponse{}
	resp.Response = h.newResponse(req.Seq, req.Command)
	h.send(resp)

	h.send(&dap.TerminatedEvent{
		Event: h.newEvent("terminated"),
	})
	h.server.close()
}

// sendStoppedEvent sends a DAP stopped event to the client.
func (h *handler) sendStoppedEvent(reason string) {
	evt := &dap.StoppedEvent{
		Event: h.newEvent("stopped"),
	}
	evt.Body.Reason = reason
	evt.Body.ThreadId = threadID
	evt.Body.AllThreadsStopped = true
	h.send(evt)
}

// --- helpers ---

// fail answers the request with an error response carrying err.
func (h *handler) fail(reqSeq int, command string, err error) {
	resp := &dap.ErrorResponse{}
	resp.Response = h.newResponse(reqSeq, command)
	resp.Success = false
	resp.Message = err.Error()
	resp.Body.Error = &dap.ErrorMessage{
		Format:   err.Error(),
		ShowUser: true,
	}
	h.send(resp)
}

func (h *handler) newResponse(reqSeq int, command string) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: h.server.nextSeq(), Type: "response"},
		RequestSeq:      reqSeq,
		Success:         true,
		Command:         command,
	}
}

func (h *handler) newEvent(event string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: h.server.nextSeq(), Type: "event"},
		Event:           event,
	}
}
