// Copyright © 2024 The ELPS authors

package varobj_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
	"github.com/luthersystems/varobj/varobjtest"
)

func TestUpdateChangeDetection(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "i", "i")
	s.create(t, "arr", "myArray")
	assert.Empty(t, s.update(t, varobj.All), "nothing changed since creation")

	s.resume(t) // i = 12, myArray[1] = 20
	want := []varobj.Change{
		{Name: "i", Value: "12", Simple: true, InScope: true},
		{Name: "arr.[1]", Value: "20", Simple: true, InScope: true},
	}
	if diff := cmp.Diff(want, s.update(t, varobj.All)); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
	assert.Empty(t, s.update(t, varobj.All), "changes are reported once")
}

func TestUpdateSingle(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "i", "i")
	s.create(t, "arr", "myArray")
	s.resume(t)
	want := []varobj.Change{{Name: "arr.[1]", Value: "20", Simple: true, InScope: true}}
	if diff := cmp.Diff(want, s.update(t, "arr")); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
	want = []varobj.Change{{Name: "i", Value: "12", Simple: true, InScope: true}}
	if diff := cmp.Diff(want, s.update(t, varobj.All)); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}

	_, err := s.engine.Update(context.Background(), "nope")
	assert.ErrorIs(t, err, varobj.ErrNotFound)
	assert.EqualError(t, err, "Variable does not exist")
}

func TestUpdateListedChildren(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "o", "obj")
	s.children(t, "o.public.origin")
	require.NoError(t, s.target.WriteMemory(0x154, target.EncodeUint(60, 4)))
	want := []varobj.Change{{Name: "o.public.origin.public.y", Value: "60", Simple: true, InScope: true}}
	if diff := cmp.Diff(want, s.update(t, varobj.All)); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestListChildrenIdempotent(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "o", "obj")
	first := s.children(t, "o")
	second := s.children(t, "o")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second listing differs (-first +second):\n%s", diff)
	}
	third := s.children(t, "o.public")
	fourth := s.children(t, "o.public")
	assert.Equal(t, third, fourth)
}

func TestListChildrenOutdates(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "arr", "myArray")
	require.NoError(t, s.target.WriteMemory(0x100, target.EncodeUint(7, 4)))
	children := s.children(t, "arr")
	assert.Equal(t, "7", children[0].Value)
	assert.Empty(t, s.update(t, varobj.All), "listed values are not reported again")
}

func TestUpdateScopeTransition(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "i", "i")
	s.resume(t)
	s.update(t, varobj.All)
	calls := s.eval.count("i")

	s.resume(t) // pc 0x40 leaves the range of i
	want := []varobj.Change{{Name: "i", Simple: true, InScope: false}}
	if diff := cmp.Diff(want, s.update(t, varobj.All)); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
	assert.Equal(t, calls, s.eval.count("i"), "out of scope objects are not evaluated")
	i, ok := s.engine.Lookup("i")
	require.True(t, ok)
	assert.False(t, i.InScope)

	s.resume(t) // pc 0x90, still out of scope
	assert.Empty(t, s.update(t, varobj.All))
	assert.Equal(t, calls, s.eval.count("i"))

	s.resume(t) // pc 0x28, back in scope with an unchanged value
	want = []varobj.Change{{Name: "i", Value: "12", Simple: true, InScope: true}}
	if diff := cmp.Diff(want, s.update(t, varobj.All)); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
	assert.Equal(t, calls+1, s.eval.count("i"))
}

func TestUpdateStaticScope(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "h", "hits")
	s.create(t, "x", "(int)hits")
	s.resume(t)
	s.resume(t)
	assert.Empty(t, s.update(t, varobj.All))
	s.resume(t) // pc 0x90 is in another file
	want := []varobj.Change{
		{Name: "h", Simple: true, InScope: false},
		{Name: "x", Simple: true, InScope: false},
	}
	if diff := cmp.Diff(want, s.update(t, varobj.All)); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestUpdateGlobalsStayInScope(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "i", "i")
	s.create(t, "arr", "myArray")
	s.resume(t)
	s.resume(t)
	require.NoError(t, s.target.Jump(0x90))
	changes := s.update(t, varobj.All)
	assert.Equal(t, []string{"i", "arr.[1]"}, changeNames(changes))
	assert.False(t, changes[0].InScope)
	assert.Equal(t, "", changes[0].Value)
}

func changeNames(changes []varobj.Change) []string {
	out := make([]string, len(changes))
	for i := range changes {
		out[i] = changes[i].Name
	}
	return out
}

func TestUpdateEvaluationFailure(t *testing.T) {
	t.Parallel()
	s := newSession(t)
	s.create(t, "arr", "myArray")
	s.create(t, "o", "obj")
	s.children(t, "o.public.origin")
	require.NoError(t, s.target.WriteMemory(0x100, target.EncodeUint(9, 4)))
	require.NoError(t, s.target.WriteMemory(0x104, target.EncodeUint(8, 4)))
	require.NoError(t, s.target.WriteMemory(0x150, target.EncodeUint(50, 4)))
	s.eval.failOn("(myArray)[1]", errors.New("Cannot access memory at address 0x104"))
	s.eval.failOn("(obj).origin", errors.New("Cannot access memory at address 0x150"))

	changes := s.update(t, varobj.All)
	assert.Equal(t, []string{"arr.[0]"}, changeNames(changes), "failed subtrees are dropped from the cycle")
	warnings := s.hook.Entries(logrus.WarnLevel)
	require.Len(t, warnings, 2)
	assert.Equal(t, "arr.[1]", warnings[0].Data["var"])
	assert.Equal(t, "o.public.origin", warnings[1].Data["var"])

	s.eval.failOn("(myArray)[1]", nil)
	s.eval.failOn("(obj).origin", nil)
	changes = s.update(t, varobj.All)
	assert.Equal(t, []string{"arr.[1]", "o.public.origin.public.x"}, changeNames(changes))
}

func TestCreateCanceled(t *testing.T) {
	t.Parallel()
	s := newSession(t, expr.WithLatency(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.engine.Create(ctx, "x", expr.CurrentFrame, "i")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := s.engine.Lookup("x")
	assert.False(t, ok)
}

func TestUpdateCanceled(t *testing.T) {
	t.Parallel()
	s := newSession(t, expr.WithLatency(20*time.Millisecond))
	s.create(t, "arr", "myArray")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.engine.Update(ctx, varobj.All)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.hook.Entries(logrus.WarnLevel))
}

func TestOpenTelemetrySpans(t *testing.T) {
	t.Parallel()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tgt := varobjtest.NewTarget(t)
	engine := varobj.New(tgt, expr.NewEvaluator(tgt), varobj.WithTracer(varobj.NewOpenTelemetryTracer(provider)))

	_, err := engine.Create(context.Background(), "arr", expr.CurrentFrame, "myArray")
	require.NoError(t, err)
	require.NoError(t, tgt.WriteMemory(0x100, target.EncodeUint(9, 4)))
	_, err = engine.Update(context.Background(), varobj.All)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "var-create", spans[0].Name)
	assert.Equal(t, "var-update", spans[1].Name)
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[1].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "*", attrs["varobj.name"].AsString())
	assert.Equal(t, int64(1), attrs["varobj.changes"].AsInt64())
	assert.Equal(t, "var-update", attrs["code.function"].AsString())
}

func TestOpenCensusSpans(t *testing.T) {
	t.Parallel()
	tgt := varobjtest.NewTarget(t)
	engine := varobj.New(tgt, expr.NewEvaluator(tgt), varobj.WithTracer(varobj.NewOpenCensusTracer()))
	_, err := engine.Create(context.Background(), "x", expr.CurrentFrame, "5")
	require.NoError(t, err)
	_, err = engine.Update(context.Background(), "x")
	require.NoError(t, err)
}
