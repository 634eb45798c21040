// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "code.hybscloud.com/saga"

// Span attribute keys.
const (
	AttrTaskID    = attribute.Key("saga.task.id")
	AttrTaskName  = attribute.Key("saga.task.name")
	AttrDetached  = attribute.Key("saga.task.detached")
	AttrStatus    = attribute.Key("saga.task.status")
	AttrRuntimeID = attribute.Key("saga.runtime.id")
)

// startSpan opens the span covering t's lifetime, as a child of the
// forking Task's span.
func (rt *Runtime) startSpan(ctx context.Context, t *Task) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, t.name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrTaskID.Int64(int64(t.id)),
			AttrTaskName.String(t.name),
			AttrDetached.Bool(t.detached),
			AttrRuntimeID.String(rt.id),
		),
	)
}

func (rt *Runtime) endSpan(t *Task) {
	status := t.Status()
	t.span.SetAttributes(AttrStatus.String(status.String()))
	if status == StatusAborted {
		t.span.RecordError(t.err)
		t.span.SetStatus(codes.Error, t.err.Error())
	}
	t.span.End()
}
