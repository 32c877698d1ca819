// ABOUTME: Deallocation engine run when a slot's strong count reaches zero
// ABOUTME: Runs finalizers once, tears down owned handles and cascades iteratively

package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// releaseStrong drops one strong count and returns the finalization the
// drop triggered, if any. Count invariant failures panic.
func (s *Store) releaseStrong(sl *slot, op string) *finalJob {
	job, err := sl.release(op)
	if err != nil {
		panic(s.fail(err))
	}
	return job
}

// dropStrong releases one strong count and, if it was the last, finalizes the
// slot and everything it transitively owned before returning.
func (s *Store) dropStrong(sl *slot, op string) {
	if job := s.releaseStrong(sl, op); job != nil {
		s.finalize(job)
	}
}

// finalize runs the engine for job and any cascade it triggers. Cascades are
// processed with an explicit stack so long ownership chains do not grow the
// goroutine stack.
func (s *Store) finalize(first *finalJob) {
	_, span := s.tracer.Start(context.Background(), "arclens.finalize",
		trace.WithAttributes(
			attribute.String("store", s.name),
			attribute.Int64("slot", int64(first.s.id)),
			attribute.String("type", first.s.typ.String()),
		),
	)
	defer span.End()

	pending := []*finalJob{first}
	count := 0
	for len(pending) > 0 {
		job := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		s.runFinalizers(job, span)

		for _, h := range job.s.references() {
			if h == nil {
				continue
			}
			if next := h.teardown(); next != nil {
				pending = append(pending, next)
			}
		}

		job.s.wipe()
		job.s.finish()
		s.finalized.Add(1)
		count++

		s.logger.Debug("slot finalized",
			slog.Uint64("slot", uint64(job.s.id)),
			slog.String("type", job.s.typ.String()),
			slog.Int("finalizers", len(job.finalizers)),
		)
	}

	span.SetAttributes(attribute.Int("finalized", count))
	if count > 1 {
		s.logger.Debug("finalization cascade",
			slog.Uint64("root", uint64(first.s.id)),
			slog.Int("finalized", count),
		)
	}
}

// runFinalizers calls each registered finalizer with a copy of the payload.
// A panicking finalizer is reported and the remaining ones still run.
func (s *Store) runFinalizers(job *finalJob, span trace.Span) {
	if len(job.finalizers) == 0 {
		return
	}
	value := job.s.load()
	for _, fn := range job.finalizers {
		if err := s.callFinalizer(job.s.id, fn, value); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "finalizer panicked")
		}
	}
}

func (s *Store) callFinalizer(id SlotID, fn func(any), value any) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			s.finalizerPanics.Add(1)
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			e := newError("finalize", KindFinalizerPanic, id, cause)
			e.StackTrace = CaptureStack()
			err = s.report(e)
		}
	}()
	fn(value)
	return nil
}
