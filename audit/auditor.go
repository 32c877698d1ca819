// ABOUTME: Cycle auditor that snapshots a store into a reference graph
// ABOUTME: Reports leaked strong cycles, ownership paths and teardown cascades

package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prateek/arclens/graph"
	"github.com/prateek/arclens/store"
)

// Cycle is a set of slots that keep each other alive through strong edges,
// in ascending id order.
type Cycle []store.SlotID

// Report is the result of one audit.
type Report struct {
	ID       string                  // Unique audit id
	Store    string                  // Store name
	Tracked  int                     // Slot records in the snapshot
	Live     int                     // Live slots in the snapshot
	Roots    []store.SlotID          // Roots the audit started from
	Cycles   []Cycle                 // Leaked strong cycles
	Stranded []store.SlotID          // Slots leaked only because a cycle owns them
	Types    map[store.SlotID]string // Payload type of every reported slot
}

// Leaked reports whether the audit found anything that can never be freed.
func (r *Report) Leaked() bool {
	return len(r.Cycles) > 0 || len(r.Stranded) > 0
}

// Auditor inspects a store. It only reads snapshots and never changes counts.
type Auditor struct {
	store  *store.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the logger used for audit summaries.
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the tracer used for audit spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Auditor) {
		if t != nil {
			a.tracer = t
		}
	}
}

// New creates an auditor for s.
func New(s *store.Store, opts ...Option) *Auditor {
	a := &Auditor{
		store:  s,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/prateek/arclens/audit"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(
		slog.String("component", "arclens.audit"),
		slog.String("store", s.Name()),
	)
	return a
}

// Graph snapshots the store into a reference graph rooted at roots.
func (a *Auditor) Graph(roots []store.SlotID) *graph.MemGraph {
	return BuildGraph(a.store.Snapshot(), roots)
}

// FindUnreachableCycles marks every slot strongly reachable from roots and
// returns the strong cycles among the remaining live slots. With no roots,
// every strong cycle in the store is reported.
func (a *Auditor) FindUnreachableCycles(roots []store.SlotID) []Cycle {
	g := a.Graph(roots)
	return toCycles(graph.LeakedCycles(g, toObjIDs(roots)))
}

// Audit runs a full leak analysis: cycles plus the slots they strand.
func (a *Auditor) Audit(ctx context.Context, roots []store.SlotID) (*Report, error) {
	ctx, span := a.tracer.Start(ctx, "arclens.Audit",
		trace.WithAttributes(
			attribute.String("store", a.store.Name()),
			attribute.Int("roots", len(roots)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit cancelled")
		return nil, fmt.Errorf("audit: %w", err)
	}

	g := a.Graph(roots)
	objRoots := toObjIDs(roots)
	cycles := graph.LeakedCycles(g, objRoots)
	stranded := graph.Stranded(g, objRoots, cycles)

	report := &Report{
		ID:       uuid.New().String(),
		Store:    a.store.Name(),
		Tracked:  g.NumObjects(),
		Roots:    append([]store.SlotID(nil), roots...),
		Cycles:   toCycles(cycles),
		Stranded: toSlotIDs(stranded),
		Types:    make(map[store.SlotID]string),
	}
	g.ForEachObject(func(obj *graph.Object) {
		if !obj.Finalized {
			report.Live++
		}
	})
	for _, c := range report.Cycles {
		for _, id := range c {
			report.Types[id] = g.GetObject(graph.ObjID(id)).Type
		}
	}
	for _, id := range report.Stranded {
		report.Types[id] = g.GetObject(graph.ObjID(id)).Type
	}

	span.SetAttributes(
		attribute.String("audit_id", report.ID),
		attribute.Int("cycles", len(report.Cycles)),
		attribute.Int("stranded", len(report.Stranded)),
	)
	a.logger.Info("audit complete",
		slog.String("audit_id", report.ID),
		slog.Int("tracked", report.Tracked),
		slog.Int("live", report.Live),
		slog.Int("cycles", len(report.Cycles)),
		slog.Int("stranded", len(report.Stranded)),
	)
	return report, nil
}

// WhyAlive returns up to limit ownership paths from id back to roots. Each
// path starts at id and ends at a root.
func (a *Auditor) WhyAlive(id store.SlotID, roots []store.SlotID, limit int) [][]store.SlotID {
	g := a.Graph(roots)
	var paths [][]store.SlotID
	for _, p := range graph.PathsToRoots(g, graph.ObjID(id), limit) {
		paths = append(paths, toSlotIDs(p.IDs))
	}
	return paths
}

// WouldFinalize returns the slots that releasing one strong reference to id
// would finalize right now, in engine order. Nothing is released.
func (a *Auditor) WouldFinalize(id store.SlotID) []store.SlotID {
	return toSlotIDs(graph.Cascade(a.Graph(nil), graph.ObjID(id)))
}

// BuildGraph converts a store snapshot into a reference graph.
func BuildGraph(infos []store.SlotInfo, roots []store.SlotID) *graph.MemGraph {
	g := graph.NewMemGraph()
	for _, info := range infos {
		obj := &graph.Object{
			ID:          graph.ObjID(info.ID),
			Type:        info.Type,
			Size:        info.Size,
			StrongCount: info.Strong,
			WeakCount:   info.Weak,
			Finalized:   info.State != store.StateLive,
		}
		for _, e := range info.Edges {
			to := graph.ObjID(e.To)
			switch e.Strength {
			case store.StrengthStrong:
				obj.Ptrs = append(obj.Ptrs, to)
			case store.StrengthWeak:
				obj.Weak = append(obj.Weak, to)
			case store.StrengthUnowned:
				obj.Unowned = append(obj.Unowned, to)
			}
		}
		g.AddObject(obj)
	}
	g.SetRoots(graph.Roots{IDs: toObjIDs(roots)})
	return g
}

func toObjIDs(ids []store.SlotID) []graph.ObjID {
	out := make([]graph.ObjID, len(ids))
	for i, id := range ids {
		out[i] = graph.ObjID(id)
	}
	return out
}

func toSlotIDs(ids []graph.ObjID) []store.SlotID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]store.SlotID, len(ids))
	for i, id := range ids {
		out[i] = store.SlotID(id)
	}
	return out
}

func toCycles(comps [][]graph.ObjID) []Cycle {
	var cycles []Cycle
	for _, c := range comps {
		cycles = append(cycles, Cycle(toSlotIDs(c)))
	}
	return cycles
}
