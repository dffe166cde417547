package retrieval

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventMethodResults TraceEventKind = "method_results"
	TraceEventMethodFailed  TraceEventKind = "method_failed"
	TraceEventRetained      TraceEventKind = "retained"
)

// TraceEvent is an extensible event envelope for retrieval tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	Method        string
	RawCandidates int

	RetainedEntities int
	RetainedChunks   int

	Error string
}

// Tracer is a sink for retrieval tracing events.
//
// Implementers can forward events to logs, telemetry, or custom
// post-processing pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordMethodResults(t Tracer, method string, count int) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventMethodResults, Method: method, RawCandidates: count})
}

func RecordMethodFailed(t Tracer, method string, err error) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventMethodFailed, Method: method, Error: err.Error()})
}

func RecordRetained(t Tracer, entities, chunks int) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRetained, RetainedEntities: entities, RetainedChunks: chunks})
}

// RetrievalTrace collects per-request retrieval observability: which signal
// methods fired, how many raw candidates each produced, which failed, and
// the final retained counts.
//
// RetrievalTrace is safe for concurrent use.
type RetrievalTrace struct {
	mu sync.Mutex

	rawCandidates    map[string]int
	failedMethods    map[string]string
	retainedEntities int
	retainedChunks   int
}

type RetrievalTraceSnapshot struct {
	RawCandidates    map[string]int    `json:"raw_candidates"`
	FailedMethods    map[string]string `json:"failed_methods,omitempty"`
	RetainedEntities int               `json:"retained_entities"`
	RetainedChunks   int               `json:"retained_chunks"`
}

func NewRetrievalTrace() *RetrievalTrace {
	return &RetrievalTrace{
		rawCandidates: make(map[string]int),
		failedMethods: make(map[string]string),
	}
}

func (t *RetrievalTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventMethodResults:
		if event.Method != "" {
			t.rawCandidates[event.Method] += event.RawCandidates
		}
	case TraceEventMethodFailed:
		if event.Method != "" {
			t.failedMethods[event.Method] = event.Error
		}
	case TraceEventRetained:
		t.retainedEntities = event.RetainedEntities
		t.retainedChunks = event.RetainedChunks
	}
}

func (t *RetrievalTrace) Snapshot() RetrievalTraceSnapshot {
	if t == nil {
		return RetrievalTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := RetrievalTraceSnapshot{
		RawCandidates:    make(map[string]int, len(t.rawCandidates)),
		RetainedEntities: t.retainedEntities,
		RetainedChunks:   t.retainedChunks,
	}
	for method, count := range t.rawCandidates {
		s.RawCandidates[method] = count
	}
	if len(t.failedMethods) > 0 {
		s.FailedMethods = make(map[string]string, len(t.failedMethods))
		for method, msg := range t.failedMethods {
			s.FailedMethods[method] = msg
		}
	}
	return s
}

// FailedMethods returns the names of methods that reported a failure, sorted.
func (t *RetrievalTrace) FailedMethods() []string {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	methods := make([]string, 0, len(t.failedMethods))
	for m := range t.failedMethods {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}
