package queue_test

import (
	"context"
	"sync"
	"time"

	"github.com/taskforge/taskforge/pkg/queue"
)

// taskMeta aliases queue.Meta so embedding it doesn't create a field named
// Meta, which would shadow the promoted Meta() method the Task interface needs.
type taskMeta = queue.Meta

// stubTask is a minimal task variant for store-level tests: the type name and
// outcome are plain fields, so tests can shape rows without a registry.
type stubTask struct {
	taskMeta
	Kind    string        `json:"-"`
	Outcome queue.Outcome `json:"-"`
}

func (t *stubTask) Type() string { return t.Kind }

func (t *stubTask) Run(ctx context.Context) queue.Outcome { return t.Outcome }

func newStub(kind string, priority int) *stubTask {
	return &stubTask{taskMeta: queue.Meta{Priority: priority}, Kind: kind}
}

// recordingTask is used in runner and scheduler tests. Its behavior lives in
// the recorder the constructor closure captures, surviving reconstruction
// from a claimed row's payload.
type recordingTask struct {
	taskMeta
	Payload string `json:"payload,omitempty"`

	kind string
	rec  *recorder
}

func (t *recordingTask) Type() string { return t.kind }

func (t *recordingTask) Run(ctx context.Context) queue.Outcome {
	return t.rec.observe(t)
}

func (t *recordingTask) NextTry() time.Duration {
	return t.RetryEvery(t.rec.retryDelay, t.rec.maxTries)
}

// recorder observes every run of a task type and dictates outcomes.
type recorder struct {
	mu         sync.Mutex
	tries      []int
	outcome    queue.Outcome
	panicMsg   string
	retryDelay time.Duration
	maxTries   int
}

func (r *recorder) observe(t *recordingTask) queue.Outcome {
	r.mu.Lock()
	r.tries = append(r.tries, t.taskMeta.Tries)
	outcome := r.outcome
	panicMsg := r.panicMsg
	r.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	return outcome
}

func (r *recorder) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tries)
}

func (r *recorder) triesSeen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.tries...)
}

func (r *recorder) definition(kind string) queue.Definition {
	return queue.Definition{
		Type: kind,
		New: func() queue.Task {
			return &recordingTask{kind: kind, rec: r}
		},
	}
}
