package queue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/pkg/queue"
)

// WelcomeEmail is a one-shot task with a fixed retry policy.
type WelcomeEmail struct {
	taskMeta
	Address string `json:"address"`
}

func (t *WelcomeEmail) Type() string { return "WelcomeEmail" }

func (t *WelcomeEmail) Run(ctx context.Context) queue.Outcome {
	fmt.Printf("sending welcome email to %s\n", t.Address)
	return queue.Success
}

func (t *WelcomeEmail) NextTry() time.Duration {
	return t.RetryEvery(30*time.Second, 5)
}

func Example() {
	reg := queue.NewRegistry()
	_ = reg.Register(queue.Definition{
		Type: "WelcomeEmail",
		New:  func() queue.Task { return &WelcomeEmail{} },
	})

	store := queue.NewMemStore(reg)
	runner, _ := queue.NewRunner(store, reg, queue.WithPollInterval(10*time.Millisecond))
	_ = runner.Start(context.Background())

	_, _ = store.Insert(context.Background(), &WelcomeEmail{Address: "new-user@example.com"}, 0)

	time.Sleep(100 * time.Millisecond)
	_ = runner.Stop()
	// Output: sending welcome email to new-user@example.com
}
