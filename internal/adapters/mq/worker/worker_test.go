package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/auditdeck/internal/adapters/mq/queue"
	"github.com/okian/auditdeck/internal/adapters/mq/worker"
	"github.com/smartystreets/goconvey/convey"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     []int
	inFlight int
	overlap  bool
	fail     map[int]error
	all      chan struct{}
	want     int
}

func (p *recordingProcessor) Process(_ context.Context, item int) error {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	p.seen = append(p.seen, item)
	if len(p.seen) == p.want {
		close(p.all)
	}
	return p.fail[item]
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a queue and a single worker", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue[int](queue.WithCapacity(8), queue.WithName("test"))
		p := &recordingProcessor{fail: map[int]error{3: errors.New("bad frame")}, all: make(chan struct{}), want: 20}
		w := worker.NewInMemoryWorker[int](q, p, worker.WithName("features"))
		go w.Run(ctx)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, i), convey.ShouldBeNil)
		}
		<-p.all
		waitForStats(w, 20)

		convey.Convey("Then items are processed in order without overlap", func() {
			expected := make([]int, 20)
			for i := range expected {
				expected[i] = i
			}
			convey.So(p.seen, convey.ShouldResemble, expected)
			convey.So(p.overlap, convey.ShouldBeFalse)
		})

		convey.Convey("Then a failing item does not stop the worker", func() {
			processed, failed := w.Stats()
			convey.So(processed, convey.ShouldEqual, 19)
			convey.So(failed, convey.ShouldEqual, 1)
		})

		convey.Convey("When shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then Run returns", func() {
				convey.So(err, convey.ShouldBeNil)
				_, open := <-w.Done()
				convey.So(open, convey.ShouldBeFalse)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue[int]()
		w := worker.NewInMemoryWorker[int](q, worker.ProcessorFunc[int](func(context.Context, int) error { return nil }))
		go w.Run(context.Background())

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then the worker exits", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}

func waitForStats(w *worker.InMemoryWorker[int], n uint64) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if processed, failed := w.Stats(); processed+failed >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
