package workqueue

import (
	"sync"

	"github.com/j-woz/cctools/workqueue/futures"
)

// submitQueue is the hand-off from arbitrary caller goroutines into the
// single sync loop goroutine: concurrent enqueue from many producers,
// non-blocking dequeue-if-present from the one consumer.
type submitQueue struct {
	sync.Mutex

	tasks []*futures.FutureTask
}

func newSubmitQueue() *submitQueue {
	return &submitQueue{}
}

func (s *submitQueue) push(ft *futures.FutureTask) {
	s.Lock()
	defer s.Unlock()
	s.tasks = append(s.tasks, ft)
}

func (s *submitQueue) pop() (*futures.FutureTask, bool) {
	s.Lock()
	defer s.Unlock()

	if len(s.tasks) == 0 {
		return nil, false
	}
	ft := s.tasks[0]
	s.tasks[0] = nil
	s.tasks = s.tasks[1:]
	return ft, true
}

func (s *submitQueue) empty() bool {
	s.Lock()
	defer s.Unlock()
	return len(s.tasks) == 0
}
