// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

// Scheduler is a synchronous trampoline that serializes re-entrant work.
//
// Tasks run in strict enqueue order. While the semaphore is non-zero,
// newly scheduled tasks are queued instead of run, so the unit of work in
// progress finishes its current step before a re-entrant trigger is
// processed. A Scheduler is owned by one [Runtime] and is only touched by
// the goroutine draining that runtime's inbox.
type Scheduler struct {
	queue     []func()
	semaphore int
}

// Asap enqueues task and, unless the scheduler is suspended, drains the
// queue before returning.
func (s *Scheduler) Asap(task func()) {
	s.queue = append(s.queue, task)
	if s.semaphore == 0 {
		s.Suspend()
		s.Flush()
	}
}

// Immediately runs task now with the scheduler suspended, then drains
// whatever task queued.
func (s *Scheduler) Immediately(task func()) {
	s.Suspend()
	defer s.Flush()
	task()
}

// Suspend defers execution of scheduled tasks until the matching Flush.
func (s *Scheduler) Suspend() { s.semaphore++ }

// Release undoes one Suspend without draining.
func (s *Scheduler) Release() { s.semaphore-- }

// Flush releases one Suspend and, if that leaves the scheduler idle,
// runs queued tasks until the queue is empty.
func (s *Scheduler) Flush() {
	s.Release()
	for s.semaphore == 0 && len(s.queue) > 0 {
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.exec(task)
	}
}

func (s *Scheduler) exec(task func()) {
	s.Suspend()
	defer s.Release()
	task()
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int { return len(s.queue) }
