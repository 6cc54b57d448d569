package queue

import "time"

// SetClock replaces the clock of the queue.
func (q *GormQueue) SetClock(now func() time.Time) {
	q.now = now
}
