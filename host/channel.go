// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

// Channel schedules tasks onto a Loop from any goroutine.
// Tasks sent through the same loop run in the order they were sent.
type Channel struct {
	loop *Loop
}

// Send queues [task] without waiting for it to run.
// It returns ErrStopped if the loop no longer accepts tasks.
func (c *Channel) Send(task Task) error {
	return c.loop.enqueue(task)
}
