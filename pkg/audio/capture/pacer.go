// ABOUTME: Real-time pacing for synthetic capture sources
// ABOUTME: Blocks each read for one frame period, like a hardware clock
package capture

import (
	"sync"
	"time"
)

type pacer struct {
	period time.Duration
	next   time.Time

	once sync.Once
	done chan struct{}
}

func newPacer(period time.Duration) *pacer {
	return &pacer{period: period, done: make(chan struct{})}
}

// wait blocks until the next frame boundary. It returns errClosed if the
// pacer is closed first.
func (p *pacer) wait() error {
	if p.next.IsZero() {
		p.next = time.Now()
	}
	p.next = p.next.Add(p.period)

	d := time.Until(p.next)
	if d <= 0 {
		select {
		case <-p.done:
			return errClosed
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-p.done:
		return errClosed
	}
}

func (p *pacer) close() {
	p.once.Do(func() { close(p.done) })
}
