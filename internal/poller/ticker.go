package poller

import "time"

// Ticker is the repeating timer owned by one polling context
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTicker returns a Ticker backed by time.NewTicker
func NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}
