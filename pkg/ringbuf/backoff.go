package ringbuf

import "time"

// Backoff is the retry policy used when a ring buffer is full (writer side)
// or empty (reader side). The sleep starts at Min and doubles on each
// attempt up to Max.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff is used by the console transport.
var DefaultBackoff = Backoff{
	Min: 10 * time.Microsecond,
	Max: time.Millisecond,
}

// Delay returns the sleep duration for the given attempt (0 based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Min
	if d <= 0 {
		d = time.Microsecond
	}
	for i := 0; i < attempt && d < b.Max; i++ {
		d <<= 1
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Wait sleeps for Delay(attempt).
func (b Backoff) Wait(attempt int) {
	time.Sleep(b.Delay(attempt))
}

// WriteAll writes every byte of p into buf, backing off while it is full.
// It never drops data, so the caller stalls when the consumer falls behind.
// It returns the number of short writes observed.
func WriteAll(buf *Buffer, p []byte, bo Backoff) (stalls int) {
	attempt := 0
	for len(p) > 0 {
		n := buf.Write(p)
		p = p[n:]
		if len(p) == 0 {
			break
		}
		stalls++
		if n > 0 {
			attempt = 0
		}
		bo.Wait(attempt)
		attempt++
	}
	return
}
