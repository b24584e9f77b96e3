// Package accounting providers an accounting and limiting reader
package accounting

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rclone/ftpfetch/fs"
)

// Transfer directions
const (
	Get = "get"
	Put = "put"
)

// Options control the feedback an Account gives while it runs
type Options struct {
	HashBytes fs.SizeSuffix // print a # each time this many bytes pass, 0 for none
	Progress  bool          // draw a progress meter instead of hash marks
	Out       io.Writer     // where marks and the meter go, os.Stdout if nil
}

// progressInterval is how often the progress meter is redrawn
const progressInterval = time.Second

// Account limits and accounts for one transfer
type Account struct {
	ctx       context.Context
	name      string
	direction string
	opt       Options
	out       io.Writer
	tb        *TokenBucket

	mu       sync.Mutex
	size     int64 // expected total including restart, -1 if unknown
	restart  int64 // bytes present before the transfer started
	bytes    int64 // bytes moved by this transfer
	start    time.Time
	marks    int64 // number of hash marks printed
	drawn    bool  // meter has been drawn at least once
	lastDraw time.Time
	done     bool
}

// NewAccount makes an Account for a transfer of name in direction
// (Get or Put).  size is the total size or -1 if unknown.  tb may be
// nil for no rate limiting.
func NewAccount(ctx context.Context, name, direction string, size int64, tb *TokenBucket, opt Options) *Account {
	out := opt.Out
	if out == nil {
		out = os.Stdout
	}
	return &Account{
		ctx:       ctx,
		name:      name,
		direction: direction,
		opt:       opt,
		out:       out,
		tb:        tb,
		size:      size,
		start:     time.Now(),
	}
}

// SetRestart records that n bytes were already present so the meter
// shows the progress of the whole file.
func (acc *Account) SetRestart(n int64) {
	acc.mu.Lock()
	acc.restart = n
	acc.mu.Unlock()
}

// SetSize sets the expected total size, -1 if unknown
func (acc *Account) SetSize(size int64) {
	acc.mu.Lock()
	acc.size = size
	acc.mu.Unlock()
}

// ChunkSize is the largest number of bytes a single read or write
// should move so the rate limit is honoured.
func (acc *Account) ChunkSize(def int) int {
	return acc.tb.ChunkSize(def)
}

// AccountRead tallies n bytes which have just moved, then sleeps as
// needed to honour the rate limit.
func (acc *Account) AccountRead(n int) error {
	if n <= 0 {
		return nil
	}
	acc.mu.Lock()
	before := acc.bytes
	acc.bytes += int64(n)
	acc.feedback(before)
	acc.mu.Unlock()
	DefaultMetrics.onBytes(acc.direction, n)
	return acc.tb.WaitN(acc.ctx, n)
}

// feedback draws hash marks or the meter, called with the lock held
func (acc *Account) feedback(before int64) {
	if acc.opt.Progress {
		if now := time.Now(); !acc.drawn || now.Sub(acc.lastDraw) >= progressInterval {
			acc.draw(now)
		}
		return
	}
	if acc.opt.HashBytes <= 0 {
		return
	}
	hashBytes := int64(acc.opt.HashBytes)
	marks := acc.bytes/hashBytes - before/hashBytes
	if marks > 0 {
		_, _ = io.WriteString(acc.out, strings.Repeat("#", int(marks)))
		if f, ok := acc.out.(interface{ Sync() error }); ok {
			_ = f.Sync()
		}
		acc.marks += marks
	}
}

const barWidth = 30

// draw the progress meter, called with the lock held
func (acc *Account) draw(now time.Time) {
	acc.drawn = true
	acc.lastDraw = now
	total := acc.restart + acc.bytes
	elapsed := now.Sub(acc.start)
	var rate float64
	if elapsed > 0 {
		rate = float64(acc.bytes) / elapsed.Seconds()
	}
	var bar, percent, eta string
	if acc.size > 0 {
		ratio := float64(total) / float64(acc.size)
		if ratio > 1 {
			ratio = 1
		}
		stars := int(ratio * barWidth)
		bar = strings.Repeat("*", stars) + strings.Repeat(" ", barWidth-stars)
		percent = fmt.Sprintf("%3d%%", int(ratio*100))
		if rate > 0 && acc.size > total {
			eta = time.Duration(float64(acc.size-total) / rate * float64(time.Second)).Round(time.Second).String()
		} else {
			eta = "--"
		}
	} else {
		bar = strings.Repeat(" ", barWidth)
		percent = " --%"
		eta = "--"
	}
	_, _ = fmt.Fprintf(acc.out, "\r%-20s %s |%s| %10s %12s ETA %s",
		shortenName(acc.name, 20), percent, bar,
		fs.SizeSuffix(total).ByteUnit(), fs.SizeSuffix(rate).ByteRateUnit(), eta)
}

// Bytes returns the number of bytes moved so far
func (acc *Account) Bytes() int64 {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.bytes
}

// Done finishes the transfer with err, terminating the marks or the
// meter line, logging a summary and counting it in the metrics.
//
// Calling it more than once does nothing.
func (acc *Account) Done(err error) {
	acc.mu.Lock()
	if acc.done {
		acc.mu.Unlock()
		return
	}
	acc.done = true
	if acc.opt.Progress {
		acc.draw(time.Now())
		_, _ = io.WriteString(acc.out, "\n")
	} else if acc.marks > 0 {
		_, _ = io.WriteString(acc.out, "\n")
	}
	acc.mu.Unlock()
	DefaultMetrics.onDone(acc.direction, err)
	if err == nil {
		fs.Infof(nil, "%s", acc)
	}
}

// String produces a transfer summary
func (acc *Account) String() string {
	acc.mu.Lock()
	bytes := acc.bytes
	elapsed := time.Since(acc.start)
	acc.mu.Unlock()
	verb := "received"
	if acc.direction == Put {
		verb = "sent"
	}
	plural := "s"
	if bytes == 1 {
		plural = ""
	}
	secs := elapsed.Seconds()
	var rate float64
	if secs > 0 {
		rate = float64(bytes) / secs
	}
	return fmt.Sprintf("%d byte%s %s in %.2f seconds (%s)", bytes, plural, verb, secs, fs.SizeSuffix(rate).ByteRateUnit())
}

// shortenName shortens in to size bytes long using an ellipsis in
// the middle
func shortenName(in string, size int) string {
	if size <= 0 || len(in) <= size {
		return in
	}
	size -= 3
	suffixLength := size / 2
	prefixLength := size - suffixLength
	return in[:prefixLength] + "..." + in[len(in)-suffixLength:]
}

// WrapReader returns a reader which accounts for everything read
// through it.  Each Read is limited to the rate limit chunk size.
func (acc *Account) WrapReader(in io.Reader) io.Reader {
	return &accountReader{acc: acc, in: in}
}

type accountReader struct {
	acc *Account
	in  io.Reader
}

// Read bytes from the underlying reader, accounting for them
func (ar *accountReader) Read(p []byte) (n int, err error) {
	if chunk := ar.acc.ChunkSize(len(p)); chunk < len(p) {
		p = p[:chunk]
	}
	n, err = ar.in.Read(p)
	if waitErr := ar.acc.AccountRead(n); waitErr != nil && err == nil {
		err = waitErr
	}
	return n, err
}
