package provider

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const maxEventBytes = 1 << 20

// readEvents calls handle with the payload of every "data:" line in an SSE
// body until handle returns false, the body ends, or ctx is done.
func readEvents(ctx context.Context, body io.Reader, handle func(data string) bool) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 4096), maxEventBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if !handle(data) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// send delivers a chunk unless ctx is done first.
func send(ctx context.Context, ch chan<- *StreamChunk, c *StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
