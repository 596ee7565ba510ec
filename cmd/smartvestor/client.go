package main

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/luxfi/smartvestor/internal/bus"
)

// stateClient dials the publisher's unix socket and decodes newline-
// delimited bus.Frame JSON off it, redialing with backoff if the
// publisher isn't up yet or the connection drops.
type stateClient struct {
	frames chan bus.Frame
	done   chan struct{}
}

// newStateClient starts dialing path in the background and returns
// immediately; frames arrive on the returned client's frames channel
// until Close is called.
func newStateClient(path string) *stateClient {
	c := &stateClient{
		frames: make(chan bus.Frame, 16),
		done:   make(chan struct{}),
	}
	go c.run(path)
	return c
}

func (c *stateClient) run(path string) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 5 * time.Second
	for {
		select {
		case <-c.done:
			return
		default:
		}
		conn, err := net.Dial("unix", path)
		if err != nil {
			select {
			case <-c.done:
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = 100 * time.Millisecond
		c.readFrames(conn)
	}
}

func (c *stateClient) readFrames(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var frame bus.Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			continue
		}
		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

// Close stops the background dial/read loop. The frames channel is not
// closed since a goroutine may still be blocked sending to it; callers
// should stop reading from frames once their own context is done rather
// than relying on channel closure.
func (c *stateClient) Close() error {
	close(c.done)
	return nil
}
