package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	xlog "github.com/luxfi/smartvestor/log"
)

// DefaultSocketPath is the unix-domain socket path.
const DefaultSocketPath = "/tmp/smartvestor-tui.sock"

// Publisher is a unix-domain stream socket server that fans Update frames
// out to every connected subscriber. It is built directly on stdlib net
// rather than a third-party library, since raw AF_UNIX stream framing
// over newline-delimited JSON is simple enough not to warrant one.
type Publisher struct {
	log  xlog.Logger
	path string

	seq atomic.Uint64

	mu       sync.Mutex
	last     *Frame
	subs     map[*subscriber]struct{}
	listener net.Listener
}

type subscriber struct {
	conn net.Conn
	out  chan []byte
}

// NewPublisher binds path (removing any stale socket file first) and
// returns a Publisher ready to Start. path="" uses DefaultSocketPath.
func NewPublisher(path string, logger xlog.Logger) (*Publisher, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if logger == nil {
		logger = xlog.Root()
	}
	_ = os.Remove(path) // reap a stale socket from a prior crashed run
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		log:      logger,
		path:     path,
		subs:     make(map[*subscriber]struct{}),
		listener: ln,
	}, nil
}

// Start runs the accept loop under g until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		<-ctx.Done()
		return p.listener.Close()
	})
	g.Go(func() error {
		return p.acceptLoop(ctx)
	})
}

func (p *Publisher) acceptLoop(ctx context.Context) error {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				p.log.Warn("bus: accept failed", "err", err)
				return err
			}
		}
		sub := &subscriber{conn: conn, out: make(chan []byte, 16)}
		p.addSubscriber(sub)
		go p.writeLoop(sub)
		go p.readLoop(sub)
	}
}

func (p *Publisher) addSubscriber(sub *subscriber) {
	p.mu.Lock()
	p.subs[sub] = struct{}{}
	last := p.last
	p.mu.Unlock()
	if last != nil {
		last.Type = FrameInitialRender
		if b, err := encodeFrame(*last); err == nil {
			select {
			case sub.out <- b:
			default:
			}
		}
	}
}

func (p *Publisher) removeSubscriber(sub *subscriber) {
	p.mu.Lock()
	delete(p.subs, sub)
	p.mu.Unlock()
	close(sub.out)
	sub.conn.Close()
}

func (p *Publisher) writeLoop(sub *subscriber) {
	for b := range sub.out {
		if _, err := sub.conn.Write(b); err != nil {
			p.removeSubscriber(sub)
			return
		}
	}
}

// readLoop watches for PING commands from a subscriber; any read error or
// EOF drops the subscriber.
func (p *Publisher) readLoop(sub *subscriber) {
	scanner := bufio.NewScanner(sub.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "PING") {
			p.resendLastTo(sub)
		}
	}
	p.removeSubscriber(sub)
}

func (p *Publisher) resendLastTo(sub *subscriber) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last == nil {
		return
	}
	if b, err := encodeFrame(*last); err == nil {
		select {
		case sub.out <- b:
		default:
		}
	}
}

// Publish assigns the next strictly-increasing seq to update, wraps it in
// an updateRender frame, and fans it out to every connected subscriber.
func (p *Publisher) Publish(update Update) {
	update.Seq = p.seq.Add(1)
	frame := Frame{Type: FrameUpdateRender, Update: update}

	p.mu.Lock()
	p.last = &frame
	subs := make([]*subscriber, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	b, err := encodeFrame(frame)
	if err != nil {
		p.log.Error("bus: failed to encode update", "err", err)
		return
	}
	for _, sub := range subs {
		select {
		case sub.out <- b:
		default:
			p.log.Warn("bus: subscriber backlog full, dropping frame", "seq", update.Seq)
		}
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func encodeFrame(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
