package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func startTestPublisher(t *testing.T) (*Publisher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tui.sock")
	pub, err := NewPublisher(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	pub.Start(gctx, g)
	t.Cleanup(func() {
		cancel()
		_ = g.Wait()
	})
	return pub, path
}

func dial(t *testing.T, path string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	require.Eventually(t, func() bool {
		conn, err = net.Dial("unix", path)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	return conn
}

func TestPublisherFanOutPreservesSeqOrder(t *testing.T) {
	pub, path := startTestPublisher(t)

	conn := dial(t, path)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	pub.Publish(Update{Data: Data{ErrorCount: 1}})
	pub.Publish(Update{Data: Data{ErrorCount: 2}})
	pub.Publish(Update{Data: Data{ErrorCount: 3}})

	var seqs []uint64
	for i := 0; i < 3; i++ {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		var frame Frame
		require.NoError(t, json.Unmarshal(line, &frame))
		seqs = append(seqs, frame.Update.Seq)
	}
	require.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestPublisherReplaysLastOnConnect(t *testing.T) {
	pub, path := startTestPublisher(t)
	pub.Publish(Update{Data: Data{ErrorCount: 42}})

	conn := dial(t, path)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(line, &frame))
	require.Equal(t, FrameInitialRender, frame.Type)
	require.EqualValues(t, 42, frame.Update.Data.ErrorCount)
}

func TestPublisherPingResendsLastPayload(t *testing.T) {
	pub, path := startTestPublisher(t)
	pub.Publish(Update{Data: Data{ErrorCount: 7}})

	conn := dial(t, path)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	// initial replay
	_, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)

	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(line, &frame))
	require.EqualValues(t, 7, frame.Update.Data.ErrorCount)
}

func TestPublisherSubscriberCount(t *testing.T) {
	pub, path := startTestPublisher(t)
	require.Equal(t, 0, pub.SubscriberCount())

	conn := dial(t, path)
	require.Eventually(t, func() bool { return pub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return pub.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}
