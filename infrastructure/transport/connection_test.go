package transport

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"secure-chat/codec"
	"secure-chat/domain/chat"
	"secure-chat/errors"
	"secure-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func serve(ctx context.Context, conn *Connection) <-chan error {
	done := make(chan error, 1)
	go func() { done <- conn.Serve(ctx) }()
	return done
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func readMessage(t *testing.T, peer net.Conn) chat.Message {
	t.Helper()
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(3*time.Second)))
	frame, err := codec.ReadFrame(peer)
	require.NoError(t, err)
	msg, err := codec.Decode(frame)
	require.NoError(t, err)
	return msg
}

func newPipe(t *testing.T, dispatcher *mocks.MockIDispatcher, queueSize int) (*Connection, net.Conn) {
	server, peer := net.Pipe()
	t.Cleanup(func() { _ = peer.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewConnection(log, server, dispatcher, queueSize, time.Second), peer
}

func TestConnection_DispatchesInOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 0)

	var received []chat.Message
	dispatcher.EXPECT().
		Dispatch(conn.Session(), gomock.Any()).
		Do(func(_ *chat.Session, msg chat.Message) { received = append(received, msg) }).
		Times(3)
	dispatcher.EXPECT().Disconnect(conn.Session()).Times(1)

	done := serve(context.Background(), conn)
	sent := []chat.Message{
		chat.NewLoginRequest("alice", ""),
		chat.NewText("lobby", "one"),
		chat.NewText("lobby", "two"),
	}
	for _, msg := range sent {
		req.NoError(codec.WriteFrame(peer, msg))
	}

	// When the peer closes cleanly
	req.NoError(peer.Close())

	// Then Serve returns without error after handing over every message
	req.NoError(waitServe(t, done))
	req.Equal(sent, received)
}

func TestConnection_DeliverReachesPeer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 0)
	dispatcher.EXPECT().Disconnect(gomock.Any()).Times(1)

	done := serve(context.Background(), conn)

	first := chat.NewText("lobby", "first").WithSender("bob")
	second := chat.NewPrivate("alice", "second").WithSender("bob")
	req.True(conn.Deliver(first))
	req.True(conn.Deliver(second))

	req.Equal(first, readMessage(t, peer))
	req.Equal(second, readMessage(t, peer))

	req.NoError(peer.Close())
	req.NoError(waitServe(t, done))

	// Nothing is accepted once the connection is gone
	req.False(conn.Deliver(first))
}

func TestConnection_MalformedFrameKeepsConnection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 0)
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Times(1)
	dispatcher.EXPECT().Disconnect(gomock.Any()).Times(1)

	done := serve(context.Background(), conn)

	// A corrupted body
	frame, err := codec.Encode(chat.NewText("lobby", "hello"))
	req.NoError(err)
	frame[len(frame)-2] ^= 0x20
	_, err = peer.Write(frame)
	req.NoError(err)

	reply := readMessage(t, peer)
	req.Equal(chat.Error, reply.Kind)
	req.Equal(chat.Some(string(chat.ReasonMalformedMessage)), reply.Content)

	// An unknown kind
	body := `{"type":"SHOUT","version":1,"timestamp":1,"sender":null,"recipient":null,"room":null,"content":null}`
	_, err = peer.Write(rawFrame(body))
	req.NoError(err)

	reply = readMessage(t, peer)
	req.Equal(chat.Some(string(chat.ReasonUnknownType)), reply.Content)

	// The connection still works
	req.NoError(codec.WriteFrame(peer, chat.NewText("lobby", "still here")))

	req.NoError(peer.Close())
	req.NoError(waitServe(t, done))
}

func TestConnection_OversizeFrameIsFatal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 0)
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Times(0)
	dispatcher.EXPECT().Disconnect(conn.Session()).Times(1)

	done := serve(context.Background(), conn)

	header := make([]byte, codec.HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], codec.MaxBodyLength+1)
	_, err := peer.Write(header)
	req.NoError(err)

	// Then the peer is told why before the connection goes away
	reply := readMessage(t, peer)
	req.Equal(chat.Some(string(chat.ReasonInvalidLength)), reply.Content)

	_, err = codec.ReadFrame(peer)
	req.ErrorIs(err, io.EOF)
	req.ErrorIs(waitServe(t, done), errors.ErrFrameTooLarge)
}

func TestConnection_TruncatedFrameIsFatal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 0)
	dispatcher.EXPECT().Disconnect(gomock.Any()).Times(1)

	done := serve(context.Background(), conn)

	frame, err := codec.Encode(chat.NewText("lobby", "hello"))
	req.NoError(err)
	_, err = peer.Write(frame[:codec.HeaderSize+3])
	req.NoError(err)
	req.NoError(peer.Close())

	req.ErrorIs(waitServe(t, done), io.ErrUnexpectedEOF)
}

func TestConnection_ShutdownByContext(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 0)
	dispatcher.EXPECT().Disconnect(conn.Session()).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := serve(ctx, conn)

	// When the server shuts down while the peer is idle
	cancel()

	// Then Serve returns and the peer sees the stream closed
	req.NoError(waitServe(t, done))
	// Serve has closed its end, so this read cannot block
	_, err := peer.Read(make([]byte, 1))
	req.ErrorIs(err, io.EOF)
}

func TestConnection_FullQueueDrops(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	conn, _ := newPipe(t, mocks.NewMockIDispatcher(ctrl), 2)

	// Nobody drains the queue since Serve is not running
	req.True(conn.Deliver(chat.NewText("lobby", "1")))
	req.True(conn.Deliver(chat.NewText("lobby", "2")))

	delivered := make(chan bool, 1)
	go func() { delivered <- conn.Deliver(chat.NewText("lobby", "3")) }()

	select {
	case ok := <-delivered:
		req.False(ok)
	case <-time.After(time.Second):
		req.Fail("Deliver blocked on a full queue")
	}
}

func TestConnection_SlowPeerDoesNotStallReader(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	conn, peer := newPipe(t, dispatcher, 1)
	dispatcher.EXPECT().Disconnect(gomock.Any()).Times(1)

	// Every dispatched message asks for more output than the peer reads
	dispatched := make(chan struct{}, 10)
	dispatcher.EXPECT().
		Dispatch(gomock.Any(), gomock.Any()).
		Do(func(s *chat.Session, msg chat.Message) {
			for i := 0; i < 5; i++ {
				s.Send(msg)
			}
			dispatched <- struct{}{}
		}).
		Times(10)

	done := serve(context.Background(), conn)
	for i := 0; i < 10; i++ {
		req.NoError(codec.WriteFrame(peer, chat.NewText("lobby", "flood")))
	}
	for i := 0; i < 10; i++ {
		<-dispatched
	}

	// The blocked writer fails once the peer leaves, so Serve may report it
	req.NoError(peer.Close())
	waitServe(t, done)
}

func rawFrame(body string) []byte {
	frame := make([]byte, codec.HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], codec.Checksum([]byte(body)))
	copy(frame[codec.HeaderSize:], body)
	return frame
}
