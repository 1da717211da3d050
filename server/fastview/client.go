package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The rate at which updates are sent to the client, so as not to overburden it.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of lost pings to tolerate before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes updates unidirectionally to a web client via websocket.
// Items on the updates chan must be idempotent: an update received while the
// previous one is still within the publication window replaces it, and only the
// latest is sent.
type Client[T any] struct {
	updates  <-chan T
	ws       *websock
	rootCtx  context.Context
	lastPong atomic.Int64
}

// NewClient upgrades the request to a websocket. The client stops syncing when ctx is done.
func NewClient[T any](
	ctx context.Context,
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	// The upgrader writes the http error response itself.
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client[T]{
		updates: updates,
		ws:      newWebSocket(ws),
		rootCtx: ctx,
	}, nil
}

// Sync publishes incoming updates to the client until it disconnects, the
// updates chan closes, or the root context is done. The socket is closed on return.
// Sync returns nil upon orderly shutdown or the unexpected error that ended it.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		err := cli.publish(groupCtx)
		if err == nil {
			// Nothing more to send, so hang up rather than idle.
			err = errHangup
		}
		return err
	})
	// Closing the socket unblocks the reader.
	group.Go(func() error {
		<-groupCtx.Done()
		cli.ws.Close()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, errHangup) {
		return err
	}
	return nil
}

// errHangup ends a sync in an orderly way: the peer closed or the updates ran out.
var errHangup = errors.New("hangup")

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// pingPong runs the client liveness check. It requires readMessages to run,
// since the pong handler is called from the read loop.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	cli.lastPong.Store(time.Now().UnixNano())
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		cli.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(time.Unix(0, cli.lastPong.Load())) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				err = fmt.Errorf("ping failed: %T %w", err, err)
			}
			return
		})
}

// readMessages drains messages from the client. Errors returned by websocket
// reads are permanent, so any error triggers full teardown.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if ctx.Err() != nil {
			return nil
		}
		if isClosure(err) {
			return errHangup
		}
		if err != nil {
			return err
		}
	}
}

// publish sends the latest pending update once per pubResolution.
func (cli *Client[T]) publish(ctx context.Context) error {
	var (
		pending T
		dirty   bool
	)
	ticker := channerics.NewTicker(ctx.Done(), pubResolution)
	updates := cli.updates
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				// Flush what remains, then finish.
				if dirty {
					return cli.send(ctx, pending)
				}
				return nil
			}
			pending, dirty = update, true
		case <-ticker:
			if !dirty {
				break
			}
			if err := cli.send(ctx, pending); err != nil {
				return err
			}
			dirty = false
		}
	}
}

func (cli *Client[T]) send(ctx context.Context, update T) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				return fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
			}
			if writeErr = ws.WriteJSON(update); writeErr != nil {
				writeErr = fmt.Errorf("publish failed: %T %w", writeErr, writeErr)
			}
			return
		})
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline  = time.Second
	writeDeadline = time.Second
)

// websock serializes reads and writes to the websocket, which allows only one
// concurrent reader and one concurrent writer.
type websock struct {
	// These are merely mutexes, but channel semantics allow a timeout.
	readSem  chan struct{}
	writeSem chan struct{}
	closed   atomic.Bool
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket, for setup such as adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame if the writer is free and closes the connection.
// A blocked reader returns with an error. Only the first call has an effect.
func (sock *websock) Close() {
	if !sock.closed.CompareAndSwap(false, true) {
		return
	}
	select {
	case sock.writeSem <- struct{}{}:
		_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = sock.ws.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-sock.writeSem
	case <-time.After(writeDeadline):
	}
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
