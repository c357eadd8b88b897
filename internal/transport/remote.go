package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned by calls on a closed RemoteClient.
var ErrConnectionClosed = errors.New("gateway connection closed")

// RemoteClient speaks the gateway protocol from another process. Replies
// are matched to calls by envelope id; everything else is a broadcast.
type RemoteClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope

	broadcasts chan Envelope
	done       chan struct{}
	closeOnce  sync.Once
	err        error
}

// Dial connects to the gateway websocket at url, for example
// ws://127.0.0.1:8765/ws.
func Dial(ctx context.Context, url string) (*RemoteClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	rc := &RemoteClient{
		conn:       conn,
		pending:    make(map[string]chan Envelope),
		broadcasts: make(chan Envelope, sendBufferSize),
		done:       make(chan struct{}),
	}
	go rc.readLoop()

	return rc, nil
}

func (rc *RemoteClient) readLoop() {
	defer rc.shutdown(ErrConnectionClosed)

	for {
		_, data, err := rc.conn.ReadMessage()
		if err != nil {
			rc.shutdown(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.ID == "" {
			select {
			case rc.broadcasts <- env:
			default:
			}
			continue
		}

		rc.mu.Lock()
		ch, ok := rc.pending[env.ID]
		delete(rc.pending, env.ID)
		rc.mu.Unlock()

		if ok {
			ch <- env
		}
	}
}

func (rc *RemoteClient) shutdown(err error) {
	rc.closeOnce.Do(func() {
		rc.err = err
		close(rc.done)
		_ = rc.conn.Close()
	})
}

// Call sends a request of msgType and waits for its reply envelope. Error
// replies are returned as *RemoteError.
func (rc *RemoteClient) Call(ctx context.Context, msgType string,
	payload any) (Envelope, error) {

	id := uuid.NewString()
	env, err := NewEnvelope(msgType, id, payload)
	if err != nil {
		return Envelope{}, err
	}

	reply := make(chan Envelope, 1)
	rc.mu.Lock()
	rc.pending[id] = reply
	rc.mu.Unlock()

	defer func() {
		rc.mu.Lock()
		delete(rc.pending, id)
		rc.mu.Unlock()
	}()

	if err := rc.write(env); err != nil {
		return Envelope{}, err
	}

	select {
	case resp := <-reply:
		if resp.Type == TypeError {
			_, err := DecodePayload[struct{}](resp)
			return resp, err
		}
		return resp, nil

	case <-rc.done:
		return Envelope{}, fmt.Errorf("%w: %v", ErrConnectionClosed,
			rc.err)

	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// CallInto is Call followed by decoding the reply payload into T.
func CallInto[T any](ctx context.Context, rc *RemoteClient, msgType string,
	payload any) (T, error) {

	env, err := rc.Call(ctx, msgType, payload)
	if err != nil {
		var zero T
		return zero, err
	}

	return DecodePayload[T](env)
}

func (rc *RemoteClient) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()

	_ = rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := rc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}

	return nil
}

// Broadcasts returns the feed of broadcast envelopes.
func (rc *RemoteClient) Broadcasts() <-chan Envelope {
	return rc.broadcasts
}

// Done is closed once the connection is gone.
func (rc *RemoteClient) Done() <-chan struct{} {
	return rc.done
}

// Close sends a close frame and tears the connection down.
func (rc *RemoteClient) Close() error {
	rc.writeMu.Lock()
	_ = rc.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	rc.writeMu.Unlock()

	rc.shutdown(ErrConnectionClosed)

	return nil
}
