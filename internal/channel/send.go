package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boardsync/boardsync/internal/event"
	"github.com/boardsync/boardsync/internal/logging"
	"github.com/boardsync/boardsync/internal/metrics"
	"github.com/boardsync/boardsync/internal/model"
	"github.com/google/uuid"
)

// SendMessage performs the request/acknowledge round trip for an outbound
// chat message. The caller blocks until the server replies with the
// persisted message or a failure; there is exactly one outcome per call.
// With no live channel it fails immediately with ErrChannelUnavailable and
// has no side effects; the core never queues.
func (m *Manager) SendMessage(ctx context.Context, conversationID, content string) (*model.Message, error) {
	m.mu.Lock()
	if m.state != Connected || m.sock == nil {
		m.mu.Unlock()
		return nil, ErrChannelUnavailable
	}
	sock := m.sock
	id := uuid.New().String()
	ackCh := make(chan event.SendAck, 1)
	m.pending[id] = ackCh
	m.mu.Unlock()

	payload, err := json.Marshal(event.SendRequest{ConversationID: conversationID, Content: content})
	if err != nil {
		m.dropPending(id)
		return nil, err
	}

	start := time.Now()
	if err := m.write(event.Frame{Event: event.EventSendMessage, ID: id, Payload: payload}, sock); err != nil {
		m.dropPending(id)
		metrics.IncSendFailure()
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	timer := time.NewTimer(m.opts.SendTimeout)
	defer timer.Stop()
	select {
	case ack := <-ackCh:
		metrics.ObserveSendDuration(time.Since(start).Seconds())
		if !ack.Success || ack.Message == nil {
			metrics.IncSendFailure()
			if ack.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrSendFailed, ack.Error)
			}
			return nil, ErrSendFailed
		}
		metrics.IncSendSuccess()
		return ack.Message, nil
	case <-timer.C:
		m.dropPending(id)
		metrics.IncSendFailure()
		return nil, ErrSendTimeout
	case <-ctx.Done():
		m.dropPending(id)
		return nil, ctx.Err()
	}
}

// JoinConversation asks the server to route the conversation's live events
// to this session. Fire-and-forget.
func (m *Manager) JoinConversation(conversationID string) {
	m.fireAndForget(event.EventJoinConversation, conversationID)
}

// TypingStart emits a typing presence signal for the conversation. One-way,
// best-effort, no acknowledgment and no retry.
func (m *Manager) TypingStart(conversationID string) {
	m.fireAndForget(event.EventTypingStart, conversationID)
}

// TypingStop emits a stop-typing presence signal. Rapid start/stop pairs are
// sent as-is; the client never coalesces, last signal wins server-side.
func (m *Manager) TypingStop(conversationID string) {
	m.fireAndForget(event.EventTypingStop, conversationID)
}

func (m *Manager) fireAndForget(name, conversationID string) {
	m.mu.Lock()
	if m.state != Connected || m.sock == nil {
		m.mu.Unlock()
		return
	}
	sock := m.sock
	m.mu.Unlock()

	payload, err := json.Marshal(event.ConversationRef{ConversationID: conversationID})
	if err != nil {
		return
	}
	if err := m.write(event.Frame{Event: name, Payload: payload}, sock); err != nil {
		log := logging.Component("channel")
		log.Debug().Err(err).Str("event", name).Msg("best-effort signal dropped")
	}
}

// write serializes frame writes; a websocket connection supports only one
// concurrent writer.
func (m *Manager) write(f event.Frame, sock Socket) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return sock.WriteJSON(f)
}

func (m *Manager) dropPending(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}
