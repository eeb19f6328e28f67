package agent

import "context"

// MessageType identifies a control message.
type MessageType string

const (
	// MessageSkipWaiting asks a waiting agent to become active now.
	MessageSkipWaiting MessageType = "SKIP_WAITING"
	// MessageClearCache deletes the agent's cache.
	MessageClearCache MessageType = "CLEAR_CACHE"
)

// Message is a control message sent by a page.
type Message struct {
	Type MessageType `json:"type"`
}

// HandleMessage reacts to a control message. Messages without a type or
// with an unknown type are ignored.
//
// CLEAR_CACHE deletes the current cache and does not recreate it; the next
// cached response opens it again.
func (a *Agent) HandleMessage(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Type == "" {
		return nil
	}

	switch msg.Type {
	case MessageSkipWaiting:
		messagesTotal.WithLabelValues(string(msg.Type)).Inc()
		return a.host.SkipWaiting(ctx, a)
	case MessageClearCache:
		messagesTotal.WithLabelValues(string(msg.Type)).Inc()
		if _, err := a.storage.Delete(ctx, a.cacheName); err != nil {
			a.logger.Error().Err(err).Msg("Clearing cache failed")
			return err
		}
		a.logger.Info().Str("cache", a.cacheName).Msg("Cache cleared")
	default:
		messagesTotal.WithLabelValues("unknown").Inc()
		a.logger.Debug().Str("type", string(msg.Type)).Msg("Ignoring unknown message")
	}
	return nil
}
