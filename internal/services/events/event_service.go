package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
)

// Service is an in-process event bus. Each session owns one instance,
// so subscriptions never leak across sessions.
type Service struct {
	mu          sync.RWMutex
	subscribers map[interfaces.EventType]map[string]interfaces.EventHandler
	nextID      uint64
	logger      arbor.ILogger
	closed      bool
}

// NewService creates an event bus scoped to a single session.
func NewService(logger arbor.ILogger) interfaces.EventService {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		subscribers: make(map[interfaces.EventType]map[string]interfaces.EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler and returns the subscription id used
// to remove it later.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("event bus is closed")
	}

	s.nextID++
	id := "sub-" + strconv.FormatUint(s.nextID, 10)

	if s.subscribers[eventType] == nil {
		s.subscribers[eventType] = make(map[string]interfaces.EventHandler)
	}
	s.subscribers[eventType][id] = handler

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Str("subscription_id", id).
		Msg("Subscribed to event")

	return id, nil
}

// Unsubscribe removes the subscription with the given id. Removing an
// unknown id is not an error.
func (s *Service) Unsubscribe(eventType interfaces.EventType, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handlers := s.subscribers[eventType]
	if _, ok := handlers[subscriptionID]; !ok {
		return nil
	}
	delete(handlers, subscriptionID)
	if len(handlers) == 0 {
		delete(s.subscribers, eventType)
	}

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Str("subscription_id", subscriptionID).
		Msg("Unsubscribed from event")

	return nil
}

// Publish delivers the event to all subscribers asynchronously. Handler
// errors are logged, never propagated to the publisher.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	handlers := s.snapshotHandlers(event.Type)
	if len(handlers) == 0 {
		return nil
	}

	s.logger.Trace().
		Str("event_type", string(event.Type)).
		Int("subscribers", len(handlers)).
		Msg("Publishing event")

	for id, handler := range handlers {
		h := handler
		subID := id
		go func() {
			if err := h(ctx, event); err != nil {
				s.logger.Warn().
					Err(err).
					Str("event_type", string(event.Type)).
					Str("subscription_id", subID).
					Msg("Event handler failed")
			}
		}()
	}

	return nil
}

// PublishSync delivers the event to all subscribers and waits for every
// handler to finish. Returns the first handler error encountered.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers := s.snapshotHandlers(event.Type)
	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))

	for _, handler := range handlers {
		h := handler
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return fmt.Errorf("event handler error: %w", err)
		}
	}
	return nil
}

// Close drops all subscriptions. Further Subscribe calls fail; Publish
// becomes a no-op.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.subscribers = make(map[interfaces.EventType]map[string]interfaces.EventHandler)
	return nil
}

// snapshotHandlers copies the handler set for a type so delivery runs
// without holding the lock.
func (s *Service) snapshotHandlers(eventType interfaces.EventType) map[string]interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.subscribers[eventType]
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]interfaces.EventHandler, len(src))
	for id, h := range src {
		out[id] = h
	}
	return out
}
