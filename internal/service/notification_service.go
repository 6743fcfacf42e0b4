package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/events"
)

// Enqueuer pushes a payload onto a named queue. persistence.Redis implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, key string, payload []byte) error
}

// NotificationService reacts to auth domain events. New registrations are
// queued onto a redis list for the downstream welcome-email sender; logins
// are only logged. Enqueue failures never propagate back into auth flows.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      Enqueuer
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue Enqueuer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventUserLoggedIn, n.handleUserLoggedIn)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.String("user_id", event.UserID), zap.String("event_id", event.ID))
	n.enqueueWelcomeEmail(ctx, event)
	return nil
}

func (n *NotificationService) handleUserLoggedIn(_ context.Context, event events.Event) error {
	n.logger.Info("UserLoggedIn", zap.String("user_id", event.UserID), zap.String("event_id", event.ID))
	return nil
}

func (n *NotificationService) enqueueWelcomeEmail(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || n.queue == nil {
		return
	}

	job, err := json.Marshal(map[string]any{
		"event_id": event.ID,
		"from":     n.cfg.EmailFrom,
		"payload":  event.Payload,
	})
	if err != nil {
		n.logger.Error("marshal welcome email job", zap.Error(err))
		return
	}

	if err := n.queue.Enqueue(ctx, n.cfg.QueueKey, job); err != nil {
		n.logger.Warn("enqueue welcome email", zap.Error(err), zap.String("event_id", event.ID))
	}
}
