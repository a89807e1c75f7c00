package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/joefazee/categorias/app/categories"
	"github.com/joefazee/categorias/internal/cache"
	"github.com/joefazee/categorias/internal/logger"
)

// Subscriber applies membership events from a Redis channel to the category
// hooks. Each event id is claimed before dispatch so a redelivered event is
// applied at most once. A failed dispatch releases the claim.
type Subscriber struct {
	client *redis.Client
	hooks  categories.MembershipHooks
	claims cache.Cache[string]
	config Config
	logger logger.Logger
}

func NewSubscriber(client *redis.Client, hooks categories.MembershipHooks, claims cache.Cache[string], config Config, log logger.Logger) *Subscriber {
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.With(logger.Fields{"component": "membership"})
	return &Subscriber{
		client: client,
		hooks:  hooks,
		claims: claims,
		config: config,
		logger: log,
	}
}

// Run listens on the configured channel until ctx is cancelled. Failed events
// are logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.config.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("membership: subscribe %s: %w", s.config.Channel, err)
	}
	s.logger.Info("membership subscriber listening", map[string]interface{}{
		"channel": s.config.Channel,
	})

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, []byte(msg.Payload)); err != nil {
				s.logger.Error(err, map[string]interface{}{"channel": msg.Channel})
			}
		}
	}
}

// Handle decodes one payload and applies it. A duplicate returns nil.
func (s *Subscriber) Handle(ctx context.Context, payload []byte) error {
	event, err := Decode(payload)
	if err != nil {
		return err
	}

	key := event.claimKey()
	claimed, err := s.claims.SetNX(ctx, key, string(event.Type), s.config.DedupeTTL)
	if err != nil {
		return fmt.Errorf("membership: claim event %s: %w", event.ID, err)
	}
	if !claimed {
		s.logger.Debug("duplicate membership event dropped", map[string]interface{}{
			"event_id": event.ID.String(),
			"type":     string(event.Type),
		})
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if releaseErr := s.claims.Delete(ctx, key); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
		return fmt.Errorf("membership: %s %s: %w", event.Type, event.ID, err)
	}
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventPostAttached:
		_, err := s.hooks.AttachPost(ctx, event.PostID, event.CategoryID)
		return err
	case EventPostDetached:
		_, err := s.hooks.DetachPost(ctx, event.PostID, event.CategoryID)
		return err
	case EventPostSaved:
		return s.hooks.SavePost(ctx, event.Post)
	case EventPostDeleted:
		return s.hooks.DeletePost(ctx, event.PostID)
	}
	return ErrMalformedEvent
}

// Publisher is the content side of the channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
