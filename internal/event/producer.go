package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/AddressBook/internal/domain"
	pkgkafka "github.com/utafrali/AddressBook/pkg/kafka"
	"github.com/utafrali/AddressBook/pkg/logger"
)

// Kafka topics for address domain events.
var (
	TopicAddressCreated = pkgkafka.Topic("address", "created")
	TopicAddressUpdated = pkgkafka.Topic("address", "updated")
	TopicAddressDeleted = pkgkafka.Topic("address", "deleted")
)

// Source is stamped on every event this service emits.
const Source = "addressbook/address-service"

// AddressData is the payload for address.created and address.updated.
type AddressData struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddressDeletedData is the payload for address.deleted.
type AddressDeletedData struct {
	ID int64 `json:"id"`
}

// Publisher emits address lifecycle events.
type Publisher interface {
	AddressCreated(ctx context.Context, a *domain.Address) error
	AddressUpdated(ctx context.Context, a *domain.Address) error
	AddressDeleted(ctx context.Context, id int64) error
}

// NoopPublisher discards every event. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) AddressCreated(context.Context, *domain.Address) error { return nil }
func (NoopPublisher) AddressUpdated(context.Context, *domain.Address) error { return nil }
func (NoopPublisher) AddressDeleted(context.Context, int64) error           { return nil }

// Producer publishes address domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

var _ Publisher = (*Producer)(nil)

// NewProducer creates a new event producer for the address service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// AddressCreated publishes an address.created event.
func (p *Producer) AddressCreated(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressCreated, a.ID, addressData(a))
}

// AddressUpdated publishes an address.updated event.
func (p *Producer) AddressUpdated(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressUpdated, a.ID, addressData(a))
}

// AddressDeleted publishes an address.deleted event.
func (p *Producer) AddressDeleted(ctx context.Context, id int64) error {
	return p.publish(ctx, TopicAddressDeleted, id, AddressDeletedData{ID: id})
}

func (p *Producer) publish(ctx context.Context, topic string, id int64, data any) error {
	evt, err := pkgkafka.NewEvent(topic, Source, strconv.FormatInt(id, 10), data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published address event",
		slog.String("topic", topic),
		slog.Int64("address_id", id),
	)
	return nil
}

func addressData(a *domain.Address) AddressData {
	return AddressData{
		ID:        a.ID,
		Name:      a.Name,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
		UpdatedAt: a.UpdatedAt,
	}
}
