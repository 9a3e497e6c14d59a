package kafka

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// ServiceName is the envelope source of everything this process publishes.
const ServiceName = "substance-resolver"

// IdentifiersPayload is the body of an EventIdentifiersAcquired envelope.
type IdentifiersPayload struct {
	BatchID     string                   `json:"batch_id"`
	Identifiers []acquisition.Identifier `json:"identifiers"`
}

// AcquisitionRequest is the body of an EventAcquisitionRequested envelope.
type AcquisitionRequest struct {
	Names []string `json:"names" validate:"required,min=1,max=1000,dive,required,max=512"`
}

// Publisher abstracts Producer for the adapters below.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// IdentifierPublisher implements acquisition.Publisher on a Kafka topic.
type IdentifierPublisher struct {
	producer Publisher
	topic    string
}

// NewIdentifierPublisher publishes to topic through p.
func NewIdentifierPublisher(p Publisher, topic string) *IdentifierPublisher {
	return &IdentifierPublisher{producer: p, topic: topic}
}

// PublishIdentifiers sends one envelope per batch keyed by the batch id.
func (ip *IdentifierPublisher) PublishIdentifiers(ctx context.Context, batchID string, ids []acquisition.Identifier) error {
	env, err := NewEventEnvelope(EventIdentifiersAcquired, ServiceName, IdentifiersPayload{BatchID: batchID, Identifiers: ids})
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(ip.topic, []byte(batchID))
	if err != nil {
		return err
	}
	return ip.producer.Publish(ctx, msg)
}

// PublishRequest sends an acquisition request for names to topic.
func PublishRequest(ctx context.Context, p Publisher, topic string, names []string) (string, error) {
	req := AcquisitionRequest{Names: names}
	if err := validate.Struct(req); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeValidation, "invalid acquisition request")
	}
	env, err := NewEventEnvelope(EventAcquisitionRequested, ServiceName, req)
	if err != nil {
		return "", err
	}
	msg, err := env.ToMessage(topic, []byte(env.EventID))
	if err != nil {
		return "", err
	}
	return env.EventID, p.Publish(ctx, msg)
}

var validate = validator.New()

// NewAcquisitionHandler decodes acquisition requests and runs them through
// svc. Malformed or invalid requests are logged and dropped; only service
// failures are returned for retry.
func NewAcquisitionHandler(svc acquisition.Service, log logging.Logger) MessageHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("acquisition-handler")

	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			log.Warn("dropping undecodable message", logging.Int64("offset", msg.Offset), logging.Err(err))
			return nil
		}
		if env.EventType != EventAcquisitionRequested {
			log.Warn("dropping unexpected event type",
				logging.String("event_id", env.EventID), logging.String("event_type", env.EventType))
			return nil
		}
		var req AcquisitionRequest
		if err := env.DecodePayload(&req); err != nil {
			log.Warn("dropping malformed request", logging.String("event_id", env.EventID), logging.Err(err))
			return nil
		}
		if err := validate.Struct(req); err != nil {
			log.Warn("dropping invalid request", logging.String("event_id", env.EventID), logging.Err(err))
			return nil
		}

		batch, err := svc.Acquire(ctx, req.Names)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeValidation) {
				log.Warn("dropping request without usable names", logging.String("event_id", env.EventID))
				return nil
			}
			return err
		}
		log.Info("acquisition request handled",
			logging.String("event_id", env.EventID),
			logging.String("batch_id", batch.ID),
			logging.Int("names", len(batch.Identifiers)),
			logging.Int("found", batch.Found()),
			logging.String("names_preview", preview(req.Names)))
		return nil
	}
}

func preview(names []string) string {
	if len(names) > 3 {
		return strings.Join(names[:3], ", ") + ", ..."
	}
	return strings.Join(names, ", ")
}
