package service

import (
	"context"
	"encoding/json"
	"errors"

	"ai-docsearch-be/internal/dto"
	"ai-docsearch-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "CONSUMER"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	reconciler IReconcileService
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	reconciler IReconcileService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		reconciler: reconciler,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks; a failed repair is left to the next reconcile run.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.PublishReindexMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal reindex message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	report, err := cs.reconciler.Reconcile(ctx, payload.DocumentId)
	if errors.Is(err, ErrDocumentNotFound) {
		cs.logger.Info(consumerModule, "Document gone before reindex", map[string]interface{}{
			"document_id": payload.DocumentId.String(),
		})
		return
	}
	if err != nil {
		cs.logger.Error(consumerModule, "Reindex failed", map[string]interface{}{
			"document_id": payload.DocumentId.String(),
			"error":       err.Error(),
		})
		return
	}

	cs.logger.Info(consumerModule, "Reindex finished", map[string]interface{}{
		"document_id": payload.DocumentId.String(),
		"repaired":    report.Repaired,
		"failed":      report.Failed,
	})
}
