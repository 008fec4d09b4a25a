// internal/events/kafka/publisher.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alphapay/billing-dispatcher/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const sentTopic = "billing.transaction_sent"

// Publisher forwards TransactionSent events to Kafka so downstream
// reconciliation can confirm them against processor callbacks.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewPublisher(brokers []string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        sentTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger.Named("kafka"),
	}
}

type transactionSentMessage struct {
	RecordID       uint      `json:"record_id"`
	TransactionID  string    `json:"transaction_id"`
	SrcBankAccount string    `json:"src_bank_account"`
	DstBankAccount string    `json:"dst_bank_account"`
	Amount         string    `json:"amount"`
	Direction      string    `json:"direction"`
	SentAt         time.Time `json:"sent_at"`
}

// Handle implements events.Handler for TransactionSent events.
func (p *Publisher) Handle(ctx context.Context, event events.Event) error {
	sent, ok := event.(*events.TransactionSentEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.Type())
	}

	data, err := json.Marshal(transactionSentMessage{
		RecordID:       sent.RecordID,
		TransactionID:  sent.TransactionID,
		SrcBankAccount: sent.SrcBankAccount,
		DstBankAccount: sent.DstBankAccount,
		Amount:         sent.Amount.String(),
		Direction:      string(sent.Direction),
		SentAt:         sent.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("marshal transaction sent message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sent.TransactionID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", sentTopic, err)
	}

	p.logger.Debug("Published transaction sent event",
		zap.String("transaction_id", sent.TransactionID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ events.Handler = (*Publisher)(nil)
