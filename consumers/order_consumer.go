package consumers

import (
	"context"
	"encoding/json"
	"log"

	"storefront/config"
	"storefront/models"
	"storefront/services"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartOrderConsumer consumes order lifecycle events from the main queue and
// dead letters from the DLQ. Payment-check events cancel orders that are
// still unpaid and return their stock.
func StartOrderConsumer(ch *amqp.Channel, cfg *config.Config, orders *services.OrderService) {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"storefront", // consumer tag
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to register consumer: %v", err)
	}

	go func() {
		for msg := range msgs {
			processOrderMessage(msg, orders)
		}
	}()

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"storefront-dlq", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		log.Printf("Failed to register DLQ consumer: %v", err)
		return
	}

	go func() {
		for msg := range dlqMsgs {
			processDeadLetterMessage(msg)
		}
	}()
}

func processOrderMessage(msg amqp.Delivery, orders *services.OrderService) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in message processing: %v", r)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.Printf("Invalid event payload: %s", msg.Body)
		// Reject without requeue; the DLX picks it up.
		if err := msg.Nack(false, false); err != nil {
			log.Printf("Failed to nack message: %v", err)
		}
		return
	}

	log.Printf("Processing order event: ID=%d, Type=%s", event.OrderID, event.Type)

	switch event.Type {
	case "created":
		handleOrderCreated(event)
	case "status_updated":
		handleStatusUpdated(event)
	case "payment_check":
		handlePaymentCheck(event, orders)
	default:
		log.Printf("Unknown event type: %s", event.Type)
	}

	if err := msg.Ack(false); err != nil {
		log.Printf("Failed to ack message: %v", err)
	}
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.Printf("Received dead letter: %s", msg.Body)
	if err := msg.Ack(false); err != nil {
		log.Printf("Failed to ack dead letter: %v", err)
	}
}

func handleOrderCreated(event models.OrderEvent) {
	log.Printf("Order %d created for user %d, total %s", event.OrderID, event.UserID, event.Total)
}

func handleStatusUpdated(event models.OrderEvent) {
	switch event.Status {
	case models.OrderStatusShipped:
		// TODO: shipping notifications once the notification service exists.
	case models.OrderStatusCancelled:
		log.Printf("Order %d cancelled", event.OrderID)
	}
	log.Printf("Handling status update for order %d: %s", event.OrderID, event.Status)
}

func handlePaymentCheck(event models.OrderEvent, orders *services.OrderService) {
	cancelled, err := orders.CancelIfUnpaid(context.Background(), event.OrderID)
	if err != nil {
		log.Printf("Payment check failed for order %d: %v", event.OrderID, err)
		return
	}
	if cancelled {
		log.Printf("Auto-cancelled order %d due to non-payment", event.OrderID)
	}
}
