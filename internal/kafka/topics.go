package kafka

import (
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"ms-payments/internal/logger"
)

// EnsureTopicsExist creates the payment topics if they don't already exist.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: resolve controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("kafka: dial controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			log.Error("KAFKA", fmt.Sprintf("Failed to create topic %s: %v", topic, err))
			return fmt.Errorf("kafka: create topic %s: %w", topic, err)
		}
		log.Info("KAFKA", fmt.Sprintf("Created topic %s", topic))
	}
	return nil
}
