package websocket

import (
	"context"
	"fmt"
	"go-admin-chat/internal/interfaces"
	"go-admin-chat/pkg/config"
	"go-admin-chat/pkg/logger"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaHub 在本地 Hub 之外, 把不在本实例的用户的推送通过 Kafka 转发给其他实例
type KafkaHub struct {
	*Hub

	producer   sarama.SyncProducer
	consumer   sarama.ConsumerGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	topic      string
	instanceID string
}

// 创建一个新的KafkaHub
func NewKafkaHub(wsConfig config.WebSocketConfig, msgConfig config.MessagingConfig, eventHandler interfaces.ConnectionEventHandler) (*KafkaHub, error) {
	cfg := msgConfig.Kafka
	instanceID := resolveInstanceID(msgConfig.InstanceID)

	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Consumer.Return.Errors = true
	kConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kConfig.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka producer", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	// 每个实例使用自己的消费者组, 这样每个实例都能收到全部转发
	group := fmt.Sprintf("%s_%s", cfg.ConsumerGroup, instanceID)
	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, group, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka consumer group", zap.Error(err))
		producer.Close()
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}

	return newKafkaHub(NewHub(wsConfig, eventHandler), producer, consumer, cfg.TopicPrefix, instanceID), nil
}

func newKafkaHub(hub *Hub, producer sarama.SyncProducer, consumer sarama.ConsumerGroup, topicPrefix, instanceID string) *KafkaHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaHub{
		Hub:        hub,
		producer:   producer,
		consumer:   consumer,
		ctx:        ctx,
		cancelFunc: cancel,
		topic:      fmt.Sprintf("%s_direct", topicPrefix),
		instanceID: instanceID,
	}
}

func (h *KafkaHub) Start() {
	h.Hub.Start()
	go h.consumeMessages()
}

// 关闭KafkaHub
func (h *KafkaHub) Close() error {
	h.cancelFunc()
	h.Hub.Close()

	if err := h.producer.Close(); err != nil {
		logger.L.Error("Failed to close Kafka producer", zap.Error(err))
	}
	if h.consumer != nil {
		if err := h.consumer.Close(); err != nil {
			logger.L.Error("Failed to close Kafka consumer group", zap.Error(err))
		}
	}
	return nil
}

// 本地在线直接投递, 否则发送到Kafka让其他实例投递
func (h *KafkaHub) SendToUser(userID uint, event string, payload interface{}) bool {
	return h.sendOrRelay(userID, event, payload, h.instanceID, h.publish)
}

func (h *KafkaHub) publish(data []byte) error {
	_, _, err := h.producer.SendMessage(&sarama.ProducerMessage{
		Topic: h.topic,
		Value: sarama.ByteEncoder(data),
	})
	return err
}

// 消费Kafka消息
func (h *KafkaHub) consumeMessages() {
	handler := &kafkaConsumerHandler{hub: h}
	topics := []string{h.topic}

	for {
		select {
		case <-h.ctx.Done():
			logger.L.Info("Stopping Kafka consumer")
			return
		default:
			if err := h.consumer.Consume(h.ctx, topics, handler); err != nil {
				logger.L.Error("Kafka consumer error", zap.Error(err))
				// 失败时等待一段时间再重试
				select {
				case <-time.After(5 * time.Second):
				case <-h.ctx.Done():
					return
				}
			}
		}
	}
}

// Kafka消费者处理器
type kafkaConsumerHandler struct {
	hub *KafkaHub
}

func (h *kafkaConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.hub.deliverRelayed(message.Value, h.hub.instanceID)
		// 标记消息已处理
		session.MarkMessage(message, "")
	}
	return nil
}
