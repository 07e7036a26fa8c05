package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bmschain-logger/internal/config"
	"bmschain-logger/internal/infra/mq"
)

// FrameProducer 将帧写入 Kafka。
// 按键 (chainN.devM) 哈希分区, 同一设备的帧在分区内保持顺序。
type FrameProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
	topic  string
}

var _ mq.Producer = (*FrameProducer)(nil)

func NewFrameProducer(cfg config.KafkaConfig, logger *zap.Logger) *FrameProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("Initialized Kafka producer", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))

	return &FrameProducer{
		writer: w,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// message 构造 Kafka 消息; topic 为空时使用配置中的默认主题
func (p *FrameProducer) message(topic, key string, body []byte) kafka.Message {
	if topic == "" {
		topic = p.topic
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
	}
}

func (p *FrameProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	body, err := mq.Encode(data)
	if err != nil {
		return err
	}

	msg := p.message(topic, key, body)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to produce message to Kafka", zap.Error(err), zap.String("topic", msg.Topic))
		return err
	}

	p.logger.Debug("Produced message to Kafka", zap.String("topic", msg.Topic), zap.String("key", key))
	return nil
}

func (p *FrameProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
