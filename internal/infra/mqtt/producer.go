package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"bmschain-logger/internal/config"
	"bmschain-logger/internal/infra/mq"
)

const disconnectQuiesceMs = 250

// FrameProducer 将帧发布到 <topic>/chainN.devM
type FrameProducer struct {
	client paho.Client
	cfg    config.MQTTConfig
	logger *zap.Logger
}

var _ mq.Producer = (*FrameProducer)(nil)

func clientOptions(cfg config.MQTTConfig, logger *zap.Logger) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetMaxReconnectInterval(time.Minute).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetWriteTimeout(10 * time.Second).
		SetCleanSession(true)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
	})
	return opts
}

// NewFrameProducer 发起连接 (失败时后台重试), 不阻塞
func NewFrameProducer(cfg config.MQTTConfig, logger *zap.Logger) *FrameProducer {
	p := &FrameProducer{
		client: paho.NewClient(clientOptions(cfg, logger)),
		cfg:    cfg,
		logger: logger,
	}
	p.client.Connect()
	return p
}

func (p *FrameProducer) topic(topic, key string) string {
	if p.cfg.Topic != "" {
		topic = p.cfg.Topic
	}
	return mq.JoinTopic(topic, key, "/")
}

func (p *FrameProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("MQTT not connected")
	}

	body, err := mq.Encode(data)
	if err != nil {
		return err
	}

	t := p.topic(topic, key)
	token := p.client.Publish(t, p.cfg.QoS, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published message to MQTT", zap.String("topic", t))
	return nil
}

func (p *FrameProducer) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
