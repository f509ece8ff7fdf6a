package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/pkg/mqtt"
)

// mqttClient MQTT 发布能力
type mqttClient interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// MQTTPublisher 向场地主题发布事件
// 主题：{prefix}courts/{court_id}/{entity_type}，无场地的事件发往 {prefix}{entity_type}
type MQTTPublisher struct {
	client      mqttClient
	topicPrefix string
}

// NewMQTTPublisher 连接 Broker 并创建发布器
func NewMQTTPublisher(ctx context.Context, cfg *config.MQTTConfig, log *zap.Logger) (*MQTTPublisher, error) {
	client, err := mqtt.Dial(ctx, mqtt.Config{
		Broker:         cfg.Broker,
		ClientID:       cfg.ClientIDPrefix + uuid.NewString()[:8],
		Username:       cfg.Username,
		Password:       cfg.Password,
		QoS:            cfg.QoS,
		Retained:       cfg.Retained,
		KeepAlive:      cfg.KeepAlive,
		ConnectTimeout: cfg.ConnectTimeout,
		AutoReconnect:  cfg.AutoReconnect,
	}, log)
	if err != nil {
		return nil, err
	}
	return newMQTTPublisher(client, cfg.TopicPrefix), nil
}

func newMQTTPublisher(client mqttClient, topicPrefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix}
}

// Topic 事件主题
func (p *MQTTPublisher) Topic(e Event) string {
	if e.CourtID == 0 {
		return p.topicPrefix + e.EntityType
	}
	return p.topicPrefix + "courts/" + strconv.FormatInt(e.CourtID, 10) + "/" + e.EntityType
}

// Publish 逐条发布
func (p *MQTTPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		payload, err := e.Encode()
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.RoutingKey(), err)
		}
		if err := p.client.Publish(ctx, p.Topic(e), payload); err != nil {
			return fmt.Errorf("publish %s: %w", e.RoutingKey(), err)
		}
	}
	return nil
}

// Driver 驱动名
func (p *MQTTPublisher) Driver() string { return DriverMQTT }

// Close 断开连接
func (p *MQTTPublisher) Close() error {
	p.client.Close()
	return nil
}
