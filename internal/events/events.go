// Package events 发布预订、订单、支付的状态变更事件
// 场地显示屏、通知服务等下游通过 MQTT / Kafka / RabbitMQ 订阅
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
)

// 事件驱动
const (
	DriverNone  = "none"
	DriverMQTT  = "mqtt"
	DriverKafka = "kafka"
	DriverAMQP  = "amqp"
)

// Event 状态变更事件
type Event struct {
	EntityType  string    `json:"entity_type"`
	EntityID    int64     `json:"entity_id"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	Trigger     string    `json:"trigger"`
	OrderID     *int64    `json:"order_id,omitempty"`
	CourtID     int64     `json:"court_id,omitempty"`
	BookingDate string    `json:"booking_date,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RoutingKey 路由键，如 booking.status.CANCELLED
func (e Event) RoutingKey() string {
	return e.EntityType + ".status." + e.ToStatus
}

// PartitionKey 分区键，同一实体的事件保持有序
func (e Event) PartitionKey() string {
	return e.EntityType + ":" + strconv.FormatInt(e.EntityID, 10)
}

// Encode 序列化事件
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher 事件发布器
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Driver() string
	Close() error
}

// NopPublisher 不发布任何事件
type NopPublisher struct{}

// Publish 忽略事件
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

// Driver 驱动名
func (NopPublisher) Driver() string { return DriverNone }

// Close 无需关闭
func (NopPublisher) Close() error { return nil }

// New 按配置创建发布器，ctx 只约束建立连接
func New(ctx context.Context, cfg *config.EventsConfig, log *zap.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return NopPublisher{}, nil
	case DriverMQTT:
		return NewMQTTPublisher(ctx, &cfg.MQTT, log)
	case DriverKafka:
		return NewKafkaPublisher(&cfg.Kafka), nil
	case DriverAMQP:
		return NewAMQPPublisher(&cfg.AMQP)
	default:
		return nil, fmt.Errorf("unknown events driver: %s", cfg.Driver)
	}
}

// Instrumented 为发布器记录指标与失败日志
// 发布失败不影响已提交的状态变更，调用方只需记录
type Instrumented struct {
	next    Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInstrumented 包装发布器
func NewInstrumented(next Publisher, m *metrics.Metrics, log *zap.Logger) *Instrumented {
	if next == nil {
		next = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Instrumented{next: next, metrics: m, logger: log.Named("events")}
}

// Publish 发布并记录结果
func (p *Instrumented) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	ctx, span := tracing.GetTracer().StartSpan(ctx, "events.Publish",
		tracing.AttrEventDriver.String(p.next.Driver()),
		tracing.AttrEventCount.Int(len(events)),
	)
	defer span.End()

	err := p.next.Publish(ctx, events...)
	p.metrics.RecordEventPublished(p.next.Driver(), err)
	if err != nil {
		tracing.SetError(ctx, err)
		p.logger.Warn("状态事件发布失败",
			zap.String("driver", p.next.Driver()),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
	return err
}

// Driver 驱动名
func (p *Instrumented) Driver() string {
	return p.next.Driver()
}

// Close 关闭底层发布器
func (p *Instrumented) Close() error {
	return p.next.Close()
}
