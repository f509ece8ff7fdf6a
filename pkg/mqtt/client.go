// Package mqtt 场地状态消息的 MQTT 发布端
package mqtt

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// 断开时等待未完成发布的毫秒数
const disconnectQuiesce = 250

// ErrNotConnected 客户端未建立连接
var ErrNotConnected = stderrors.New("mqtt: not connected")

// Config 连接参数
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	Retained       bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

// Client 只发布不订阅
type Client struct {
	cfg    Config
	conn   paho.Client
	logger *zap.Logger
}

// Dial 连接 Broker，ctx 取消时放弃等待
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{cfg: cfg, logger: log.Named("mqtt").With(zap.String("broker", cfg.Broker))}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(cfg.AutoReconnect).
		SetOnConnectHandler(func(paho.Client) { c.logger.Info("MQTT connected") }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.logger.Warn("MQTT connection lost", zap.Error(err)) }).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) { c.logger.Info("MQTT reconnecting") })

	c.conn = paho.NewClient(opts)
	if err := wait(ctx, c.conn.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return c, nil
}

// Publish 以配置的 QoS 发布一条消息
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c == nil || c.conn == nil || !c.conn.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := wait(ctx, c.conn.Publish(topic, c.cfg.QoS, c.cfg.Retained, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Close 断开连接，可重复调用
func (c *Client) Close() {
	if c == nil || c.conn == nil || !c.conn.IsConnected() {
		return
	}
	c.conn.Disconnect(disconnectQuiesce)
	c.logger.Info("MQTT disconnected")
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
