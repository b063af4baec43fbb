package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"envscope/internal/config"
	"envscope/internal/modules/analysis/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	recordQoS      = byte(1)
	publishTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt: not connected")

// RecordMessage is the retained payload published for a session's current record.
type RecordMessage struct {
	SessionID   string                     `json:"sessionId"`
	PublishedAt time.Time                  `json:"publishedAt"`
	Record      *types.EnvironmentalRecord `json:"record"`
}

// Publisher mirrors extracted records to the broker so external viewers can
// follow a session's scene.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWriteTimeout(publishTimeout)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits until the broker accepts the connection or ctx is done. When
// ctx ends first the client keeps retrying in the background and publishing
// starts once it connects.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// RecordTopic is where records for sessionID are published.
func (p *Publisher) RecordTopic(sessionID string) string {
	prefix := strings.TrimRight(p.cfg.MQTTTopicPrefix, "/")
	return prefix + "/sessions/" + sessionID + "/record"
}

func (p *Publisher) Name() string { return "mqtt" }

// RecordExtracted publishes rec as the retained record of sessionID.
func (p *Publisher) RecordExtracted(ctx context.Context, sessionID string, rec *types.EnvironmentalRecord) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(RecordMessage{
		SessionID:   sessionID,
		PublishedAt: time.Now().UTC(),
		Record:      rec,
	})
	if err != nil {
		return fmt.Errorf("encode record message: %w", err)
	}

	topic := p.RecordTopic(sessionID)
	token := p.client.Publish(topic, recordQoS, true, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("record published", "topic", topic, "size", len(payload))
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
