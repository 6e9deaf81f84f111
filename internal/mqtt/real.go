package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/radar"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	bufferSize     = 256
)

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string // empty = "door-lock-<uuid>"
	Username string
	Password string
	Topics   Topics
}

// RealClient publishes to an actual MQTT broker and receives lock target
// requests and radar readings from it.
type RealClient struct {
	client   paho.Client
	topics   Topics
	log      *zap.SugaredLogger
	feed     *radar.Feed
	commands chan logic.LockCommand

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealClient connects to the broker. A broker that is down at startup is
// not fatal: the client keeps retrying in the background and buffers
// publishes until connected.
func NewRealClient(opts Options, feed *radar.Feed, log *zap.SugaredLogger) (*RealClient, error) {
	clientID := opts.ClientID
	if clientID == "" {
		u, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("generate client id: %w", err)
		}
		clientID = "door-lock-" + u.String()
	}

	c := &RealClient{
		topics:   opts.Topics,
		log:      log,
		feed:     feed,
		commands: make(chan logic.LockCommand, 8),
		buffer:   newRingBuffer(bufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt connection lost", "error", err)
		})

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warnw("mqtt broker not reachable yet, retrying in background", "broker", opts.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *RealClient) onConnect(client paho.Client) {
	c.log.Infow("mqtt connected")

	subs := map[string]paho.MessageHandler{
		c.topics.LockTargetSet:     c.handleTargetSet,
		c.topics.Radar:             c.handleRadar,
		c.topics.RadarAvailability: c.handleAvailability,
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 1, handler)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			c.log.Errorw("mqtt subscribe failed", "topic", topic, "error", token.Error())
		}
	}

	c.mu.Lock()
	pending := c.buffer.drainAll()
	c.mu.Unlock()
	if len(pending) > 0 {
		c.log.Infow("mqtt replaying buffered messages", "count", len(pending))
	}
	for _, m := range pending {
		c.send(m)
	}
}

func (c *RealClient) handleTargetSet(_ paho.Client, msg paho.Message) {
	// A retained "unlock" would reopen the door on every reconnect.
	if msg.Retained() {
		c.log.Warnw("ignoring retained lock target", "payload", string(msg.Payload()))
		return
	}
	cmd, err := ParseLockTarget(msg.Payload())
	if err != nil {
		c.log.Warnw("bad lock target", "error", err)
		return
	}
	select {
	case c.commands <- cmd:
	default:
		c.log.Warnw("lock target dropped, queue full", "target", cmd.String())
	}
}

func (c *RealClient) handleRadar(_ paho.Client, msg paho.Message) {
	s, err := radar.ParseReading(msg.Payload())
	if err != nil {
		c.log.Debugw("bad radar reading", "error", err)
		return
	}
	c.feed.Push(s, time.Now())
}

func (c *RealClient) handleAvailability(_ paho.Client, msg paho.Message) {
	c.log.Infow("radar availability", "status", string(msg.Payload()))
	c.feed.SetAvailability(string(msg.Payload()))
}

// Commands delivers lock targets requested by the accessory bridge.
func (c *RealClient) Commands() <-chan logic.LockCommand {
	return c.commands
}

// publish sends now if connected, otherwise buffers for replay.
func (c *RealClient) publish(m bufferedMsg) {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		if c.buffer.push(m) {
			c.log.Warnw("mqtt buffer full, dropping oldest", "capacity", bufferSize)
		}
		c.mu.Unlock()
		return
	}
	c.send(m)
}

// send publishes without blocking the caller; failures are logged.
func (c *RealClient) send(m bufferedMsg) {
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.log.Warnw("mqtt publish timeout", "topic", m.topic)
			return
		}
		if err := token.Error(); err != nil {
			c.log.Warnw("mqtt publish failed", "topic", m.topic, "error", err)
		}
	}()
}

// PublishLock mirrors current and target to their retained topics.
func (c *RealClient) PublishLock(current logic.LockState, target logic.LockCommand) error {
	c.publish(bufferedMsg{topic: c.topics.LockTarget, payload: []byte(FormatLockTarget(target)), qos: 1, retained: true})
	c.publish(bufferedMsg{topic: c.topics.LockCurrent, payload: []byte(FormatLockState(current)), qos: 1, retained: true})
	return nil
}

// PublishMotion mirrors the motion characteristic.
func (c *RealClient) PublishMotion(motion bool) error {
	c.publish(bufferedMsg{topic: c.topics.Motion, payload: []byte(FormatMotion(motion)), qos: 1, retained: true})
	return nil
}

// Publish sends a controller event. QoS 0 (at-most-once), not retained.
func (c *RealClient) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	c.publish(bufferedMsg{topic: c.topics.Events, payload: payload})
	return nil
}

// PublishSystem sends a system lifecycle event. QoS 1 (at-least-once).
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	c.publish(bufferedMsg{topic: c.topics.System, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
