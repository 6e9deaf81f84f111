// Package config loads daemon settings from flags, DOORLOCK_* environment
// variables, an optional config file and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/door-lock/internal/gpio"
	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/mqtt"
	"github.com/sweeney/door-lock/internal/status"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "DOORLOCK"

// Keys double as flag names.
const (
	KeyConfigFile     = "config"
	KeyPinRelay       = "pin-relay"
	KeyPinButton      = "pin-button"
	KeyPinBuzzer      = "pin-buzzer"
	KeyPoll           = "poll"
	KeySampleInterval = "sample-interval"
	KeyHoldOver       = "hold-over"
	KeyProximityCm    = "proximity-cm"
	KeyCooldown       = "cooldown"
	KeyOpenDuration   = "open-duration"
	KeyMaxOn          = "max-on"
	KeyDebounce       = "debounce"
	KeyLongPress      = "long-press"
	KeyDoublePress    = "double-press"
	KeyHeartbeat      = "heartbeat"
	KeyRadarStale     = "radar-stale"
	KeyBroker         = "broker"
	KeyUsername       = "mqtt-user"
	KeyPassword       = "mqtt-password"
	KeyClientID       = "mqtt-client-id"
	KeyTopicPrefix    = "topic-prefix"
	KeyRadarTopic     = "radar-topic"
	KeyHTTPAddr       = "http"
	KeyAuditPath      = "audit-db"
	KeyBuzzer         = "buzzer"
	KeyPrintState     = "print-state"
)

// Config is the full daemon configuration. Values are fixed for the
// lifetime of the process.
type Config struct {
	PinRelay  int
	PinButton int
	PinBuzzer int

	Poll           time.Duration
	SampleInterval time.Duration
	HoldOver       time.Duration
	ProximityCm    uint32
	Cooldown       time.Duration
	OpenDuration   time.Duration
	MaxOn          time.Duration
	Debounce       time.Duration
	LongPress      time.Duration
	DoublePress    time.Duration
	Heartbeat      time.Duration
	RadarStale     time.Duration

	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	RadarTopic  string

	HTTPAddr   string
	AuditPath  string
	Buzzer     bool
	PrintState bool
}

// Defaults returns the reference configuration.
func Defaults() Config {
	return Config{
		PinRelay:       gpio.DefaultPinRelay,
		PinButton:      gpio.DefaultPinButton,
		PinBuzzer:      gpio.DefaultPinBuzzer,
		Poll:           20 * time.Millisecond,
		SampleInterval: 2 * time.Second,
		HoldOver:       60 * time.Second,
		ProximityCm:    50,
		Cooldown:       7 * time.Second,
		OpenDuration:   3 * time.Second,
		MaxOn:          5 * time.Second,
		Debounce:       40 * time.Millisecond,
		LongPress:      2 * time.Second,
		DoublePress:    300 * time.Millisecond,
		Heartbeat:      15 * time.Minute,
		RadarStale:     10 * time.Second,
		Broker:         "tcp://192.168.1.200:1883",
		TopicPrefix:    mqtt.DefaultPrefix,
		RadarTopic:     mqtt.DefaultRadarTopic,
		HTTPAddr:       ":80",
		AuditPath:      "/var/lib/door-lock/audit.db",
		Buzzer:         true,
	}
}

// RegisterFlags defines every flag on fs and binds it into v.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	d := Defaults()

	fs.String(KeyConfigFile, "", "Optional config file (yaml, toml or json)")
	fs.Int(KeyPinRelay, d.PinRelay, "BCM pin number for the lock relay")
	fs.Int(KeyPinButton, d.PinButton, "BCM pin number for the push button")
	fs.Int(KeyPinBuzzer, d.PinBuzzer, "BCM pin number for the buzzer")
	fs.Duration(KeyPoll, d.Poll, "Poll interval")
	fs.Duration(KeySampleInterval, d.SampleInterval, "Minimum spacing of accepted radar samples")
	fs.Duration(KeyHoldOver, d.HoldOver, "How long motion is held after the last detection")
	fs.Uint32(KeyProximityCm, d.ProximityCm, "Moving targets nearer than this auto-open the door")
	fs.Duration(KeyCooldown, d.Cooldown, "Minimum spacing between proximity auto-opens")
	fs.Duration(KeyOpenDuration, d.OpenDuration, "How long the relay is energized per open cycle")
	fs.Duration(KeyMaxOn, d.MaxOn, "Relay watchdog limit")
	fs.Duration(KeyDebounce, d.Debounce, "Button debounce")
	fs.Duration(KeyLongPress, d.LongPress, "Hold time for a long press (restart)")
	fs.Duration(KeyDoublePress, d.DoublePress, "Window for a second press")
	fs.Duration(KeyHeartbeat, d.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.Duration(KeyRadarStale, d.RadarStale, "Radar is considered disconnected after this long without a reading")
	fs.String(KeyBroker, d.Broker, "MQTT broker address")
	fs.String(KeyUsername, "", "MQTT username")
	fs.String(KeyPassword, "", "MQTT password")
	fs.String(KeyClientID, "", "MQTT client id (default door-lock-<uuid>)")
	fs.String(KeyTopicPrefix, d.TopicPrefix, "Topic prefix for lock topics")
	fs.String(KeyRadarTopic, d.RadarTopic, "Topic the radar node publishes readings to")
	fs.String(KeyHTTPAddr, d.HTTPAddr, "HTTP status address (empty to disable)")
	fs.String(KeyAuditPath, d.AuditPath, "SQLite access log path (empty to disable)")
	fs.Bool(KeyBuzzer, d.Buzzer, "Play buzzer cues")
	fs.Bool(KeyPrintState, false, "Print current button state and exit")

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

// Load reads the optional config file and resolves the final Config.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := Config{
		PinRelay:       v.GetInt(KeyPinRelay),
		PinButton:      v.GetInt(KeyPinButton),
		PinBuzzer:      v.GetInt(KeyPinBuzzer),
		Poll:           v.GetDuration(KeyPoll),
		SampleInterval: v.GetDuration(KeySampleInterval),
		HoldOver:       v.GetDuration(KeyHoldOver),
		ProximityCm:    v.GetUint32(KeyProximityCm),
		Cooldown:       v.GetDuration(KeyCooldown),
		OpenDuration:   v.GetDuration(KeyOpenDuration),
		MaxOn:          v.GetDuration(KeyMaxOn),
		Debounce:       v.GetDuration(KeyDebounce),
		LongPress:      v.GetDuration(KeyLongPress),
		DoublePress:    v.GetDuration(KeyDoublePress),
		Heartbeat:      v.GetDuration(KeyHeartbeat),
		RadarStale:     v.GetDuration(KeyRadarStale),
		Broker:         v.GetString(KeyBroker),
		Username:       v.GetString(KeyUsername),
		Password:       v.GetString(KeyPassword),
		ClientID:       v.GetString(KeyClientID),
		TopicPrefix:    v.GetString(KeyTopicPrefix),
		RadarTopic:     v.GetString(KeyRadarTopic),
		HTTPAddr:       v.GetString(KeyHTTPAddr),
		AuditPath:      v.GetString(KeyAuditPath),
		Buzzer:         v.GetBool(KeyBuzzer),
		PrintState:     v.GetBool(KeyPrintState),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks bounds. All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		KeyPoll:           c.Poll,
		KeySampleInterval: c.SampleInterval,
		KeyHoldOver:       c.HoldOver,
		KeyOpenDuration:   c.OpenDuration,
		KeyMaxOn:          c.MaxOn,
		KeyLongPress:      c.LongPress,
		KeyDoublePress:    c.DoublePress,
		KeyRadarStale:     c.RadarStale,
	}
	for _, k := range []string{KeyPoll, KeySampleInterval, KeyHoldOver, KeyOpenDuration, KeyMaxOn, KeyLongPress, KeyDoublePress, KeyRadarStale} {
		if positive[k] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", k, positive[k]))
		}
	}
	if c.Cooldown < 0 || c.Debounce < 0 || c.Heartbeat < 0 {
		errs = append(errs, errors.New("cooldown, debounce and heartbeat must not be negative"))
	}
	if c.MaxOn > gpio.MaxOnLimit {
		errs = append(errs, fmt.Errorf("%s must be at most %v, got %v", KeyMaxOn, gpio.MaxOnLimit, c.MaxOn))
	}
	if c.OpenDuration > c.MaxOn {
		errs = append(errs, fmt.Errorf("%s (%v) exceeds %s (%v)", KeyOpenDuration, c.OpenDuration, KeyMaxOn, c.MaxOn))
	}
	if c.DoublePress >= c.LongPress {
		errs = append(errs, fmt.Errorf("%s (%v) must be shorter than %s (%v)", KeyDoublePress, c.DoublePress, KeyLongPress, c.LongPress))
	}
	if c.ProximityCm == 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyProximityCm))
	}
	pins := map[int]string{}
	for _, p := range []struct {
		key string
		pin int
	}{{KeyPinRelay, c.PinRelay}, {KeyPinButton, c.PinButton}, {KeyPinBuzzer, c.PinBuzzer}} {
		if p.pin < 0 || p.pin > 27 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", p.key, p.pin))
		}
		if other, dup := pins[p.pin]; dup {
			errs = append(errs, fmt.Errorf("%s and %s share pin %d", other, p.key, p.pin))
		}
		pins[p.pin] = p.key
	}
	if c.Broker == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyBroker))
	}
	if c.TopicPrefix == "" || c.RadarTopic == "" {
		errs = append(errs, errors.New("topic prefix and radar topic are required"))
	}
	return errors.Join(errs...)
}

// Logic returns the controller timings.
func (c Config) Logic() logic.Config {
	return logic.Config{
		ButtonPin:         c.PinButton,
		SampleInterval:    c.SampleInterval,
		HoldOver:          c.HoldOver,
		ProximityCm:       c.ProximityCm,
		AutoOpenCooldown:  c.Cooldown,
		OpenDuration:      c.OpenDuration,
		Debounce:          c.Debounce,
		LongPress:         c.LongPress,
		DoublePressWindow: c.DoublePress,
	}
}

// Status returns the subset shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		PollMs:       c.Poll.Milliseconds(),
		DebounceMs:   c.Debounce.Milliseconds(),
		HeartbeatMs:  c.Heartbeat.Milliseconds(),
		OpenMs:       c.OpenDuration.Milliseconds(),
		CooldownMs:   c.Cooldown.Milliseconds(),
		HoldOverMs:   c.HoldOver.Milliseconds(),
		ProximityCm:  c.ProximityCm,
		Broker:       c.Broker,
		HTTPPort:     c.HTTPAddr,
		AuditEnabled: c.AuditPath != "",
	}
}

// Topics returns the MQTT topic set.
func (c Config) Topics() mqtt.Topics {
	return mqtt.NewTopics(c.TopicPrefix, c.RadarTopic)
}
