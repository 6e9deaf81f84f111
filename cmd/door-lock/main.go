// Command door-lock drives a door lock relay from a push button, radar
// presence and MQTT requests, and mirrors the lock to a HomeKit bridge.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sweeney/door-lock/internal/audit"
	"github.com/sweeney/door-lock/internal/config"
	"github.com/sweeney/door-lock/internal/gpio"
	"github.com/sweeney/door-lock/internal/logic"
	"github.com/sweeney/door-lock/internal/metrics"
	"github.com/sweeney/door-lock/internal/mqtt"
	"github.com/sweeney/door-lock/internal/radar"
	"github.com/sweeney/door-lock/internal/sound"
	"github.com/sweeney/door-lock/internal/status"
	"github.com/sweeney/door-lock/internal/web"
)

// ErrRestartRequested is returned by runLoop after a long press.
var ErrRestartRequested = errors.New("restart requested")

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "door-lock",
		Short:         "Door lock controller with radar auto-open and MQTT mirroring",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			l, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			log := l.Sugar().Named("door_lock")
			defer log.Sync()

			err = run(cfg, log)
			if errors.Is(err, ErrRestartRequested) {
				log.Warnw("restarting")
				log.Sync()
				return reexec()
			}
			return err
		},
	}
	cobra.CheckErr(config.RegisterFlags(v, cmd.Flags()))
	return cmd
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	button, err := gpio.NewRealInput(cfg.PinButton)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	if cfg.PrintState {
		pressed, err := button.Read()
		if err != nil {
			return fmt.Errorf("read button: %w", err)
		}
		fmt.Printf("Button: %s\n", buttonString(pressed))
		return nil
	}

	relay, err := gpio.NewRealOutput(cfg.PinRelay)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer relay.Close()
	actuator := gpio.NewActuator(relay, cfg.MaxOn)
	defer actuator.Release()

	deps := loopDeps{
		cfg:      cfg,
		log:      log,
		button:   button,
		actuator: actuator,
	}

	if cfg.Buzzer {
		buzzer, err := gpio.NewRealOutput(cfg.PinBuzzer)
		if err != nil {
			log.Warnw("buzzer unavailable, cues disabled", "error", err)
		} else {
			defer buzzer.Close()
			player := sound.NewPlayer(buzzer, log.Named("sound"), nil)
			defer player.Close()
			deps.cues = player
		}
	}

	feed := radar.NewFeed(cfg.RadarStale)
	deps.radar = feed

	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Topics:   cfg.Topics(),
	}, feed, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()
	deps.publisher = client
	deps.mqttStatus = client
	deps.commands = client.Commands()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.metrics = metrics.New(reg)

	var events web.EventSource
	if cfg.AuditPath != "" {
		store, err := audit.Open(context.Background(), cfg.AuditPath)
		if err != nil {
			// The door must keep working without its log.
			log.Errorw("access log unavailable", "path", cfg.AuditPath, "error", err)
		} else {
			defer store.Close()
			deps.audit = store
			events = store
		}
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), cfg.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	deps.tracker = tracker

	// Publish startup event with full status snapshot, then the initial mirror
	snap := tracker.Snapshot()
	if err := client.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		log.Warnw("failed to publish startup event", "error", err)
	}
	if err := client.PublishLock(logic.LockLocked, logic.CommandClose); err != nil {
		log.Warnw("failed to publish lock state", "error", err)
	}
	if err := client.PublishMotion(false); err != nil {
		log.Warnw("failed to publish motion", "error", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, web.Options{
			Events:   events,
			Gatherer: reg,
			Metrics:  deps.metrics,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"poll", cfg.Poll,
		"open", cfg.OpenDuration,
		"cooldown", cfg.Cooldown,
		"proximity_cm", cfg.ProximityCm,
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(deps, time.Now, ticker.C, sigCh)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func buttonString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
