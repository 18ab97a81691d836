package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"is31ledd/internal/config"
	"is31ledd/internal/console"
	"is31ledd/internal/i2c"
	"is31ledd/internal/is31fl3236a"
	"is31ledd/internal/ledservice"
	"is31ledd/internal/logging"
	"is31ledd/internal/mdns"
	"is31ledd/internal/mqtt"
	"is31ledd/internal/sdb"
	"is31ledd/internal/store"
	"is31ledd/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./is31ledd.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "is31ledd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logs := web.NewLogBuffer(2000)
	out := newSwitchWriter(os.Stderr)
	if cfg.Logging.Output == "stdout" {
		out.Set(os.Stdout)
	}
	log := logging.NewWithWriter(cfg.Logging, io.MultiWriter(out, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("is31ledd starting", "bus", cfg.I2C.Bus, "address", fmt.Sprintf("0x%02X", cfg.I2C.Address))

	var opts ledservice.Options
	opts.Logger = log

	// SDB must be high before the chip will answer.
	if cfg.SDB.Enable {
		line, err := sdb.Open(cfg.SDB.Chip, cfg.SDB.Line)
		if err != nil {
			return fmt.Errorf("sdb: %w", err)
		}
		if err := line.Enable(); err != nil {
			_ = line.Close()
			return fmt.Errorf("sdb enable: %w", err)
		}
		opts.SDB = line
	}

	bus, err := i2c.Open(cfg.I2C.Bus)
	if err != nil {
		closePin(opts.SDB)
		return err
	}
	defer bus.Close()

	dev, err := is31fl3236a.Open(bus, uint16(cfg.I2C.Address))
	if err != nil {
		closePin(opts.SDB)
		return fmt.Errorf("device init: %w", err)
	}

	if cfg.Store.Enable {
		st, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			_ = dev.Close()
			closePin(opts.SDB)
			return err
		}
		defer st.Close()
		opts.Store = st
	}

	svc, err := startService(ctx, cfg.Driver, dev, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	var (
		httpSrv *http.Server
		hub     *web.Hub
	)
	if cfg.HTTP.Enable {
		hub = web.NewHub(svc, cfg.HTTP.WSPingInterval, log)
		httpSrv = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           web.Handler(svc, web.Options{Logs: logs, Hub: hub, Logger: log}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("http listening", "addr", cfg.HTTP.Listen)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server stopped", "error", err)
				cancel()
			}
		}()
	}

	var mqttClient *mqtt.Client
	bridgeDone := make(chan struct{})
	if cfg.MQTT.Enable {
		mqttClient, err = startMQTT(ctx, cfg.MQTT, svc, log, bridgeDone)
		if err != nil {
			// The daemon stays useful over HTTP without the broker.
			log.Error("mqtt disabled", "error", err)
			close(bridgeDone)
		}
	} else {
		close(bridgeDone)
	}

	var adv *mdns.Advertiser
	if cfg.MDNS.Enable {
		adv, err = startMDNS(cfg, svc)
		if err != nil {
			log.Warn("mdns advertise failed", "error", err)
		} else {
			log.Info("mdns advertising", "instance", cfg.MDNS.Instance, "service", cfg.MDNS.Service)
		}
	}

	if cfg.Console.Enable {
		con, err := console.New(svc, log)
		if err != nil {
			log.Warn("console unavailable", "error", err)
		} else {
			out.Set(con.Stdout())
			go con.Run(ctx, cancel)
		}
	}

	<-ctx.Done()
	log.Info("is31ledd stopping")

	if adv != nil {
		adv.Shutdown()
	}
	if httpSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		cancelShutdown()
		hub.Close()
	}
	<-bridgeDone
	if mqttClient != nil {
		_ = mqttClient.Close()
	}
	out.Set(os.Stderr)
	return nil
}

// startService wraps dev in the LED service and brings it to its startup
// state: persisted state first, then the configured frequency and initial
// duties on top.
func startService(ctx context.Context, drv config.DriverConfig, dev *is31fl3236a.Device, opts ledservice.Options) (*ledservice.Service, error) {
	svc := ledservice.New(dev, opts)

	if drv.RestoreState {
		if err := svc.Restore(ctx); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("restore state: %w", err)
		}
	}
	if drv.FrequencyHz != 0 {
		if err := svc.SetFrequency(drv.FrequencyHz); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("set frequency: %w", err)
		}
	}
	if err := svc.ApplyDuties(initialDuties(drv.Initial)); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("initial duties: %w", err)
	}
	return svc, nil
}

// initialDuties flattens the configured list; a later entry for the same
// channel wins.
func initialDuties(list []config.ChannelDuty) map[int]int {
	m := make(map[int]int, len(list))
	for _, cd := range list {
		m[cd.Channel] = cd.Duty
	}
	return m
}

func startMQTT(ctx context.Context, cfg config.MQTTConfig, svc *ledservice.Service, log *slog.Logger, done chan<- struct{}) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	bridge := mqtt.NewBridge(client, svc, cfg.TopicPrefix, log)
	if err := bridge.Start(); err != nil {
		_ = client.Close()
		return nil, err
	}
	go func() {
		defer close(done)
		bridge.Run(ctx)
	}()
	return client, nil
}

func startMDNS(cfg config.Config, svc *ledservice.Service) (*mdns.Advertiser, error) {
	port, err := mdns.PortFromListen(cfg.HTTP.Listen)
	if err != nil {
		return nil, err
	}
	adv := mdns.NewAdvertiser(cfg.MDNS.Interface)
	err = adv.Advertise(mdns.Info{
		Instance: cfg.MDNS.Instance,
		Service:  cfg.MDNS.Service,
		Port:     port,
		Address:  svc.Snapshot().Address,
		Channels: is31fl3236a.NumChannels,
		Version:  web.BuildInfo().Version,
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}

func closePin(p sdb.Pin) {
	if p != nil {
		_ = p.Close()
	}
}
