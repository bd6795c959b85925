package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/graylogic/admin-console/internal/agent"
	"github.com/graylogic/admin-console/internal/infrastructure/influxdb"
	"github.com/graylogic/admin-console/internal/infrastructure/mqtt"
	"github.com/graylogic/admin-console/internal/transport"
)

// cmdAgent runs the session agent until interrupted.
func cmdAgent(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("agent", a.stderr)
	listen := fs.String("listen", a.cfg.Agent.Listen, "HTTP address for /healthz, /metrics and /session")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	var (
		publisher agent.EventPublisher
		telemetry agent.TelemetryWriter
		commands  agent.CommandSource
	)

	if a.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(a.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(a.log)
		a.closers = append(a.closers, client.Close)
		publisher, commands = client, client
		a.log.Info("MQTT connected", "broker", a.cfg.MQTT.Broker.Host, "port", a.cfg.MQTT.Broker.Port)
	}

	if a.cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(a.cfg.InfluxDB)
		if err != nil {
			// Telemetry is optional; the agent runs without it.
			a.log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
		} else {
			client.SetOnError(func(err error) {
				a.log.Warn("InfluxDB write failed", "error", err)
			})
			a.closers = append(a.closers, client.Close)
			telemetry = client
		}
	}

	relay := agent.NewRelay(publisher, telemetry, a.log)
	a.store.Subscribe(relay)
	a.interceptor.AddObserver(relay)

	ag, err := agent.New(agent.Config{
		Listen:          *listen,
		ProfileSchedule: a.cfg.Agent.ProfileSchedule,
		Store:           a.store,
		Resolver:        a.guard,
		Collectors:      []prometheus.Collector{transport.NewMetricsCollector(a.interceptor)},
		Commands:        commands,
		Logger:          a.log,
		Version:         version,
	})
	if err != nil {
		return err
	}

	if err := ag.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "agent running (profile refresh %s", a.cfg.Agent.ProfileSchedule)
	if addr := ag.Addr(); addr != "" {
		fmt.Fprintf(out, ", http://%s/metrics", addr)
	}
	fmt.Fprintln(out, ")")

	<-ctx.Done()
	return ag.Close()
}
