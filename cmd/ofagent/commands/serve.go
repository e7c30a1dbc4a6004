package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/connection"
	"github.com/netrack/ofagent/flowtable"
	"github.com/netrack/ofagent/forwarding"
	"github.com/netrack/ofagent/internal/agentlog"
	"github.com/netrack/ofagent/ofp"
	"github.com/netrack/ofagent/port"
	"github.com/netrack/ofagent/statemanager"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OpenFlow state manager agent",
	Long: `serve constructs a StateManager wired to the in-memory flow table
and reference forwarding/port collaborators, and listens for OpenFlow
connections on --listen.`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("listen", "0.0.0.0:6633", "address to listen for OpenFlow connections on")
	flags.String("metrics-listen", "", "address to serve Prometheus metrics on (empty disables the metrics server)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Uint16("miss-send-len", 128, "default miss_send_len installed into the switch configuration at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := bindViper(v, cmd); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := agentlog.Config{Level: v.GetString("log-level"), Format: v.GetString("log-format")}
	handler := agentlog.NewHandler(logCfg)
	log := agentlog.New(handler, "ofagent")

	reg := prometheus.NewRegistry()

	table := flowtable.New()
	fwd := forwarding.NewMemory()
	prt := port.NewMemory()
	broker := connection.NewBroker()

	sm := statemanager.NewStateManager(table, fwd, prt, broker, of.SequentialRunner{}, log, reg)
	sm.SetConfig(statemanager.AgentConfig{
		Flags:          ofp.ConfigFlagFragNormal,
		MissSendLength: uint16(v.GetUint32("miss-send-len")),
	})

	dispatcher := statemanager.NewDispatcher(sm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if addr := v.GetString("metrics-listen"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: addr, Handler: mux}

		go func() {
			log.Info("metrics server listening", "addr", addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", "err", err)
			}
		}()
		defer metricsSrv.Close()
	}

	ln, err := of.Listen("tcp", v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- acceptLoop(ctx, ln, broker, dispatcher, log) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Info("ofagent listening", "addr", v.GetString("listen"))

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
		cancel()
		ln.Close()
		<-serverDone
	case err := <-serverDone:
		if err != nil {
			return err
		}
	}

	return nil
}

// acceptLoop accepts OpenFlow connections, registers each with broker so
// replies raised by asynchronous iterator tasks can still reach it, and
// dispatches requests against dispatcher until ctx is cancelled.
func acceptLoop(ctx context.Context, ln *of.OFPListener, broker *connection.Broker, dispatcher *statemanager.Dispatcher, log *agentlog.Logger) error {
	for {
		c, err := ln.AcceptOFP()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		go serveConn(c, broker, dispatcher, log)
	}
}

func serveConn(c of.Conn, broker *connection.Broker, dispatcher *statemanager.Dispatcher, log *agentlog.Logger) {
	id := connection.IDFor(c)
	broker.Register(id, c)

	defer func() {
		broker.Unregister(id)
		if !c.Hijacked() {
			c.Close()
		}
	}()

	for {
		req, err := c.Receive()
		if err != nil {
			return
		}

		dispatcher.Serve(nil, req)

		if err := c.Flush(); err != nil {
			log.Warn("connection flush failed", "cxn_id", id, "err", err)
			return
		}
	}
}
