// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	syscall "golang.org/x/sys/unix"

	"github.com/yuu-ri/vsomeip/clock"
	"github.com/yuu-ri/vsomeip/consumer"
	"github.com/yuu-ri/vsomeip/rng"
	"github.com/yuu-ri/vsomeip/sdstats"
	"github.com/yuu-ri/vsomeip/tickdriver"
	"github.com/yuu-ri/vsomeip/transport"
)

var runFlags struct {
	udpIP           string
	udpPort         int
	peerIP          string
	peerPort        int
	tickPeriod      time.Duration
	recvTimeout     time.Duration
	initialDelayMin time.Duration
	initialDelayMax time.Duration
	repetitionsBase time.Duration
	repetitionsMax  uint32
	ttl             time.Duration
	logLevel        string
	metricsAddr     string
}

func init() {
	RootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVar(&runFlags.udpIP, "udp-ip", "0.0.0.0", "IP to bind the client socket on")
	f.IntVar(&runFlags.udpPort, "udp-port", 30491, "port to bind the client socket on")
	f.StringVar(&runFlags.peerIP, "peer-ip", "127.0.0.1", "provider IP to send requests to")
	f.IntVar(&runFlags.peerPort, "peer-port", 30490, "provider port to send requests to")
	f.DurationVar(&runFlags.tickPeriod, "tick-period", 100*time.Millisecond, "consumer tick period")
	f.DurationVar(&runFlags.recvTimeout, "recv-timeout", time.Millisecond, "socket receive timeout per tick")
	f.DurationVar(&runFlags.initialDelayMin, "initial-delay-min", 1*time.Second, "minimum randomized initial wait")
	f.DurationVar(&runFlags.initialDelayMax, "initial-delay-max", 2*time.Second, "maximum randomized initial wait")
	f.DurationVar(&runFlags.repetitionsBase, "repetitions-base-delay", 1*time.Second, "base delay of the repetition backoff")
	f.Uint32Var(&runFlags.repetitionsMax, "repetitions-max", 3, "number of repetition retries before giving up")
	f.DurationVar(&runFlags.ttl, "ttl", 5*time.Second, "offer liveness lease")
	f.StringVar(&runFlags.logLevel, "loglevel", "info", "log level: debug, info, warning, error")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "host:port to serve Prometheus /metrics on; empty disables it")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the consumer tick loop",
	Run: func(_ *cobra.Command, _ []string) {
		if err := run(); err != nil {
			log.Fatal(err)
		}
	},
}

func run() error {
	switch runFlags.logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unrecognized log level: %s", runFlags.logLevel)
	}

	reg := prometheus.NewRegistry()

	tr, err := transport.NewUDPTransport(net.ParseIP(runFlags.udpIP), runFlags.udpPort)
	if err != nil {
		return fmt.Errorf("binding client socket: %w", err)
	}
	defer tr.Close()

	peer := netip.AddrPortFrom(netip.MustParseAddr(runFlags.peerIP), uint16(runFlags.peerPort))

	flags := &consumer.Flags{}
	flags.SetIfstatusUpAndConfigured(true)
	flags.SetServiceRequested(true)

	stats := sdstats.NewPrometheusRecorder(reg, "consumer")
	sm, err := consumer.New(&consumer.Config{
		UDPIP:                runFlags.udpIP,
		UDPPort:              runFlags.udpPort,
		PeerIP:               runFlags.peerIP,
		PeerPort:             runFlags.peerPort,
		TickPeriod:           runFlags.tickPeriod,
		RecvTimeout:          runFlags.recvTimeout,
		InitialDelayMin:      runFlags.initialDelayMin,
		InitialDelayMax:      runFlags.initialDelayMax,
		RepetitionsBaseDelay: runFlags.repetitionsBase,
		RepetitionsMax:       runFlags.repetitionsMax,
		TTL:                  runFlags.ttl,
	}, clock.SystemClock{}, rng.SystemRng{}, tr, peer, flags, stats)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigStop
		log.Warning("received shutdown signal, stopping tick loop")
		cancel()
	}()

	if runFlags.metricsAddr != "" {
		go serveMetrics(reg, runFlags.metricsAddr)
	}

	err = tickdriver.New("consumer", sm, runFlags.tickPeriod).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Infof("serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server stopped: %v", err)
	}
}
