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
	"golang.org/x/sync/errgroup"
	syscall "golang.org/x/sys/unix"

	"github.com/yuu-ri/vsomeip/clock"
	"github.com/yuu-ri/vsomeip/eventgroup"
	"github.com/yuu-ri/vsomeip/provider"
	"github.com/yuu-ri/vsomeip/rng"
	"github.com/yuu-ri/vsomeip/sdstats"
	"github.com/yuu-ri/vsomeip/tickdriver"
	"github.com/yuu-ri/vsomeip/transport"
)

var runFlags struct {
	udpIP           string
	udpPort         int
	eventgroupPort  int
	peerIP          string
	peerPort        int
	peerEgPort      int
	tickPeriod      time.Duration
	egTickPeriod    time.Duration
	recvTimeout     time.Duration
	initialDelayMin time.Duration
	initialDelayMax time.Duration
	repetitionsBase time.Duration
	repetitionsMax  uint32
	cyclicAnnounce  time.Duration
	answerDelay     time.Duration
	eventgroupTTL   time.Duration
	logLevel        string
	metricsAddr     string
}

func init() {
	RootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVar(&runFlags.udpIP, "udp-ip", "0.0.0.0", "IP to bind the service-discovery socket on")
	f.IntVar(&runFlags.udpPort, "udp-port", 30490, "port to bind the service-discovery socket on")
	f.IntVar(&runFlags.eventgroupPort, "eventgroup-port", 30492, "port to bind the eventgroup socket on")
	f.StringVar(&runFlags.peerIP, "peer-ip", "127.0.0.1", "consumer IP to send offers to")
	f.IntVar(&runFlags.peerPort, "peer-port", 30491, "consumer port to send offers to")
	f.IntVar(&runFlags.peerEgPort, "peer-eventgroup-port", 30493, "consumer port to send subscription acks to")
	f.DurationVar(&runFlags.tickPeriod, "tick-period", 10*time.Millisecond, "provider tick period")
	f.DurationVar(&runFlags.egTickPeriod, "eventgroup-tick-period", 100*time.Millisecond, "eventgroup tick period")
	f.DurationVar(&runFlags.recvTimeout, "recv-timeout", time.Millisecond, "socket receive timeout per tick")
	f.DurationVar(&runFlags.initialDelayMin, "initial-delay-min", 1*time.Second, "minimum randomized initial wait")
	f.DurationVar(&runFlags.initialDelayMax, "initial-delay-max", 2*time.Second, "maximum randomized initial wait")
	f.DurationVar(&runFlags.repetitionsBase, "repetitions-base-delay", 1*time.Second, "base delay of the repetition backoff")
	f.Uint32Var(&runFlags.repetitionsMax, "repetitions-max", 3, "number of repetition retries before entering steady state")
	f.DurationVar(&runFlags.cyclicAnnounce, "cyclic-announce-delay", 5*time.Second, "steady-state re-announce period")
	f.DurationVar(&runFlags.answerDelay, "answer-delay", 20*time.Millisecond, "deferred-answer delay for FindService replies")
	f.DurationVar(&runFlags.eventgroupTTL, "eventgroup-ttl", 5*time.Second, "eventgroup subscription lease")
	f.StringVar(&runFlags.logLevel, "loglevel", "info", "log level: debug, info, warning, error")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "host:port to serve Prometheus /metrics on; empty disables it")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the provider and eventgroup tick loops",
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

	providerTr, err := transport.NewUDPTransport(net.ParseIP(runFlags.udpIP), runFlags.udpPort)
	if err != nil {
		return fmt.Errorf("binding service-discovery socket: %w", err)
	}
	defer providerTr.Close()

	egTr, err := transport.NewUDPTransport(net.ParseIP(runFlags.udpIP), runFlags.eventgroupPort)
	if err != nil {
		return fmt.Errorf("binding eventgroup socket: %w", err)
	}
	defer egTr.Close()

	peer := netip.AddrPortFrom(netip.MustParseAddr(runFlags.peerIP), uint16(runFlags.peerPort))
	egPeer := netip.AddrPortFrom(netip.MustParseAddr(runFlags.peerIP), uint16(runFlags.peerEgPort))

	sysClock := clock.SystemClock{}
	sysRng := rng.SystemRng{}

	providerFlags := &provider.Flags{}
	providerFlags.SetIfstatusUpAndConfigured(true)
	providerFlags.SetServiceStatusUp(true)

	providerStats := sdstats.NewPrometheusRecorder(reg, "provider")
	providerSM, err := provider.New(&provider.Config{
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
		CyclicAnnounceDelay:  runFlags.cyclicAnnounce,
		AnswerDelay:          runFlags.answerDelay,
	}, sysClock, sysRng, providerTr, peer, providerFlags, providerStats)
	if err != nil {
		return err
	}

	egFlags := &eventgroup.Flags{}
	egFlags.SetServiceStatus(eventgroup.Up)
	egStats := sdstats.NewPrometheusRecorder(reg, "eventgroup")
	egSM, err := eventgroup.New(&eventgroup.Config{
		UDPIP:       runFlags.udpIP,
		UDPPort:     runFlags.eventgroupPort,
		PeerIP:      runFlags.peerIP,
		PeerPort:    runFlags.peerEgPort,
		TickPeriod:  runFlags.egTickPeriod,
		RecvTimeout: runFlags.recvTimeout,
		TTL:         runFlags.eventgroupTTL,
	}, sysClock, sysRng, egTr, egPeer, egFlags, egStats)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigStop
		log.Warning("received shutdown signal, stopping tick loops")
		cancel()
	}()

	if runFlags.metricsAddr != "" {
		go serveMetrics(reg, runFlags.metricsAddr)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return tickdriver.New("provider", providerSM, runFlags.tickPeriod).Run(ctx)
	})
	eg.Go(func() error {
		return tickdriver.New("eventgroup", egSM, runFlags.egTickPeriod).Run(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
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
