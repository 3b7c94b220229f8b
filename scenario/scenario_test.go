// SPDX-License-Identifier: Apache-2.0

// Package scenario drives the provider, consumer and eventgroup state
// machines against each other over a shared transport.LoopbackRegistry,
// exercising the end-to-end scenarios of spec.md §8 rather than any single
// machine in isolation.
package scenario

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuu-ri/vsomeip/clock"
	"github.com/yuu-ri/vsomeip/consumer"
	"github.com/yuu-ri/vsomeip/eventgroup"
	"github.com/yuu-ri/vsomeip/provider"
	"github.com/yuu-ri/vsomeip/rng"
	"github.com/yuu-ri/vsomeip/sdmsg"
	"github.com/yuu-ri/vsomeip/sdstats"
	"github.com/yuu-ri/vsomeip/transport"
)

var (
	providerAddr   = netip.MustParseAddrPort("127.0.0.1:30490")
	consumerAddr   = netip.MustParseAddrPort("127.0.0.1:30491")
	eventgroupAddr = netip.MustParseAddrPort("127.0.0.1:30492")
)

// stepper is satisfied by every state machine's Step method.
type stepper interface {
	Step(now time.Time)
}

// tick advances the shared virtual clock by d and then steps every
// stepper in order, mirroring one round of independent tick drivers firing
// at (roughly) the same wall-clock moment.
func tick(vc *clock.VirtualClock, d time.Duration, steppers ...stepper) {
	vc.Advance(d)
	for _, s := range steppers {
		s.Step(vc.Now())
	}
}

func newProviderConfig() *provider.Config {
	return &provider.Config{
		UDPIP:                "127.0.0.1",
		UDPPort:              30490,
		PeerIP:               "127.0.0.1",
		PeerPort:             30491,
		TickPeriod:           100 * time.Millisecond,
		RecvTimeout:          time.Millisecond,
		InitialDelayMin:      1 * time.Second,
		InitialDelayMax:      2 * time.Second,
		RepetitionsBaseDelay: 1 * time.Second,
		RepetitionsMax:       3,
		CyclicAnnounceDelay:  5 * time.Second,
		AnswerDelay:          20 * time.Millisecond,
	}
}

func newConsumerConfig() *consumer.Config {
	return &consumer.Config{
		UDPIP:                "127.0.0.1",
		UDPPort:              30491,
		PeerIP:               "127.0.0.1",
		PeerPort:             30490,
		TickPeriod:           100 * time.Millisecond,
		RecvTimeout:          time.Millisecond,
		InitialDelayMin:      1 * time.Second,
		InitialDelayMax:      2 * time.Second,
		RepetitionsBaseDelay: 1 * time.Second,
		RepetitionsMax:       3,
		TTL:                  5 * time.Second,
	}
}

func newEventgroupConfig() *eventgroup.Config {
	return &eventgroup.Config{
		UDPIP:       "127.0.0.1",
		UDPPort:     30492,
		PeerIP:      "127.0.0.1",
		PeerPort:    30491,
		TickPeriod:  100 * time.Millisecond,
		RecvTimeout: time.Millisecond,
		TTL:         5 * time.Second,
	}
}

// TestColdDiscoverySuccess is scenario 1: bringing both machines up with
// ifstatus true converges on (Ready/Main, ServiceReady).
func TestColdDiscoverySuccess(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	fixed := rng.FixedRng{Value: 1500 * time.Millisecond}
	reg := transport.NewLoopbackRegistry()

	pFlags := &provider.Flags{}
	pFlags.SetIfstatusUpAndConfigured(true)
	pFlags.SetServiceStatusUp(true)
	p, err := provider.New(newProviderConfig(), vc, fixed, reg.NewTransport(providerAddr), consumerAddr, pFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	cFlags := &consumer.Flags{}
	cFlags.SetIfstatusUpAndConfigured(true)
	cFlags.SetServiceRequested(true)
	c, err := consumer.New(newConsumerConfig(), vc, fixed, reg.NewTransport(consumerAddr), providerAddr, cFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	// t=0: both machines leave their idle state and arm InitialWait.
	p.Step(vc.Now())
	c.Step(vc.Now())
	require.Equal(t, provider.InitialWait, p.Substate())
	require.Equal(t, consumer.InitialWait, c.Substate())

	// t=1.5s: provider's InitialWait expires first in tick order, sending
	// the cold OfferService the consumer picks up in the very same tick.
	tick(vc, 1500*time.Millisecond, p, c)
	require.Equal(t, consumer.ServiceReady, c.State())

	// Remaining repetition backoff deltas: B, 2B, 4B, 8B (REPETITIONS_MAX=3).
	for _, d := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		tick(vc, d, p, c)
	}

	require.Equal(t, provider.Ready, p.State())
	require.Equal(t, provider.Main, p.Substate())
	require.Equal(t, consumer.ServiceReady, c.State())
}

// TestProviderNeverAnswers is scenario 2: a consumer with no provider on the
// other end exhausts its repetition backoff and gives up.
func TestProviderNeverAnswers(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	fixed := rng.FixedRng{Value: 2 * time.Second}
	reg := transport.NewLoopbackRegistry()

	cFlags := &consumer.Flags{}
	cFlags.SetIfstatusUpAndConfigured(true)
	cFlags.SetServiceRequested(true)
	c, err := consumer.New(newConsumerConfig(), vc, fixed, reg.NewTransport(consumerAddr), providerAddr, cFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	c.Step(vc.Now())
	require.Equal(t, consumer.InitialWait, c.Substate())

	tick(vc, 2*time.Second, c) // InitialWait expiry: FindService #0, run=0
	require.Equal(t, consumer.Repetition, c.Substate())

	for _, d := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		tick(vc, d, c)
	}

	require.Equal(t, consumer.Stopped, c.State())
}

// TestServiceLivenessLoss is scenario 3: once a provider stops re-offering,
// the consumer's TTL timer ages the lease out and it resumes searching.
func TestServiceLivenessLoss(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	fixed := rng.FixedRng{Value: 1500 * time.Millisecond}
	reg := transport.NewLoopbackRegistry()

	providerSide := reg.NewTransport(providerAddr)

	cFlags := &consumer.Flags{}
	cFlags.SetIfstatusUpAndConfigured(true)
	cFlags.SetServiceRequested(true)
	c, err := consumer.New(newConsumerConfig(), vc, fixed, reg.NewTransport(consumerAddr), providerAddr, cFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	c.Step(vc.Now())

	tick(vc, 500*time.Millisecond, c) // nothing due yet; still InitialWait

	require.NoError(t, sendOffer(providerSide))
	c.Step(vc.Now())
	require.Equal(t, consumer.ServiceReady, c.State())

	// No further OfferService arrives; TTL=5s expires and the consumer
	// falls back to SearchingForService/InitialWait with a fresh timer.
	tick(vc, 5*time.Second, c)

	require.Equal(t, consumer.SearchingForService, c.State())
	require.Equal(t, consumer.InitialWait, c.Substate())
}

// TestExplicitStop is scenario 4: the provider withdraws its offer and the
// consumer follows it into Stopped.
func TestExplicitStop(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	fixed := rng.FixedRng{Value: 1500 * time.Millisecond}
	reg := transport.NewLoopbackRegistry()

	pFlags := &provider.Flags{}
	pFlags.SetIfstatusUpAndConfigured(true)
	pFlags.SetServiceStatusUp(true)
	p, err := provider.New(newProviderConfig(), vc, fixed, reg.NewTransport(providerAddr), consumerAddr, pFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	cFlags := &consumer.Flags{}
	cFlags.SetIfstatusUpAndConfigured(true)
	cFlags.SetServiceRequested(true)
	c, err := consumer.New(newConsumerConfig(), vc, fixed, reg.NewTransport(consumerAddr), providerAddr, cFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	p.Step(vc.Now())
	c.Step(vc.Now())
	tick(vc, 1500*time.Millisecond, p, c)
	for _, d := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		tick(vc, d, p, c)
	}
	require.Equal(t, provider.Main, p.Substate())
	require.Equal(t, consumer.ServiceReady, c.State())

	// Provider's application drops service_status_up; it withdraws the
	// offer and the consumer follows it into Stopped in the same tick.
	pFlags.SetServiceStatusUp(false)
	p.Step(vc.Now())
	c.Step(vc.Now())

	require.Equal(t, provider.NotReady, p.State())
	require.Equal(t, consumer.Stopped, c.State())
}

// TestEventgroupLease is scenario 5: a subscription ages out when the
// subscriber never renews it.
func TestEventgroupLease(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	reg := transport.NewLoopbackRegistry()
	consumerSide := reg.NewTransport(consumerAddr)

	egFlags := &eventgroup.Flags{}
	eg, err := eventgroup.New(newEventgroupConfig(), vc, rng.SystemRng{}, reg.NewTransport(eventgroupAddr), consumerAddr, egFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	egFlags.SetServiceStatus(eventgroup.Up)
	eg.Step(vc.Now())
	require.Equal(t, eventgroup.NotSubscribed, eg.Substate())

	require.NoError(t, sendSubscribe(consumerSide))
	eg.Step(vc.Now())
	require.Equal(t, eventgroup.Subscribed, eg.Substate())
	require.Equal(t, uint32(1), eg.SubscriptionCounter())

	// No renewal arrives; TTL+ε expires and the subscription ages out.
	tick(vc, 5*time.Second+time.Millisecond, eg)

	require.Equal(t, eventgroup.NotSubscribed, eg.Substate())
	require.Equal(t, uint32(0), eg.SubscriptionCounter())
}

// TestInterfaceFlap is scenario 6: the consumer's network interface drops
// and returns while it holds a ready service.
func TestInterfaceFlap(t *testing.T) {
	vc := clock.NewVirtualClock(time.Unix(0, 0))
	fixed := rng.FixedRng{Value: 1500 * time.Millisecond}
	reg := transport.NewLoopbackRegistry()
	providerSide := reg.NewTransport(providerAddr)

	cFlags := &consumer.Flags{}
	cFlags.SetIfstatusUpAndConfigured(true)
	cFlags.SetServiceRequested(true)
	c, err := consumer.New(newConsumerConfig(), vc, fixed, reg.NewTransport(consumerAddr), providerAddr, cFlags, sdstats.NopRecorder{})
	require.NoError(t, err)

	c.Step(vc.Now())
	require.NoError(t, sendOffer(providerSide))
	c.Step(vc.Now())
	require.Equal(t, consumer.ServiceReady, c.State())

	cFlags.SetIfstatusUpAndConfigured(false)
	c.Step(vc.Now())
	require.Equal(t, consumer.RequestedButNotReady, c.State())

	cFlags.SetIfstatusUpAndConfigured(true)
	c.Step(vc.Now())
	require.Equal(t, consumer.SearchingForService, c.State())
	require.Equal(t, consumer.InitialWait, c.Substate())
}

func sendOffer(tr *transport.LoopbackTransport) error {
	return tr.Send(sdmsg.OfferService, consumerAddr)
}

func sendSubscribe(tr *transport.LoopbackTransport) error {
	return tr.Send(sdmsg.SubscribeEventgroup, eventgroupAddr)
}
