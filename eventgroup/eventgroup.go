// SPDX-License-Identifier: Apache-2.0

// Package eventgroup implements the Eventgroup publish/subscribe state
// machine: on the provider side, it accepts subscriptions, acknowledges
// them, and ages them out via TTL (spec.md §4.5).
package eventgroup

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/yuu-ri/vsomeip/clock"
	"github.com/yuu-ri/vsomeip/rng"
	"github.com/yuu-ri/vsomeip/sdmsg"
	"github.com/yuu-ri/vsomeip/sdstats"
	"github.com/yuu-ri/vsomeip/sdtimer"
	"github.com/yuu-ri/vsomeip/transport"
)

// SM is the Eventgroup publish/subscribe state machine. It models a single
// subscriber: subscriptionCounter is always 0 or 1 (spec.md §4.5).
type SM struct {
	cfg       *Config
	clock     clock.Clock
	transport transport.Transport
	peer      netip.AddrPort
	flags     *Flags
	stats     sdstats.Recorder

	state    State
	substate Substate

	subscriptionCounter uint32
	timer               *sdtimer.Timer
}

// New constructs an EventgroupSM. It returns an error, and never starts a
// tick loop, if cfg is invalid (spec.md §7, Fatal category).
func New(cfg *Config, c clock.Clock, r rng.Rng, tr transport.Transport, peer netip.AddrPort, flags *Flags, stats sdstats.Recorder) (*SM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid eventgroup config: %w", err)
	}
	if stats == nil {
		stats = sdstats.NopRecorder{}
	}
	return &SM{
		cfg:       cfg,
		clock:     c,
		transport: tr,
		peer:      peer,
		flags:     flags,
		stats:     stats,
		state:     ServiceDown,
		substate:  SubstateNone,
		timer:     sdtimer.New(c, r),
	}, nil
}

// State returns the current top-level state.
func (sm *SM) State() State { return sm.state }

// Substate returns the current substate (SubstateNone unless
// State==ServiceUp).
func (sm *SM) Substate() Substate { return sm.substate }

// SubscriptionCounter returns the current subscription counter (0 or 1).
func (sm *SM) SubscriptionCounter() uint32 { return sm.subscriptionCounter }

// Step executes one tick: read at most one inbound datagram, evaluate
// guards, perform zero or more sends, update timers and transition.
func (sm *SM) Step(_ time.Time) {
	msg, _, recvOK := sm.transport.TryRecv(sm.cfg.RecvTimeout)
	if recvOK {
		sm.stats.IncRecv(msg)
	}

	status := sm.flags.status()

	if sm.state == ServiceUp && status == Down {
		sm.timer.Cancel()
		sm.subscriptionCounter = 0
		sm.enterState(ServiceDown, SubstateNone)
		return
	}

	switch sm.state {
	case ServiceDown:
		if status == Up {
			sm.enterState(ServiceUp, NotSubscribed)
		}
	case ServiceUp:
		sm.stepServiceUp(recvOK, msg)
	}
}

func (sm *SM) stepServiceUp(recvOK bool, msg sdmsg.Message) {
	switch sm.substate {
	case NotSubscribed:
		if recvOK && msg == sdmsg.SubscribeEventgroup {
			sm.subscriptionCounter = 1
			sm.send(sdmsg.SubscribeEventgroupAck)
			sm.timer.Set(sm.cfg.TTL)
			sm.setSubstate(Subscribed)
		}
	case Subscribed:
		switch {
		case recvOK && msg == sdmsg.SubscribeEventgroup:
			sm.send(sdmsg.SubscribeEventgroupAck)
			sm.timer.Set(sm.cfg.TTL)
		case recvOK && msg == sdmsg.StopSubscribeEventgroup:
			sm.subscriptionCounter = 0
			sm.timer.Cancel()
			sm.setSubstate(NotSubscribed)
		case sm.timer.Expired() && sm.subscriptionCounter == 1:
			sm.subscriptionCounter = 0
			sm.timer.Cancel()
			sm.stats.IncTTLExpiry()
			sm.setSubstate(NotSubscribed)
		}
	}
}

func (sm *SM) enterState(s State, sub Substate) {
	sm.state = s
	sm.substate = sub
	sm.stats.IncTransition()
	sm.logTransition()
}

func (sm *SM) setSubstate(sub Substate) {
	sm.substate = sub
	sm.stats.IncTransition()
	sm.logTransition()
}

func (sm *SM) send(msg sdmsg.Message) {
	if err := sm.transport.Send(msg, sm.peer); err != nil {
		log.Debugf("eventgroup: send %s to %s failed: %v", msg, sm.peer, err)
		return
	}
	sm.stats.IncSend(msg)
	log.Debugf(color.GreenString("eventgroup -> %s (%s %s)", msg, sm.state, sm.substate))
}

func (sm *SM) logTransition() {
	log.Debugf(color.BlueString("eventgroup transitioned to %s %s", sm.state, sm.substate))
}
