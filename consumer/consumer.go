// SPDX-License-Identifier: Apache-2.0

// Package consumer implements the Consumer Service state machine: it
// discovers a service, tracks its liveness via TTL, and reacts to
// stop-offer notifications (spec.md §4.4).
package consumer

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

// SM is the Consumer Service state machine. Each SM exclusively owns its
// state, timer, counters and transport handle; it holds no reference to any
// other state machine.
type SM struct {
	cfg       *Config
	clock     clock.Clock
	transport transport.Transport
	peer      netip.AddrPort
	flags     *Flags
	stats     sdstats.Recorder

	state    State
	substate Substate
	run      uint32

	timer *sdtimer.Timer
}

// New constructs a ConsumerSM. It returns an error, and never starts a tick
// loop, if cfg is invalid (spec.md §7, Fatal category).
func New(cfg *Config, c clock.Clock, r rng.Rng, tr transport.Transport, peer netip.AddrPort, flags *Flags, stats sdstats.Recorder) (*SM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer config: %w", err)
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
		state:     NotRequested,
		substate:  SubstateNone,
		timer:     sdtimer.New(c, r),
	}, nil
}

// State returns the current top-level state.
func (sm *SM) State() State { return sm.state }

// Substate returns the current substate (SubstateNone unless
// State==SearchingForService).
func (sm *SM) Substate() Substate { return sm.substate }

// Run returns the current repetition counter.
func (sm *SM) Run() uint32 { return sm.run }

// Step executes one tick: read at most one inbound datagram, evaluate
// guards, perform zero or more sends, update timers and transition.
func (sm *SM) Step(_ time.Time) {
	msg, _, recvOK := sm.transport.TryRecv(sm.cfg.RecvTimeout)
	if recvOK {
		sm.stats.IncRecv(msg)
	}

	ifUp := sm.flags.ifstatusUpAndConfigured.Load()
	requested := sm.flags.serviceRequested.Load()

	switch sm.state {
	case NotRequested:
		sm.stepNotRequested(ifUp, requested)
	case RequestedButNotReady:
		sm.stepRequestedButNotReady(ifUp)
	case SearchingForService:
		sm.stepSearchingForService(ifUp, recvOK, msg)
	case ServiceReady:
		sm.stepServiceReady(ifUp, recvOK, msg)
	case Stopped:
		sm.stepStopped(requested, recvOK, msg)
	}
}

func (sm *SM) stepNotRequested(ifUp, requested bool) {
	if !requested {
		return
	}
	if !ifUp {
		sm.enterState(RequestedButNotReady, SubstateNone)
		return
	}
	sm.enterSearchingInitialWait()
}

func (sm *SM) stepRequestedButNotReady(ifUp bool) {
	if !ifUp {
		return
	}
	sm.enterSearchingInitialWait()
}

func (sm *SM) stepSearchingForService(ifUp, recvOK bool, msg sdmsg.Message) {
	if !ifUp {
		sm.timer.Cancel()
		sm.enterState(RequestedButNotReady, SubstateNone)
		return
	}
	if recvOK && msg == sdmsg.OfferService {
		sm.timer.Set(sm.cfg.TTL)
		sm.enterState(ServiceReady, SubstateNone)
		return
	}

	switch sm.substate {
	case InitialWait:
		if sm.timer.Expired() {
			sm.send(sdmsg.FindService)
			sm.run = 0
			sm.setSubstate(Repetition)
			sm.timer.Set(sm.cfg.RepetitionsBaseDelay)
		}
	case Repetition:
		if recvOK && msg == sdmsg.StopOfferService {
			sm.timer.Cancel()
			sm.enterState(Stopped, SubstateNone)
			return
		}
		if !sm.timer.Expired() {
			return
		}
		if sm.run < sm.cfg.RepetitionsMax {
			sm.send(sdmsg.FindService)
			sm.run++
			sm.timer.Set(backoffDelay(sm.cfg.RepetitionsBaseDelay, sm.run))
			return
		}
		sm.timer.Cancel()
		sm.enterState(Stopped, SubstateNone)
	}
}

func (sm *SM) stepServiceReady(ifUp, recvOK bool, msg sdmsg.Message) {
	if recvOK && msg == sdmsg.OfferService {
		sm.timer.Set(sm.cfg.TTL)
		return
	}
	if sm.timer.Expired() {
		sm.enterSearchingInitialWait()
		return
	}
	if !ifUp {
		sm.timer.Cancel()
		sm.enterState(RequestedButNotReady, SubstateNone)
		return
	}
	if recvOK && msg == sdmsg.StopOfferService {
		sm.timer.Cancel()
		sm.enterState(Stopped, SubstateNone)
	}
}

func (sm *SM) stepStopped(requested, recvOK bool, msg sdmsg.Message) {
	if !requested {
		sm.enterState(NotRequested, SubstateNone)
		return
	}
	if recvOK && msg == sdmsg.OfferService {
		sm.timer.Set(sm.cfg.TTL)
		sm.enterState(ServiceReady, SubstateNone)
	}
}

func (sm *SM) enterSearchingInitialWait() {
	sm.timer.SetInRange(sm.cfg.InitialDelayMin, sm.cfg.InitialDelayMax)
	sm.enterState(SearchingForService, InitialWait)
}

func backoffDelay(base time.Duration, run uint32) time.Duration {
	return base << run
}

func (sm *SM) enterState(s State, sub Substate) {
	sm.state = s
	sm.substate = sub
	if s != SearchingForService {
		sm.run = 0
	}
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
		log.Debugf("consumer: send %s to %s failed: %v", msg, sm.peer, err)
		return
	}
	sm.stats.IncSend(msg)
	log.Debugf(color.GreenString("consumer -> %s (%s %s)", msg, sm.state, sm.substate))
}

func (sm *SM) logTransition() {
	log.Debugf(color.BlueString("consumer transitioned to %s %s", sm.state, sm.substate))
}
