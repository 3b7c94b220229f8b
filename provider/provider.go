// SPDX-License-Identifier: Apache-2.0

// Package provider implements the Provider Service state machine: it
// announces a service, responds to discovery requests, and maintains
// cyclic offers (spec.md §4.3).
package provider

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

// SM is the Provider Service state machine. Each SM exclusively owns its
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

	timer       *sdtimer.Timer
	answerTimer *sdtimer.Timer
}

// New constructs a ProviderSM. It returns an error, and never starts a tick
// loop, if cfg is invalid (spec.md §7, Fatal category).
func New(cfg *Config, c clock.Clock, r rng.Rng, tr transport.Transport, peer netip.AddrPort, flags *Flags, stats sdstats.Recorder) (*SM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	if stats == nil {
		stats = sdstats.NopRecorder{}
	}
	return &SM{
		cfg:         cfg,
		clock:       c,
		transport:   tr,
		peer:        peer,
		flags:       flags,
		stats:       stats,
		state:       NotReady,
		substate:    SubstateNone,
		timer:       sdtimer.New(c, r),
		answerTimer: sdtimer.New(c, r),
	}, nil
}

// State returns the current top-level state.
func (sm *SM) State() State { return sm.state }

// Substate returns the current substate (SubstateNone unless State==Ready).
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
	svcUp := sm.flags.serviceStatusUp.Load()

	if sm.state == Ready {
		if !ifUp {
			sm.timer.Cancel()
			sm.answerTimer.Cancel()
			sm.enterNotReady()
			return
		}
		if !svcUp {
			sm.timer.Cancel()
			sm.answerTimer.Cancel()
			sm.send(sdmsg.StopOfferService)
			sm.enterNotReady()
			return
		}
	}

	// A deferred reply to a previously-received FindService fires at the
	// top of the tick, independent of the substate's own timer, so it
	// never suppresses a scheduled timer-driven offer.
	if sm.answerTimer.Expired() {
		sm.answerTimer.Cancel()
		sm.send(sdmsg.OfferService)
	}

	switch sm.state {
	case NotReady:
		if ifUp && svcUp {
			sm.enterInitialWait()
		}
	case Ready:
		switch sm.substate {
		case InitialWait:
			sm.stepInitialWait()
		case Repetition:
			sm.stepRepetition(recvOK, msg)
		case Main:
			sm.stepMain(recvOK, msg)
		}
	}
}

func (sm *SM) stepInitialWait() {
	if !sm.timer.Expired() {
		return
	}
	sm.run = 0
	sm.send(sdmsg.OfferService)
	sm.setSubstate(Repetition)
	sm.timer.Set(sm.cfg.RepetitionsBaseDelay)
}

func (sm *SM) stepRepetition(recvOK bool, msg sdmsg.Message) {
	if recvOK && msg == sdmsg.FindService {
		sm.scheduleAnswer()
		return
	}
	if !sm.timer.Expired() {
		return
	}
	if sm.run < sm.cfg.RepetitionsMax {
		sm.send(sdmsg.OfferService)
		sm.run++
		sm.timer.Set(backoffDelay(sm.cfg.RepetitionsBaseDelay, sm.run))
		return
	}
	sm.setSubstate(Main)
	sm.send(sdmsg.OfferService)
	sm.timer.Set(sm.cfg.CyclicAnnounceDelay)
}

func (sm *SM) stepMain(recvOK bool, msg sdmsg.Message) {
	if recvOK && msg == sdmsg.FindService {
		sm.scheduleAnswer()
		sm.timer.Set(sm.cfg.CyclicAnnounceDelay)
		return
	}
	if !sm.timer.Expired() {
		return
	}
	sm.send(sdmsg.OfferService)
	sm.timer.Set(sm.cfg.CyclicAnnounceDelay)
}

func (sm *SM) scheduleAnswer() {
	sm.answerTimer.Set(sm.cfg.AnswerDelay)
}

func backoffDelay(base time.Duration, run uint32) time.Duration {
	return base << run
}

func (sm *SM) enterNotReady() {
	sm.state = NotReady
	sm.substate = SubstateNone
	sm.run = 0
	sm.stats.IncTransition()
	sm.logTransition()
}

func (sm *SM) enterInitialWait() {
	sm.state = Ready
	sm.substate = InitialWait
	sm.timer.SetInRange(sm.cfg.InitialDelayMin, sm.cfg.InitialDelayMax)
	sm.stats.IncTransition()
	sm.logTransition()
}

func (sm *SM) setSubstate(s Substate) {
	sm.substate = s
	sm.stats.IncTransition()
	sm.logTransition()
}

func (sm *SM) send(msg sdmsg.Message) {
	if err := sm.transport.Send(msg, sm.peer); err != nil {
		log.Debugf("provider: send %s to %s failed: %v", msg, sm.peer, err)
		return
	}
	sm.stats.IncSend(msg)
	log.Debugf(color.GreenString("provider -> %s (%s %s)", msg, sm.state, sm.substate))
}

func (sm *SM) logTransition() {
	log.Debugf(color.BlueString("provider transitioned to %s %s", sm.state, sm.substate))
}
