/*
 * Fabric
 * Copyright (C) 2025  Capmesh, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package breaker implements a two-state circuit breaker guarding calls to
// an unhealthy dependency. The breaker trips open after a configured number
// of consecutive failures and admits a single probe once the recovery
// window has elapsed.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// ErrStateOpen is returned by Execute when the breaker rejects a call.
var ErrStateOpen = errors.New("circuit breaker is open")

// State represents the operating state of a CircuitBreaker.
type State int

const (
	// StateClosed is the operating state in which all calls are allowed.
	StateClosed State = iota
	// StateOpen is the operating state in which calls are rejected until
	// the recovery window elapses.
	StateOpen
)

// String returns the textual representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "undefined"
	}
}

// Config contains configuration of a CircuitBreaker.
type Config struct {
	// Clock is used to control time. Defaults to a real clock.
	Clock clockwork.Clock
	// Threshold is the number of consecutive failures that trips the
	// breaker.
	Threshold int
	// RecoveryTime is how long the breaker stays open before admitting a
	// probe.
	RecoveryTime time.Duration
	// OnExecute, when set, is called once per Execute with the outcome as
	// interpreted by the breaker and the state the call was made in.
	OnExecute func(success bool, state State)
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Threshold <= 0 {
		return trace.BadParameter("breaker threshold must be positive")
	}
	if c.RecoveryTime <= 0 {
		return trace.BadParameter("breaker recovery time must be positive")
	}
	return nil
}

// CircuitBreaker guards a dependency. It is safe for concurrent use; the
// internal mutex is never held across the guarded call.
type CircuitBreaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// New returns a CircuitBreaker for the provided Config.
func New(cfg Config) (*CircuitBreaker, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &CircuitBreaker{cfg: cfg}, nil
}

// State returns the current state of the breaker.
func (c *CircuitBreaker) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute runs f if the breaker allows it and records the outcome. When the
// breaker is open and the recovery window has not elapsed it returns
// ErrStateOpen without invoking f. While open, a single in-flight probe is
// admitted once the recovery window elapses; concurrent callers are
// rejected until the probe settles.
func (c *CircuitBreaker) Execute(f func() (any, error)) (any, error) {
	state, err := c.beforeCall()
	if err != nil {
		if c.cfg.OnExecute != nil {
			c.cfg.OnExecute(false, state)
		}
		return nil, err
	}

	v, err := f()
	c.record(err == nil)
	if c.cfg.OnExecute != nil {
		c.cfg.OnExecute(err == nil, state)
	}
	return v, err
}

// Allow asks the breaker whether a call may proceed. It returns ErrStateOpen
// when the call must be rejected. A nil return must be followed by exactly
// one Record or Release, otherwise an admitted probe never settles.
func (c *CircuitBreaker) Allow() error {
	_, err := c.beforeCall()
	return err
}

// Record reports the outcome of a call previously admitted by Allow.
func (c *CircuitBreaker) Record(success bool) {
	c.record(success)
}

// Release returns an admission obtained from Allow without reporting an
// outcome, e.g. when the call was served from a cache and the dependency was
// never exercised.
func (c *CircuitBreaker) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probing = false
}

func (c *CircuitBreaker) beforeCall() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return StateClosed, nil
	}
	if c.probing {
		return StateOpen, ErrStateOpen
	}
	if c.cfg.Clock.Now().Sub(c.lastFailure) > c.cfg.RecoveryTime {
		c.probing = true
		return StateOpen, nil
	}
	return StateOpen, ErrStateOpen
}

func (c *CircuitBreaker) record(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probing {
		c.probing = false
		if success {
			c.state = StateClosed
			c.failures = 0
			return
		}
		c.lastFailure = c.cfg.Clock.Now()
		return
	}

	if success {
		c.failures = 0
		return
	}

	c.failures++
	c.lastFailure = c.cfg.Clock.Now()
	if c.state == StateClosed && c.failures >= c.cfg.Threshold {
		c.state = StateOpen
	}
}
