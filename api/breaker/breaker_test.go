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

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, clock clockwork.Clock) *CircuitBreaker {
	t.Helper()
	cb, err := New(Config{
		Clock:        clock,
		Threshold:    3,
		RecoveryTime: 30 * time.Second,
	})
	require.NoError(t, err)
	return cb
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := newTestBreaker(t, clock)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (any, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
		require.Equal(t, StateClosed, cb.State())
	}

	// A success in between resets the streak.
	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (any, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}
	require.Equal(t, StateOpen, cb.State())

	_, err = cb.Execute(func() (any, error) { return "ok", nil })
	require.ErrorIs(t, err, ErrStateOpen)
}

func TestBreakerProbeRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := newTestBreaker(t, clock)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		cb.Execute(func() (any, error) { return nil, boom })
	}
	require.Equal(t, StateOpen, cb.State())

	// Within the recovery window everything is rejected.
	clock.Advance(29 * time.Second)
	require.ErrorIs(t, cb.Allow(), ErrStateOpen)

	// Past the window a single probe goes through; a concurrent caller is
	// still rejected until the probe settles.
	clock.Advance(2 * time.Second)
	require.NoError(t, cb.Allow())
	require.ErrorIs(t, cb.Allow(), ErrStateOpen)

	// A failed probe keeps the breaker open and restarts the window.
	cb.Record(false)
	require.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Allow(), ErrStateOpen)

	clock.Advance(31 * time.Second)
	require.NoError(t, cb.Allow())
	cb.Record(true)
	require.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Allow())
	cb.Record(true)
}

func TestBreakerReleaseReturnsProbe(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := newTestBreaker(t, clock)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		cb.Execute(func() (any, error) { return nil, boom })
	}
	clock.Advance(31 * time.Second)

	// The probe admission is handed back without an outcome; the breaker
	// stays open and the next caller gets the probe slot instead.
	require.NoError(t, cb.Allow())
	cb.Release()
	require.Equal(t, StateOpen, cb.State())
	require.NoError(t, cb.Allow())
	cb.Record(true)
	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerOnExecute(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var outcomes []bool
	var states []State
	cb, err := New(Config{
		Clock:        clock,
		Threshold:    1,
		RecoveryTime: time.Second,
		OnExecute: func(success bool, state State) {
			outcomes = append(outcomes, success)
			states = append(states, state)
		},
	})
	require.NoError(t, err)

	cb.Execute(func() (any, error) { return nil, errors.New("boom") })
	cb.Execute(func() (any, error) { return "ok", nil })

	require.Equal(t, []bool{false, false}, outcomes)
	require.Equal(t, []State{StateClosed, StateOpen}, states)
}

func TestBreakerConfigValidation(t *testing.T) {
	_, err := New(Config{Threshold: 0, RecoveryTime: time.Second})
	require.Error(t, err)
	_, err = New(Config{Threshold: 3, RecoveryTime: 0})
	require.Error(t, err)
}
