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

import "net/http"

// RoundTripper wraps an http.RoundTripper with a CircuitBreaker. It is used
// to guard outbound fetches of the identity provider's key discovery
// endpoint.
type RoundTripper struct {
	tripper http.RoundTripper
	cb      *CircuitBreaker
}

// NewRoundTripper returns a RoundTripper guarded by cb.
func NewRoundTripper(cb *CircuitBreaker, tripper http.RoundTripper) *RoundTripper {
	if tripper == nil {
		tripper = http.DefaultTransport
	}
	return &RoundTripper{tripper: tripper, cb: cb}
}

// RoundTrip forwards the request to the wrapped http.RoundTripper if the
// CircuitBreaker allows it.
func (t *RoundTripper) RoundTrip(request *http.Request) (*http.Response, error) {
	v, err := t.cb.Execute(func() (any, error) {
		return t.tripper.RoundTrip(request)
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}
