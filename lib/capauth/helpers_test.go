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

package capauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	logutils "github.com/capmesh/fabric/lib/utils/log"
)

func TestMain(m *testing.M) {
	logutils.InitForTests()
	m.Run()
}

const testIssuer = "https://idp.test.capmesh.io"

// issuerKeys is a signing authority for tests: a set of RSA keys whose
// public halves are served through a staticKeySource.
type issuerKeys struct {
	keys map[string]*rsa.PrivateKey
}

func newIssuerKeys(t *testing.T, kids ...string) *issuerKeys {
	t.Helper()
	ik := &issuerKeys{keys: make(map[string]*rsa.PrivateKey)}
	for _, kid := range kids {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		ik.keys[kid] = key
	}
	return ik
}

func (ik *issuerKeys) keySet(kids ...string) *jose.JSONWebKeySet {
	var ks jose.JSONWebKeySet
	for _, kid := range kids {
		ks.Keys = append(ks.Keys, jose.JSONWebKey{
			Key:       ik.keys[kid].Public(),
			KeyID:     kid,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	return &ks
}

// tokenSpec describes a token to mint.
type tokenSpec struct {
	kid          string
	issuer       string
	subject      string
	audience     []string
	expiry       time.Time
	issuedAt     time.Time
	capabilities []string
	delegatee    string
	extra        map[string]any
}

func (ik *issuerKeys) sign(t *testing.T, spec tokenSpec) string {
	t.Helper()
	key, ok := ik.keys[spec.kid]
	require.True(t, ok, "no signing key %q", spec.kid)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithHeader("kid", spec.kid))
	require.NoError(t, err)

	std := jwt.Claims{
		Issuer:   spec.issuer,
		Subject:  spec.subject,
		Audience: jwt.Audience(spec.audience),
		Expiry:   jwt.NewNumericDate(spec.expiry),
	}
	if !spec.issuedAt.IsZero() {
		std.IssuedAt = jwt.NewNumericDate(spec.issuedAt)
	}
	custom := map[string]any{
		"capabilities": spec.capabilities,
	}
	if spec.delegatee != "" {
		custom["delegatee"] = spec.delegatee
	}
	for k, v := range spec.extra {
		custom[k] = v
	}

	token, err := jwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	require.NoError(t, err)
	return token
}

// staticKeySource serves a fixed key set and records refreshes. rotated,
// when set, replaces the set on the first ForceRefresh.
type staticKeySource struct {
	keys      *jose.JSONWebKeySet
	rotated   *jose.JSONWebKeySet
	refreshes int
	err       error
}

func (s *staticKeySource) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.keys, nil
}

func (s *staticKeySource) ForceRefresh() {
	s.refreshes++
	if s.rotated != nil {
		s.keys = s.rotated
		s.rotated = nil
	}
}

func newTestVerifier(t *testing.T, source KeySource, clock clockwork.Clock) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{
		Issuer:    testIssuer,
		KeySource: source,
		Clock:     clock,
	})
	require.NoError(t, err)
	return v
}
