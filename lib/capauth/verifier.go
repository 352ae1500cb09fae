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

// Package capauth verifies capability tokens and decides authorization:
// RS256 signature verification against the issuer's key set, capability and
// audience matching with trailing-wildcard semantics, and delegation proof
// checking.
package capauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/capmesh/fabric"
	"github.com/capmesh/fabric/api/types"
	"github.com/capmesh/fabric/lib/defaults"
	logutils "github.com/capmesh/fabric/lib/utils/log"
)

// KeySource provides the issuer's public keys. Implemented by
// keyset.Cache.
type KeySource interface {
	// Keys returns the current key set.
	Keys(ctx context.Context) (*jose.JSONWebKeySet, error)
	// ForceRefresh marks the key set stale.
	ForceRefresh()
}

// VerifierConfig holds parameters of a Verifier.
type VerifierConfig struct {
	// Issuer is the expected iss claim.
	Issuer string
	// KeySource supplies the issuer's public keys.
	KeySource KeySource
	// Clock is used for expiry checks. Defaults to a real clock.
	Clock clockwork.Clock
	// ClockSkew is the tolerance applied to the issued-at claim.
	ClockSkew time.Duration
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *VerifierConfig) CheckAndSetDefaults() error {
	if c.Issuer == "" {
		return trace.BadParameter("missing parameter Issuer")
	}
	if c.KeySource == nil {
		return trace.BadParameter("missing parameter KeySource")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaults.ClockSkew
	}
	return nil
}

// Verifier validates compact signed capability tokens. Only RS256 is
// accepted; alg=none and symmetric algorithms are rejected at parse time.
type Verifier struct {
	cfg    VerifierConfig
	logger *slog.Logger
}

// NewVerifier returns a Verifier for the given config.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Verifier{
		cfg:    cfg,
		logger: logutils.NewPackageLogger(fabric.ComponentKey, fabric.Component("capauth")),
	}, nil
}

// customClaims are the fabric-specific claims of a capability token.
type customClaims struct {
	Capabilities []string `json:"capabilities"`
	Delegatee    string   `json:"delegatee"`
}

// standardClaimNames are claims lifted into typed fields; everything else
// lands in Claims.Extra.
var standardClaimNames = []string{
	"iss", "sub", "aud", "exp", "iat", "nbf", "jti", "capabilities", "delegatee",
}

// Verify validates token and returns its parsed claims. It checks, in
// order: a present kid header, a known signing key (forcing one key set
// refresh on a miss), an RS256 signature, the configured issuer, expiry,
// issued-at within clock skew, and that expectedAudience appears in the aud
// claim (exact match; wildcards play no role at this layer).
func (v *Verifier) Verify(ctx context.Context, token, expectedAudience string) (*types.Claims, error) {
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, trace.AccessDenied("token is malformed or signed with a disallowed algorithm")
	}
	if len(tok.Headers) != 1 {
		return nil, trace.AccessDenied("token must carry exactly one signature")
	}
	kid := tok.Headers[0].KeyID
	if kid == "" {
		return nil, trace.AccessDenied("token header is missing a key identifier")
	}

	key, err := v.signingKey(ctx, kid)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var std jwt.Claims
	var custom customClaims
	extra := map[string]any{}
	if err := tok.Claims(key, &std, &custom, &extra); err != nil {
		return nil, trace.AccessDenied("token signature verification failed")
	}
	for _, name := range standardClaimNames {
		delete(extra, name)
	}

	now := v.cfg.Clock.Now()
	if err := std.ValidateWithLeeway(jwt.Expected{
		Issuer:      v.cfg.Issuer,
		AnyAudience: jwt.Audience{expectedAudience},
		Time:        now,
	}, v.cfg.ClockSkew); err != nil {
		switch {
		case errors.Is(err, jwt.ErrInvalidIssuer):
			return nil, trace.AccessDenied("token was not issued by the configured issuer")
		case errors.Is(err, jwt.ErrInvalidAudience):
			return nil, trace.AccessDenied("token audience does not include %q", expectedAudience)
		case errors.Is(err, jwt.ErrExpired):
			return nil, trace.AccessDenied("token is expired")
		case errors.Is(err, jwt.ErrIssuedInTheFuture):
			return nil, trace.AccessDenied("token was issued in the future")
		default:
			return nil, trace.AccessDenied("token claims are invalid")
		}
	}

	if std.Expiry == nil || !std.Expiry.Time().After(now) {
		return nil, trace.AccessDenied("token is expired")
	}
	if std.IssuedAt != nil && std.IssuedAt.Time().After(now.Add(v.cfg.ClockSkew)) {
		return nil, trace.AccessDenied("token was issued in the future")
	}

	claims := &types.Claims{
		Issuer:       std.Issuer,
		Subject:      std.Subject,
		Audience:     types.Audience(std.Audience),
		Expiry:       std.Expiry.Time(),
		Capabilities: custom.Capabilities,
		Delegatee:    custom.Delegatee,
		Extra:        extra,
	}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}

	if claims.HasSuperCapability() {
		v.logger.WarnContext(ctx, "Accepted token carrying the bare '*' super-capability",
			"subject", claims.Subject, "issuer", claims.Issuer)
	}

	return claims, nil
}

// signingKey locates the public key named by kid, forcing exactly one key
// set refresh when the cached set does not contain it.
func (v *Verifier) signingKey(ctx context.Context, kid string) (jose.JSONWebKey, error) {
	ks, err := v.cfg.KeySource.Keys(ctx)
	if err != nil {
		return jose.JSONWebKey{}, trace.Wrap(err)
	}
	if keys := ks.Key(kid); len(keys) > 0 {
		return keys[0], nil
	}

	// The key set may have rotated since the last fetch.
	v.cfg.KeySource.ForceRefresh()
	ks, err = v.cfg.KeySource.Keys(ctx)
	if err != nil {
		return jose.JSONWebKey{}, trace.Wrap(err)
	}
	if keys := ks.Key(kid); len(keys) > 0 {
		return keys[0], nil
	}
	return jose.JSONWebKey{}, trace.AccessDenied("no signing key matches key identifier %q", kid)
}
