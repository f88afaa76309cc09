package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
)

// Refresh obtains a new access token with the stored refresh token.
// Concurrent callers share one request. On failure the session is logged
// out and ErrSessionExpired is returned.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	v, err, shared := s.refreshes.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if shared {
		logging.DebugContext(ctx, "joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	rt := s.refreshToken()
	if rt == "" {
		return "", timelyerrors.ErrNotAuthenticated
	}

	resp, err := s.backend.Refresh(ctx, rt, s.deviceID)
	if err != nil || !resp.Success || resp.Token == "" {
		if err == nil {
			err = failedResponse("token refresh", resp)
		}
		logging.Warn("token refresh failed, logging out", logging.KeyError, err)
		if lerr := s.Logout(ctx); lerr != nil {
			logging.Warn("failed to clear session", logging.KeyError, lerr)
		}
		return "", timelyerrors.Wrapf(timelyerrors.ErrSessionExpired, "%v", err)
	}

	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return "", timelyerrors.ErrNotAuthenticated
	}
	next := *cur
	next.AccessToken = resp.Token
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}
	if next.User.Username == "" {
		if user, verr := s.backend.Verify(ctx, resp.Token); verr == nil {
			next.User = user
		} else {
			logging.Warn("could not resolve user after refresh", logging.KeyError, verr)
		}
	}
	if err := s.set(&next); err != nil {
		return "", err
	}
	logging.DebugContext(ctx, "access token refreshed", "token", logging.MaskToken(resp.Token))
	return resp.Token, nil
}

// Token returns an access token that is not about to expire, refreshing
// first when the JWT exp claim falls within the refresh skew.
func (s *Session) Token(ctx context.Context) (string, error) {
	tok := s.AccessToken()
	if tok == "" {
		return "", timelyerrors.ErrNotAuthenticated
	}
	if exp, ok := TokenExpiry(tok); ok && !s.now().Add(s.skew).Before(exp) {
		logging.DebugContext(ctx, "access token near expiry", logging.KeyFireAt, exp)
		return s.Refresh(ctx)
	}
	return tok, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
