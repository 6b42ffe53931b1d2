// Package auth maps external chat identities onto stored users and gates
// the two bot surfaces. Denial is an outcome, not an error: handlers drop
// the action after showing the code/key entry affordance.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wochagonnadu/taskbot/internal/store"
)

// Denial reasons surfaced on Outcome.
const (
	ReasonUnknownIdentity = "unknown identity"
	ReasonAdminRequired   = "admin role required"
)

var (
	ErrCodeInvalid    = errors.New("invite code invalid")
	ErrCodeExpired    = errors.New("invite code expired")
	ErrCodeUsed       = errors.New("invite code already used")
	ErrAlreadyMember  = errors.New("identity already registered")
	ErrWrongMasterKey = errors.New("master key mismatch")
)

// Outcome is the tagged result of an authorization check, so callers
// cannot mistake "denied" for "not yet checked".
type Outcome struct {
	User   *store.User
	Reason string
}

func (o Outcome) Authorized() bool { return o.User != nil }

func authorized(user store.User) Outcome { return Outcome{User: &user} }

func denied(reason string) Outcome { return Outcome{Reason: reason} }

type Gate struct {
	store     store.Store
	masterKey string
	codeTTL   time.Duration
	now       func() time.Time
}

func NewGate(st store.Store, masterKey string, codeTTL time.Duration) *Gate {
	if codeTTL <= 0 {
		codeTTL = 24 * time.Hour
	}
	return &Gate{
		store:     st,
		masterKey: masterKey,
		codeTTL:   codeTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock, for tests.
func (g *Gate) SetNow(now func() time.Time) {
	g.now = now
}

// Resolve looks up the user behind an external identity. requireAdmin
// additionally demands the admin role (the admin-surface check).
func (g *Gate) Resolve(ctx context.Context, externalID int64, requireAdmin bool) (Outcome, error) {
	user, err := g.store.UserByTelegramID(ctx, externalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return denied(ReasonUnknownIdentity), nil
		}
		return Outcome{}, fmt.Errorf("resolve identity %d: %w", externalID, err)
	}
	if requireAdmin && user.Role != store.RoleAdmin {
		return denied(ReasonAdminRequired), nil
	}
	return authorized(user), nil
}

// RedeemInviteCode validates a 6-digit code and creates a standard-role
// user for the identity. A code authorizes at most one user, ever.
func (g *Gate) RedeemInviteCode(ctx context.Context, externalID int64, code, username, fullName string) (store.User, error) {
	code = strings.TrimSpace(code)

	if _, err := g.store.UserByTelegramID(ctx, externalID); err == nil {
		return store.User{}, ErrAlreadyMember
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("check existing identity: %w", err)
	}

	inv, err := g.store.InvitationByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrCodeInvalid
		}
		return store.User{}, fmt.Errorf("look up invite code: %w", err)
	}
	if inv.Used {
		return store.User{}, ErrCodeUsed
	}
	if inv.ExpiresAt.Before(g.now()) {
		return store.User{}, ErrCodeExpired
	}

	user, err := g.store.CreateUser(ctx, store.User{
		TelegramID: &externalID,
		Username:   username,
		FullName:   fullName,
		Role:       store.RoleUser,
	})
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	if err := g.store.MarkInvitationUsed(ctx, inv.ID); err != nil {
		return store.User{}, fmt.Errorf("mark invitation used: %w", err)
	}
	return user, nil
}

// RedeemMasterKey elevates (or creates) the identity as admin when the
// supplied key matches the configured secret.
func (g *Gate) RedeemMasterKey(ctx context.Context, externalID int64, key, username, fullName string) (store.User, error) {
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(g.masterKey)) != 1 {
		return store.User{}, ErrWrongMasterKey
	}

	admin := store.RoleAdmin
	user, err := g.store.UserByTelegramID(ctx, externalID)
	switch {
	case err == nil:
		user, err = g.store.UpdateUser(ctx, user.ID, store.UserUpdate{Role: &admin})
		if err != nil {
			return store.User{}, fmt.Errorf("upgrade user role: %w", err)
		}
		return user, nil
	case errors.Is(err, store.ErrNotFound):
		user, err = g.store.CreateUser(ctx, store.User{
			TelegramID: &externalID,
			Username:   username,
			FullName:   fullName,
			Role:       admin,
		})
		if err != nil {
			return store.User{}, fmt.Errorf("create admin user: %w", err)
		}
		return user, nil
	default:
		return store.User{}, fmt.Errorf("check existing identity: %w", err)
	}
}
