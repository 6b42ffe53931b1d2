package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/wochagonnadu/taskbot/internal/store"
)

const (
	codeDigits      = 6
	codeMaxAttempts = 20
)

// GenerateInviteCode creates and persists a unique 6-digit numeric code
// valid for the gate's configured TTL.
func (g *Gate) GenerateInviteCode(ctx context.Context) (store.Invitation, error) {
	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := randomDigits(codeDigits)
		if err != nil {
			return store.Invitation{}, fmt.Errorf("generate code: %w", err)
		}
		if _, err := g.store.InvitationByCode(ctx, code); err == nil {
			continue // collision, roll again
		} else if !errors.Is(err, store.ErrNotFound) {
			return store.Invitation{}, fmt.Errorf("check code uniqueness: %w", err)
		}

		inv, err := g.store.CreateInvitation(ctx, store.Invitation{
			Code:      code,
			ExpiresAt: g.now().Add(g.codeTTL),
		})
		if err != nil {
			return store.Invitation{}, fmt.Errorf("save invite code: %w", err)
		}
		return inv, nil
	}
	return store.Invitation{}, errors.New("could not find an unused invite code")
}

func randomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + v.Int64())
	}
	return string(out), nil
}
