package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidToken = errors.New("invalid or revoked token")

// Identity is the authenticated caller: a team, optionally with committee
// rights. Committee members may run finalization and other admin operations.
type Identity struct {
	TeamID    string
	TeamName  string
	Committee bool
}

// Verifier resolves bearer tokens against the teams table. Tokens are stored
// as hex-encoded SHA-256 digests; the plaintext never touches the database.
type Verifier struct {
	db *pgxpool.Pool
}

func NewVerifier(db *pgxpool.Pool) *Verifier {
	return &Verifier{db: db}
}

func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	digest := sha256.Sum256([]byte(token))

	var id Identity
	err := v.db.QueryRow(ctx, `
		SELECT id, name, committee
		FROM auction.teams
		WHERE api_token_hash = $1 AND active
	`, hex.EncodeToString(digest[:])).Scan(&id.TeamID, &id.TeamName, &id.Committee)
	if err == pgx.ErrNoRows {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// HashToken is what provisioning tooling stores in api_token_hash.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(digest[:])
}
