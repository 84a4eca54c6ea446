package passkey

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/havenAuth/internal"
	"github.com/MrEthical07/havenAuth/jwt"
	"github.com/redis/go-redis/v9"
)

// DefaultChallengeSize is the number of random bytes per challenge.
const DefaultChallengeSize = 32

var (
	// ErrInvalidChallenge covers bad tickets and challenge mismatches.
	ErrInvalidChallenge = errors.New("invalid passkey challenge")
	// ErrChallengeReplayed is returned when a ticket was already spent.
	ErrChallengeReplayed = errors.New("passkey challenge already used")
)

// IssuerOption configures an [Issuer].
type IssuerOption func(*Issuer)

// WithChallengeSize overrides [DefaultChallengeSize].
func WithChallengeSize(n int) IssuerOption {
	return func(i *Issuer) {
		if n >= 16 {
			i.size = n
		}
	}
}

// WithLedgerPrefix overrides the Redis key prefix of spent tickets.
func WithLedgerPrefix(prefix string) IssuerOption {
	return func(i *Issuer) {
		if prefix != "" {
			i.prefix = prefix
		}
	}
}

// WithIssuerLogger sets the logger.
func WithIssuerLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithIssuerClock overrides the wall clock used for ledger expiry.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// Issuer hands out challenges and spends them. Issuing is stateless: the
// ticket carries the challenge hash. Spending records the ticket id in
// Redis with SET NX until the ticket would have expired anyway.
type Issuer struct {
	tickets *jwt.Manager
	redis   redis.UniversalClient
	prefix  string
	size    int
	now     func() time.Time
	logger  *slog.Logger
}

// NewIssuer returns an Issuer.
func NewIssuer(tickets *jwt.Manager, client redis.UniversalClient, opts ...IssuerOption) (*Issuer, error) {
	if tickets == nil {
		return nil, errors.New("ticket manager is nil")
	}
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	i := &Issuer{
		tickets: tickets,
		redis:   client,
		prefix:  "hpc",
		size:    DefaultChallengeSize,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue returns a fresh challenge for purpose. Registration challenges are
// bound to userID.
func (i *Issuer) Issue(ctx context.Context, purpose Purpose, userID string) (*Challenge, error) {
	raw, err := internal.NewChallenge(i.size)
	if err != nil {
		return nil, err
	}
	ticket, claims, err := i.tickets.Issue(purpose, userID, challengeHash(raw))
	if err != nil {
		return nil, err
	}
	i.logger.DebugContext(ctx, "passkey challenge issued",
		"module", "passkey",
		"operation", "issue",
		"purpose", string(purpose),
		"ticket_id", claims.ID,
	)
	return &Challenge{Bytes: raw, Ticket: ticket}, nil
}

// Consume verifies that ticket was issued for purpose and challenge, then
// marks it spent. A second Consume of the same ticket fails with
// [ErrChallengeReplayed].
func (i *Issuer) Consume(ctx context.Context, ticket string, purpose Purpose, challenge []byte) (*jwt.TicketClaims, error) {
	claims, err := i.tickets.Parse(ticket, purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Challenge), []byte(challengeHash(challenge))) != 1 {
		return nil, fmt.Errorf("%w: challenge mismatch", ErrInvalidChallenge)
	}

	ttl := time.Second
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(i.now()); remaining > ttl {
			ttl = remaining
		}
	}
	ok, err := i.redis.SetNX(ctx, i.prefix+":"+claims.ID, 1, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrChallengeReplayed
	}
	return claims, nil
}
