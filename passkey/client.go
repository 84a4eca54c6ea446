package passkey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/havenAuth/jwt"
)

// Purpose is the ceremony a challenge is requested for.
type Purpose = jwt.Purpose

const (
	PurposeRegister = jwt.PurposeRegister
	PurposeSignIn   = jwt.PurposeSignIn
)

var (
	// ErrChallengeFailed is returned for every unusable challenge response
	// other than a rate limit.
	ErrChallengeFailed = errors.New("Failed to get challenge")
	// ErrChallengeRateLimited is wrapped by [RateLimitError].
	ErrChallengeRateLimited = errors.New("challenge rate limited")
)

// RateLimitError reports an HTTP 429 from the challenge endpoint. Message is
// the server's user-facing text.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "Too many requests, please try again later"
	}
	return e.Message
}

func (e *RateLimitError) Unwrap() error { return ErrChallengeRateLimited }

// Challenge is a server-issued challenge and the ticket that must accompany
// the ceremony result.
type Challenge struct {
	Bytes  []byte
	Ticket string
}

// ChallengeSource supplies challenges to a [Flow].
type ChallengeSource interface {
	Fetch(ctx context.Context, purpose Purpose) (*Challenge, error)
}

// ChallengeClient fetches challenges over HTTP.
type ChallengeClient struct {
	Endpoint string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	// Header is added to every request, e.g. the session cookie for
	// registration challenges.
	Header http.Header
}

// NewChallengeClient returns a client for endpoint.
func NewChallengeClient(endpoint string) *ChallengeClient {
	return &ChallengeClient{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type challengeRequest struct {
	Purpose Purpose `json:"purpose"`
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
	Ticket    string `json:"ticket"`
	Message   string `json:"message"`
}

// Challenge returns the raw bytes of a sign-in challenge.
func (c *ChallengeClient) Challenge(ctx context.Context) ([]byte, error) {
	ch, err := c.Fetch(ctx, PurposeSignIn)
	if err != nil {
		return nil, err
	}
	return ch.Bytes, nil
}

// Fetch POSTs to the endpoint. A 429 yields a [*RateLimitError]; any other
// non-2xx status or malformed body yields [ErrChallengeFailed].
func (c *ChallengeClient) Fetch(ctx context.Context, purpose Purpose) (*Challenge, error) {
	body, err := json.Marshal(challengeRequest{Purpose: purpose})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	var decoded challengeResponse
	jsonErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode == http.StatusTooManyRequests {
		msg := ""
		if jsonErr == nil {
			msg = strings.TrimSpace(decoded.Message)
		}
		return nil, &RateLimitError{Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrChallengeFailed
	}
	if jsonErr != nil || decoded.Challenge == "" {
		return nil, ErrChallengeFailed
	}

	b, err := Decode(decoded.Challenge)
	if err != nil || len(b) == 0 {
		return nil, ErrChallengeFailed
	}
	return &Challenge{Bytes: b, Ticket: decoded.Ticket}, nil
}
