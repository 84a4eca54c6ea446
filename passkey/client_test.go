package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChallengeClientDecodesChallenge(t *testing.T) {
	want := []byte("0123456789abcdef0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req challengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Purpose != PurposeSignIn {
			t.Errorf("expected signin purpose, got %q", req.Purpose)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": Encode(want), "ticket": "t1"})
	}))
	defer srv.Close()

	got, err := NewChallengeClient(srv.URL).Challenge(context.Background())
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("challenge mismatch: %q", got)
	}
}

func TestChallengeClientRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Too many challenges, try again in a minute"})
	}))
	defer srv.Close()

	_, err := NewChallengeClient(srv.URL).Fetch(context.Background(), PurposeRegister)
	if !errors.Is(err, ErrChallengeRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.Message != "Too many challenges, try again in a minute" {
		t.Fatalf("expected server message, got %v", err)
	}
	if errors.Is(err, ErrChallengeFailed) {
		t.Fatal("rate limit must be distinct from generic failure")
	}
}

func TestChallengeClientGenericFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, ``},
		{"missing challenge", http.StatusOK, `{}`},
		{"bad base64", http.StatusOK, `{"challenge":"***"}`},
		{"not json", http.StatusOK, `challenge`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewChallengeClient(srv.URL).Challenge(context.Background())
			if !errors.Is(err, ErrChallengeFailed) {
				t.Fatalf("expected ErrChallengeFailed, got %v", err)
			}
			if err.Error() != "Failed to get challenge" {
				t.Fatalf("unexpected message %q", err.Error())
			}
		})
	}
}
