package services

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// stubAuthorizer records the login request and either returns a fixed result or
// runs the request's code exchange.
type stubAuthorizer struct {
	mu       sync.Mutex
	requests []LoginRequest
	code     string
	token    *oauth2.Token
	err      error
}

func (s *stubAuthorizer) Authorize(ctx context.Context, req LoginRequest) (*oauth2.Token, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.code != "" {
		return req.Exchange(ctx, s.code, "http://127.0.0.1:3000/callback")
	}
	return s.token, nil
}

func (s *stubAuthorizer) last() LoginRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}
