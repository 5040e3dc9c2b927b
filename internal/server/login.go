package server

import (
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/tunebridge/internal/shared"
)

// LoginCallbacks is the two-method contract a login popup reports through.
//
// Exactly one method is invoked, exactly once, per login attempt.
type LoginCallbacks interface {
	OnLoginSuccess(token *oauth2.Token)
	OnLoginError(reason string)
}

// LoginResult is the outcome of one login attempt.
type LoginResult struct {
	Token *oauth2.Token
	Err   error
}

// LoginChannel implements [LoginCallbacks] by delivering the first call on a channel.
// Later calls are dropped.
type LoginChannel struct {
	once   sync.Once
	result chan LoginResult
}

// NewLoginChannel creates a [LoginChannel] ready to receive one result.
func NewLoginChannel() *LoginChannel {
	return &LoginChannel{result: make(chan LoginResult, 1)}
}

func (c *LoginChannel) OnLoginSuccess(token *oauth2.Token) {
	if token == nil {
		c.OnLoginError("empty token")
		return
	}
	c.send(LoginResult{Token: token})
}

// OnLoginError maps access_denied (the user closed or declined the consent screen) to
// [shared.ErrLoginCancelled] and everything else to [shared.ErrAuthFailed].
func (c *LoginChannel) OnLoginError(reason string) {
	var err error
	switch reason {
	case "access_denied", "cancelled", "user_denied":
		err = shared.ErrLoginCancelled
	default:
		err = fmt.Errorf("%w: %s", shared.ErrAuthFailed, reason)
	}
	c.send(LoginResult{Err: err})
}

func (c *LoginChannel) send(r LoginResult) {
	c.once.Do(func() {
		c.result <- r
		close(c.result)
	})
}

// Result returns the channel receiving exactly one result before it is closed.
func (c *LoginChannel) Result() <-chan LoginResult {
	return c.result
}
