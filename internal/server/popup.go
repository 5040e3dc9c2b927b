package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// Exchanger trades an authorization code for a token.
type Exchanger func(ctx context.Context, code string) (*oauth2.Token, error)

// PopupHandler handles the OAuth2 authorization-code callback inside the login popup.
type PopupHandler struct {
	exchange  Exchanger
	state     string
	callbacks LoginCallbacks
	provider  string

	mu          sync.Mutex
	callbackHit bool
}

// NewPopupHandler creates a popup callback handler.
//
// The state token should be cryptographically random for CSRF protection.
func NewPopupHandler(provider string, exchange Exchanger, state string, callbacks LoginCallbacks) *PopupHandler {
	return &PopupHandler{provider: provider, exchange: exchange, state: state, callbacks: callbacks}
}

// Routes returns the HTTP routes this handler serves.
func (h *PopupHandler) Routes() []string {
	return []string{"GET /callback"}
}

// ServeHTTP validates the state parameter, exchanges the authorization code, reports the
// outcome through the login callbacks and renders a self-closing page.
//
// A request with the wrong state is refused without touching the login, so a forged hit
// cannot end it before the provider's redirect arrives.
func (h *PopupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(h.state)) != 1 {
		h.render(w, http.StatusBadRequest, false, "Invalid state parameter")
		return
	}

	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	code := q.Get("code")
	if code == "" {
		reason := q.Get("error")
		switch {
		case reason == "":
			reason = "missing authorization code"
		case reason != "access_denied" && q.Get("error_description") != "":
			reason += ": " + q.Get("error_description")
		}
		h.callbacks.OnLoginError(reason)
		h.render(w, http.StatusBadRequest, false, "Authorization was not granted")
		return
	}

	token, err := h.exchange(r.Context(), code)
	if err != nil {
		h.callbacks.OnLoginError(fmt.Sprintf("token exchange failed: %v", err))
		h.render(w, http.StatusBadGateway, false, "Token exchange failed")
		return
	}

	h.callbacks.OnLoginSuccess(token)
	h.render(w, http.StatusOK, true, "You can return to the terminal.")
}

var popupPage = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Provider}} login</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; color: {{if .OK}}#1DB954{{else}}#E22134{{end}}; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{if .OK}}✓ Connected to {{.Provider}}{{else}}✗ {{.Provider}} login failed{{end}}</h1>
        <p>{{.Message}}</p>
    </div>
    <script>setTimeout(function () { window.close(); }, 1500);</script>
</body>
</html>
`))

func (h *PopupHandler) render(w http.ResponseWriter, status int, ok bool, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = popupPage.Execute(w, struct {
		Provider string
		OK       bool
		Message  string
	}{h.provider, ok, message})
}
