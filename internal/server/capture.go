package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebridge/internal/models"
)

// Capturer persists a token carried by a redirect's query and fragment.
type Capturer interface {
	CaptureFromRedirect(ctx context.Context, search, hash string) (map[models.ProviderID]models.Token, bool)
}

// CaptureRequest is the body of POST /capture.
type CaptureRequest struct {
	Search string `json:"search"`
	Hash   string `json:"hash"`
}

// CaptureResponse tells the page whether to strip its address and which providers hold tokens.
type CaptureResponse struct {
	Captured  bool     `json:"captured"`
	Providers []string `json:"providers"`
}

// CaptureHandler serves the redirect-capture page and endpoint.
type CaptureHandler struct {
	tokens Capturer
	logger *log.Logger
}

// NewCaptureHandler creates a [CaptureHandler] writing through tokens.
func NewCaptureHandler(tokens Capturer, logger *log.Logger) *CaptureHandler {
	return &CaptureHandler{tokens: tokens, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *CaptureHandler) Routes() []string {
	return []string{"GET /{$}", "POST /capture"}
}

func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		h.capture(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(capturePage))
}

func (h *CaptureHandler) capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		http.Error(w, "Invalid capture request", http.StatusBadRequest)
		return
	}

	tokens, captured := h.tokens.CaptureFromRedirect(r.Context(), req.Search, req.Hash)
	resp := CaptureResponse{Captured: captured, Providers: make([]string, 0, len(tokens))}
	for id := range tokens {
		resp.Providers = append(resp.Providers, string(id))
	}
	slices.Sort(resp.Providers)

	if captured {
		h.logger.Info("redirect captured", "providers", resp.Providers)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write capture response", "error", err)
	}
}

const capturePage = `<!DOCTYPE html>
<html>
<head>
    <title>tunebridge</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>tunebridge</h1>
        <p id="status">Checking for a login redirect…</p>
    </div>
    <script>
        fetch("/capture", {
            method: "POST",
            headers: { "Content-Type": "application/json" },
            body: JSON.stringify({ search: location.search, hash: location.hash })
        })
            .then(function (res) { return res.json(); })
            .then(function (body) {
                if (body.captured) {
                    history.replaceState(null, "", location.pathname);
                }
                var names = body.providers.length ? body.providers.join(", ") : "none";
                document.getElementById("status").textContent =
                    (body.captured ? "Login captured. " : "") + "Connected providers: " + names;
            })
            .catch(function () {
                document.getElementById("status").textContent = "Capture failed.";
            });
    </script>
</body>
</html>
`
