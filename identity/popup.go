package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const callbackPath = "/callback"

// Opener shows the provider's authorization page to the user
type Opener func(authURL string) error

// Popup runs one sign-in attempt through a loopback redirect listener,
// the desktop counterpart of a browser popup window.
type Popup struct {
	provider *Provider
	open     Opener
	addr     string
}

type PopupOption func(*Popup)

// WithListenAddr sets the loopback address ("127.0.0.1:0" by default)
func WithListenAddr(addr string) PopupOption {
	return func(p *Popup) {
		p.addr = addr
	}
}

func NewPopup(provider *Provider, open Opener, options ...PopupOption) *Popup {
	p := &Popup{
		provider: provider,
		open:     open,
		addr:     "127.0.0.1:0",
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

type popupResult struct {
	idToken string
	err     error
}

// Run opens the authorization page and waits for the redirect. It returns
// the verified provider ID token, or ctx's error if the user never
// finishes.
func (p *Popup) Run(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return "", fmt.Errorf("listening for callback: %w", err)
	}

	redirectURL := fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)
	authURL, pending := p.provider.Begin(redirectURL)

	results := make(chan popupResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := p.callback(ctx, r, pending)
		if res.err != nil {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Signed in. You can close this window."))
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("Callback listener stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := p.open(authURL); err != nil {
		return "", fmt.Errorf("opening authorization page: %w", err)
	}

	select {
	case res := <-results:
		return res.idToken, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Popup) callback(ctx context.Context, r *http.Request, pending Pending) popupResult {
	query := r.URL.Query()
	if errorParam := query.Get("error"); errorParam != "" {
		return popupResult{err: fmt.Errorf("authorization failed: %s - %s", errorParam, query.Get("error_description"))}
	}
	code := query.Get("code")
	if code == "" {
		return popupResult{err: errors.New("missing code parameter")}
	}
	idToken, err := p.provider.Complete(ctx, pending, code, query.Get("state"))
	return popupResult{idToken: idToken, err: err}
}
