// authctl signs in against the API and makes authenticated requests with
// the persisted session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authhttp"
	"github.com/jrsteele09/go-auth-session/backend"
	"github.com/jrsteele09/go-auth-session/credentials"
	"github.com/jrsteele09/go-auth-session/identity"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/ui"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog/log"
)

const usage = `usage: authctl <command> [flags]

commands:
  login           -u username [-p password]
  register        -u username -e email [-p password] [-first name] [-last name] [-role role]
  provider-login  sign in through the configured OpenID provider
  logout          revoke and forget the current session
  whoami          print the signed in user
  status          print session state and token expiry
  get <path>      authenticated GET against the API
  admin           print the admin overview (admin and staff only)
`

type app struct {
	cfg      config.Config
	out      io.Writer
	notifier ui.Notifier
	store    credentials.Store
	router   *ui.Router
	service  *auth.SessionService
	backend  *backend.HTTPBackend
	api      *authhttp.Client
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := loadConfig(os.Getenv("AUTHCTL_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg)

	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := a.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Debug().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	store, err := credentials.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("[newApp] credential store: %w", err)
	}

	router := ui.NewRouter(cfg.GetHomeRoute())
	notifier := ui.Notifiers{ui.NewConsoleNotifier(os.Stderr), ui.LogNotifier{}}

	remote := backend.New(cfg)
	service, err := auth.NewSessionService(auth.Deps{
		Backend:   remote,
		Store:     store,
		Notifier:  notifier,
		Navigator: router,
	}, auth.WithHomeRoute(cfg.GetHomeRoute()), auth.WithExpiryCheck(cfg.GetExpiryCheck()))
	if err != nil {
		return nil, err
	}

	transport := authhttp.NewTransport(service,
		authhttp.WithFallbackStore(store),
		authhttp.WithNotifier(notifier),
		authhttp.WithNavigator(router),
		authhttp.WithSignInRoute(cfg.GetSignInRoute()),
	)

	return &app{
		cfg:      cfg,
		out:      out,
		notifier: notifier,
		store:    store,
		router:   router,
		service:  service,
		backend:  remote,
		api:      authhttp.NewClient(cfg.GetAPIBaseURL(), &http.Client{Transport: transport, Timeout: cfg.GetRequestTimeout()}),
	}, nil
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	a.service.Initialize()

	switch command {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "provider-login":
		return a.providerLogin(ctx)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "status":
		return a.status()
	case "get":
		if len(args) != 1 {
			return errors.New("get needs exactly one path")
		}
		return a.get(ctx, args[0])
	case "admin":
		if err := a.service.Authorize(users.RoleAdmin, users.RoleStaff); err != nil {
			fmt.Fprintln(a.out, "The admin overview needs an admin or staff session.")
			return err
		}
		return a.get(ctx, "/admin/overview")
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username or email")
	password := fs.String("p", os.Getenv("AUTHCTL_PASSWORD"), "password (defaults to $AUTHCTL_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.service.Login(ctx, auth.Credentials{Username: *username, Password: *password}); err != nil {
		return err
	}
	return a.whoami()
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	password := fs.String("p", os.Getenv("AUTHCTL_PASSWORD"), "password (defaults to $AUTHCTL_PASSWORD)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	role := fs.String("role", "", "customer, restaurant_owner or driver")
	if err := fs.Parse(args); err != nil {
		return err
	}

	err := a.service.Register(ctx, auth.Registration{
		Username:        *username,
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *password,
		FirstName:       *first,
		LastName:        *last,
		Role:            users.RoleType(*role),
	})
	if err != nil {
		return err
	}
	return a.whoami()
}

func (a *app) providerLogin(ctx context.Context) error {
	provider, err := identity.NewProvider(ctx, a.cfg)
	if err != nil {
		return err
	}
	popup := identity.NewPopup(provider, func(authURL string) error {
		fmt.Fprintf(a.out, "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
		return nil
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	idToken, err := popup.Run(ctx)
	if err != nil {
		a.notifier.Notify(ui.Notification{Level: ui.LevelError, Message: auth.MsgProviderFailed})
		return err
	}
	if err := a.service.LoginWithProvider(ctx, idToken); err != nil {
		return err
	}
	return a.whoami()
}

// logout revokes the token server side when possible, then clears locally.
// A token the server already rejects is not reported as an expired session.
func (a *app) logout(ctx context.Context) error {
	if tok, ok := a.service.Token(); ok {
		if err := a.backend.Logout(ctx, tok); err != nil {
			log.Debug().Err(err).Msg("Server side logout failed")
		}
	}
	if err := a.service.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *app) whoami() error {
	current, ok := a.service.Current()
	if !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return auth.ErrNotAuthenticated
	}
	return a.printJSON(current.User)
}

type statusReport struct {
	Authenticated bool        `json:"authenticated"`
	User          *users.User `json:"user,omitempty"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	Expired       bool        `json:"expired,omitempty"`
	StoreKey      string      `json:"storeKey"`
	Store         string      `json:"store"`
}

func (a *app) status() error {
	state := a.service.State()
	report := statusReport{
		Authenticated: state.Authenticated(),
		StoreKey:      a.store.Key(),
		Store:         a.cfg.GetStoreBackend(),
	}
	if state.Authenticated() {
		user := state.Session.User
		report.User = &user
		if expiry, ok := state.Session.Expiry(); ok {
			report.ExpiresAt = &expiry
		}
		report.Expired = state.Session.Expired()
	}
	return a.printJSON(report)
}

func (a *app) get(ctx context.Context, path string) error {
	a.router.Navigate(path)

	var body json.RawMessage
	if err := a.api.Get(ctx, path, &body); err != nil {
		if errors.Is(err, authhttp.ErrUnauthorized) {
			fmt.Fprintf(a.out, "Sign in again with `authctl login`, then retry %s\n", path)
		}
		return err
	}
	return a.printJSON(body)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
