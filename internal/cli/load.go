package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/pkg/config"
	"github.com/utafrali/AddressBook/pkg/httpclient"
)

// Fixture is one address entry in a fixture file.
type Fixture struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type loadOptions struct {
	file    string
	url     string
	token   string
	timeout time.Duration
}

// loadEnv holds SEED_* fallbacks for flags left unset on the command line.
type loadEnv struct {
	File    string        `env:"FILE"`
	URL     string        `env:"API_URL"`
	Token   string        `env:"TOKEN"`
	Timeout time.Duration `env:"TIMEOUT"`
}

func (o *loadOptions) applyEnv(cmd *cobra.Command) error {
	var e loadEnv
	if err := config.LoadWithPrefix(&e, "SEED_"); err != nil {
		return err
	}
	flags := cmd.Flags()
	if e.File != "" && !flags.Changed("file") {
		o.file = e.File
	}
	if e.URL != "" && !flags.Changed("url") {
		o.url = e.URL
	}
	if e.Token != "" && !flags.Changed("token") {
		o.token = e.Token
	}
	if e.Timeout > 0 && !flags.Changed("timeout") {
		o.timeout = e.Timeout
	}
	return nil
}

func newLoadCmd() *cobra.Command {
	opts := loadOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "POST fixture addresses to a running server",
		Long: `Read a JSON array of {"name","latitude","longitude"} objects and create
each one through the server's API. Creates are sent once: a 429 is retried
after Retry-After, but a timeout or 5xx stops the run because the address
may already exist. Rerunning after such a failure can duplicate fixtures
created before it. A circuit breaker stops the run when the server is down.

Unset flags fall back to SEED_FILE, SEED_API_URL, SEED_TOKEN and SEED_TIMEOUT.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.applyEnv(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := ReadFixtures(opts.file)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			loader := NewLoader(opts.url, opts.token, opts.timeout, logger)
			if err := loader.Ready(cmd.Context()); err != nil {
				return err
			}

			created, err := loader.Load(cmd.Context(), fixtures)
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d addresses\n", created, len(fixtures))
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "fixtures/addresses.json", "fixture file path")
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token for auth-enabled servers")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	return cmd
}

// ReadFixtures parses and validates a fixture file.
func ReadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	for i, f := range fixtures {
		a := domain.Address{Name: f.Name, Latitude: f.Latitude, Longitude: f.Longitude}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
	}
	return fixtures, nil
}

// Loader creates addresses through the HTTP API.
type Loader struct {
	baseURL string
	client  *httpclient.BreakerClient
	logger  *slog.Logger
}

// NewLoader builds a Loader whose client retries the readiness check and
// rate-limited creates, and trips a breaker after repeated failures.
func NewLoader(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Loader {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.Headers = map[string]string{"User-Agent": "addressbook-seed"}
	if token != "" {
		cfg.Headers["Authorization"] = "Bearer " + token
	}
	client := httpclient.NewBreakerClient(
		httpclient.New(cfg),
		httpclient.DefaultBreakerConfig("addressbook"),
		logger,
	)
	return &Loader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Ready checks that the server reports itself ready to serve traffic.
func (l *Loader) Ready(ctx context.Context) error {
	resp, err := l.client.Get(ctx, l.baseURL+"/health/ready")
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server not ready: status %d", resp.StatusCode)
	}
	return nil
}

// Load creates every fixture in order and returns how many succeeded. It
// stops at the first failure.
func (l *Loader) Load(ctx context.Context, fixtures []Fixture) (int, error) {
	for i, f := range fixtures {
		a, err := l.create(ctx, f)
		if err != nil {
			return i, fmt.Errorf("create %q: %w", f.Name, err)
		}
		l.logger.Info("address created", slog.Int64("id", a.ID), slog.String("name", a.Name))
	}
	return len(fixtures), nil
}

func (l *Loader) create(ctx context.Context, f Fixture) (*domain.Address, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal fixture: %w", err)
	}

	resp, err := l.client.Post(ctx, l.baseURL+"/api/v1/addresses", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "addressbook")
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data domain.Address `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &envelope.Data, nil
}
