// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/spinbox/internal/api/connect"
	"github.com/osa030/spinbox/internal/app/check"
	"github.com/osa030/spinbox/internal/app/notification"
	"github.com/osa030/spinbox/internal/app/planning"
	"github.com/osa030/spinbox/internal/app/player"
	"github.com/osa030/spinbox/internal/domain/plan"
	"github.com/osa030/spinbox/internal/infra/claude"
	"github.com/osa030/spinbox/internal/infra/config"
	"github.com/osa030/spinbox/internal/infra/logger"
	"github.com/osa030/spinbox/internal/infra/plansource"
	"github.com/osa030/spinbox/internal/infra/songbpm"
	"github.com/osa030/spinbox/internal/infra/spotify"
)

var (
	app        = kingpin.New("spinbox-server", "spinbox class player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	planFile    = app.Flag("plan", "Path to a YAML or JSON plan file").String()
	planID      = app.Flag("plan-id", "Plan ID on the plans API").String()
	playlistURL = app.Flag("playlist", "Spotify playlist to build the plan from").String()
	timerOnly   = app.Flag("timer-only", "Run the timer without controlling Spotify").Bool()
	autoplay    = app.Flag("autoplay", "Start playing as soon as the plan is loaded").Bool()
	resolve     = app.Flag("resolve-songs", "Look up Spotify tracks for segments that name a song without a URI").Bool()

	startCmd      = app.Command("start", "Start the server (default)").Default()
	checkCmd      = app.Command("check", "Load the plan, print check findings and exit")
	listChecksCmd = app.Command("list-checks", "List available plan checks and exit")
	exportCmd     = app.Command("export", "Create a Spotify playlist from the plan's tracks and exit")
	exportPublic  = exportCmd.Flag("public", "Make the exported playlist public").Bool()
	generateCmd   = app.Command("generate", "Generate a plan with AI, write it as YAML and exit")
	genTheme      = generateCmd.Flag("theme", "Class theme").Required().String()
	genMinutes    = generateCmd.Flag("minutes", "Class length in minutes (15-120)").Default("50").Int()
	genOut        = generateCmd.Flag("out", "Output plan file").Default("plan.yaml").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listChecksCmd.FullCommand() {
		printChecks()
		return
	}

	loggerConfig := logger.Config{Level: "info", File: *logfile}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *timerOnly {
		cfg.Player.TimerOnly = true
	}

	switch command {
	case checkCmd.FullCommand():
		err = runCheck(cfg)
	case exportCmd.FullCommand():
		err = runExport(cfg)
	case generateCmd.FullCommand():
		err = runGenerate(cfg)
	case startCmd.FullCommand():
		err = run(cfg)
	}
	if err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// deps holds the external clients built from config. Any of them may be nil.
type deps struct {
	spotify  *spotify.Client
	songBPM  *songbpm.Client
	plansAPI *plansource.Client
}

func newDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	if cfg.SpotifyEnabled() {
		c, err := spotify.New(ctx, spotify.Config{
			ClientID:          cfg.Spotify.ClientID,
			ClientSecret:      cfg.Spotify.ClientSecret,
			RefreshToken:      cfg.Spotify.RefreshToken,
			Market:            cfg.Spotify.Market,
			RequestsPerSecond: cfg.Spotify.RequestsPerSecond,
			Burst:             cfg.Spotify.Burst,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		d.spotify = c
	}

	if cfg.GetSongBPM.APIKey != "" {
		c, err := songbpm.New(songbpm.Config{
			APIKey:  cfg.GetSongBPM.APIKey,
			BaseURL: cfg.GetSongBPM.BaseURL,
			Timeout: cfg.GetSongBPM.Timeout(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create GetSongBPM client")
		}
		d.songBPM = c
	}

	if cfg.PlansAPI.BaseURL != "" {
		c, err := plansource.New(plansource.Config{
			BaseURL: cfg.PlansAPI.BaseURL,
			Token:   cfg.PlansAPI.Token,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create plans API client")
		}
		d.plansAPI = c
	}

	return d, nil
}

// loadPlan loads the plan named by exactly one of --plan, --plan-id and --playlist,
// then resolves song names when --resolve-songs is set.
func loadPlan(ctx context.Context, d *deps) (*plan.Plan, error) {
	p, err := fetchPlan(ctx, d)
	if err != nil {
		return nil, err
	}
	if *resolve {
		if d.spotify == nil {
			return nil, errors.New("spotify credentials are required for --resolve-songs")
		}
		n := planning.ResolveSongs(ctx, d.spotify, p)
		zlog.Info().Msgf("Resolved %d songs on Spotify", n)
	}
	return p, nil
}

func fetchPlan(ctx context.Context, d *deps) (*plan.Plan, error) {
	sources := 0
	for _, v := range []string{*planFile, *planID, *playlistURL} {
		if v != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of --plan, --plan-id or --playlist is required")
	}

	switch {
	case *planFile != "":
		zlog.Info().Msgf("Loading plan file %s", *planFile)
		return plansource.LoadFile(*planFile)

	case *planID != "":
		if d.plansAPI == nil {
			return nil, errors.New("plans_api.base_url is required for --plan-id")
		}
		zlog.Info().Msgf("Fetching plan %s", *planID)
		return d.plansAPI.GetPlan(ctx, *planID)

	default:
		if d.spotify == nil {
			return nil, errors.New("spotify credentials are required for --playlist")
		}
		var tempos planning.TempoSource
		if d.songBPM != nil {
			tempos = d.songBPM
		}
		planner := planning.NewPlanner(d.spotify, d.spotify, tempos)
		return planner.FromPlaylist(ctx, *playlistURL)
	}
}

// runCheck prints every finding for the plan.
func runCheck(cfg *config.Config) error {
	ctx := context.Background()
	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}
	p, err := loadPlan(ctx, d)
	if err != nil {
		return err
	}

	settings := cfg.EnabledChecks()
	if len(settings) == 0 {
		// Nothing configured: run every check with defaults
		for _, name := range check.Names() {
			settings[name] = nil
		}
	}
	chain, err := check.BuildChain(settings)
	if err != nil {
		return errors.Wrap(err, "invalid check config")
	}

	findings := chain.Run(p)
	fmt.Printf("%s: %d segments, %d seconds\n", p.Theme, len(p.Segments), p.TotalSeconds())
	for _, f := range findings {
		fmt.Printf("  %s\n", f)
	}
	if len(findings) == 0 {
		fmt.Println("  no findings")
	}
	return nil
}

// runExport creates a Spotify playlist from the plan's tracks.
func runExport(cfg *config.Config) error {
	ctx := context.Background()
	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}
	if d.spotify == nil {
		return errors.New("spotify credentials are required for export")
	}
	p, err := loadPlan(ctx, d)
	if err != nil {
		return err
	}

	export, err := planning.ExportPlaylist(ctx, d.spotify, p, *exportPublic)
	if err != nil {
		return errors.Wrap(err, "failed to export playlist")
	}
	fmt.Printf("%s: %d tracks\n%s\n", export.Playlist.Name, export.TracksAdded, export.Playlist.URL)
	return nil
}

// runGenerate drafts a plan and writes it to --out. Suggested songs are
// linked to Spotify tracks when credentials are configured.
func runGenerate(cfg *config.Config) error {
	ctx := context.Background()
	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}

	gen, err := claude.New(claude.Config{
		APIKey:    cfg.Generator.APIKey,
		Model:     cfg.Generator.Model,
		MaxTokens: cfg.Generator.MaxTokens,
		BaseURL:   cfg.Generator.BaseURL,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create generator")
	}

	var searcher planning.TrackSearcher
	if d.spotify != nil {
		searcher = d.spotify
	}
	p, err := planning.Generate(ctx, gen, searcher, planning.GenerateRequest{
		Theme:           *genTheme,
		DurationMinutes: *genMinutes,
	})
	if err != nil {
		return err
	}
	if err := plansource.WriteFile(*genOut, p); err != nil {
		return err
	}
	fmt.Printf("%s: %d segments, %d minutes\n%s\n", p.Theme, len(p.Segments), p.TotalDurationMinutes, *genOut)
	return nil
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	chain, err := check.BuildChain(cfg.EnabledChecks())
	if err != nil {
		return errors.Wrap(err, "invalid check config")
	}

	ctx := context.Background()
	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}

	p, err := loadPlan(ctx, d)
	if err != nil {
		return errors.Wrap(err, "failed to load plan")
	}
	chain.Run(p)

	var playback player.Playback
	if !cfg.Player.TimerOnly && d.spotify != nil {
		pb, err := connectDevice(ctx, d.spotify, cfg.Spotify.Device)
		if err != nil {
			zlog.Warn().Err(err).Msg("Spotify device unavailable, continuing without music")
		} else {
			playback = pb
		}
	}

	notifications := notification.NewManager()
	notifications.SetSendTimeout(cfg.Notification.SendTimeout())

	var cues player.CueSink
	if cfg.Player.AudioCues {
		cues = player.LogCueSink{}
	}

	session := player.NewSession(player.Config{
		TimerOnly:        cfg.Player.TimerOnly,
		Volume:           cfg.Player.Volume,
		AudioCues:        cfg.Player.AudioCues,
		WarningSeconds:   cfg.Player.WarningSeconds,
		CountdownSeconds: cfg.Player.CountdownSeconds,
		TickInterval:     cfg.Player.TickInterval(),
		CommandTimeout:   cfg.Player.CommandTimeout(),
	}, playback, cues, notifications)

	if err := session.Load(ctx, p); err != nil {
		session.Close()
		return errors.Wrap(err, "failed to load plan into session")
	}
	zlog.Info().
		Str("theme", p.Theme).
		Int("segments", len(p.Segments)).
		Int("total_seconds", p.TotalSeconds()).
		Bool("timer_only", session.Status().TimerOnly).
		Msg("Plan loaded")

	if *autoplay {
		if err := session.Play(ctx); err != nil {
			zlog.Error().Err(err).Msg("Failed to start playback")
		}
	}

	playerService := apiconnect.NewPlayerService(session, notifications)
	servicePath, serviceHandler := playerService.NewHandler(cfg.Admin.Token)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle(servicePath+"*", serviceHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		if err := session.Pause(ctx); err != nil && !errors.Is(err, player.ErrNoPlan) {
			zlog.Debug().Err(err).Msg("pause on shutdown")
		}
	case err := <-serverErrCh:
		session.Close()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the session first so Subscribe streams return
	session.Close()
	notifications.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}

// connectDevice resolves the target device and transfers playback to it.
// Devices can take a few seconds to appear, so resolution is retried.
func connectDevice(ctx context.Context, client *spotify.Client, device string) (*spotify.Player, error) {
	maxRetries := 5
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying device lookup in %v...", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		deviceID, err := client.FindDevice(ctx, device)
		if err != nil {
			lastErr = err
			zlog.Warn().Msgf("Failed to find Spotify device (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		pb := spotify.NewPlayer(client, deviceID)
		if err := pb.Activate(ctx); err != nil {
			return nil, err
		}
		return pb, nil
	}
	return nil, errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// printChecks prints available plan checks.
func printChecks() {
	fmt.Println("Available Checks:")
	for _, name := range check.Names() {
		c, err := check.New(name)
		if err != nil {
			continue
		}
		codes := strings.Join(c.Codes(), ", ")
		fmt.Printf("  %-24s - %s [codes: %s]\n", c.Name(), c.Description(), codes)
	}
}
