package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tagtint/api"
	"tagtint/config"
	"tagtint/logger"
	"tagtint/plugin"
	"tagtint/scheduler"
	"tagtint/storage"
	"tagtint/style"
	"tagtint/stylesheet"
	"tagtint/theme"
	"tagtint/vault"
)

var (
	dataDir     string
	listen      string
	vaultDir    string
	stylesheets []string
	logLevel    string
	logHuman    bool
	appVersion  = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:           "tagtint",
	Short:         "tagtint – tag colors and accent theming for note vaults",
	Long:          "tagtint keeps persistent tag colors for a markdown vault and themes the host app's accent color by the first tag of the open note.",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Manage tagtint configuration files.",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default configuration file",
	Long:  "Generate a default tagtint.config file in the data directory (or current directory if not specified).",
	RunE:  runConfigGenerate,
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", wd, "Data directory holding tagtint.config and tag-colors.json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logHuman, "log-human", false, "Human readable log output")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "", "Vault directory containing markdown notes")
	rootCmd.PersistentFlags().StringSliceVar(&stylesheets, "stylesheet", nil, "Theme stylesheet to read accent variables from (repeatable)")
	rootCmd.Flags().StringVar(&listen, "listen", ":8787", "Address to listen on")

	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config from the data dir and applies explicitly set flags.
func loadConfig(cmd *cobra.Command) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = listen
	}
	if flags.Changed("vault") {
		cfg.VaultDir = vaultDir
	}
	if flags.Changed("stylesheet") {
		cfg.Stylesheets = stylesheets
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-human") {
		cfg.LogHuman = logHuman
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, nil, err
	}

	dataDirAbs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDirAbs

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, HumanReadable: cfg.LogHuman, Writer: os.Stderr})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("configure logger: %w", err)
	}
	return cfg, log, nil
}

// app is the wired set of components shared by serve and the offline commands.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	registry *style.Registry
	source   *stylesheet.Sheets
	store    *storage.Store
	vault    *vault.Vault
	plugin   *plugin.Plugin
}

func newApp(cfg config.Config, log *logger.Logger) *app {
	a := &app{
		cfg:      cfg,
		log:      log,
		registry: style.NewRegistry(),
		source:   stylesheet.FromFiles(log, cfg.RootSelectors, cfg.Stylesheets...),
		store:    storage.New(cfg.DataDir, cfg.DefaultTagColors),
	}

	var meta plugin.MetadataSource
	if cfg.VaultDir != "" {
		a.vault = vault.New(cfg.VaultDir, cfg.Poll(), log)
		meta = a.vault
	}

	a.plugin = plugin.New(
		a.store,
		meta,
		theme.NewTagApplier(a.registry, cfg.TagSelector, log),
		theme.NewAccentApplier(a.registry, a.source, log),
		log,
	)
	return a
}

func run(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a := newApp(cfg, log)
	if err := a.store.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.plugin.Start(); err != nil {
		return err
	}
	defer a.plugin.Stop()

	jobs := scheduler.New(log)
	if a.vault != nil {
		a.vault.Scan()
		jobs.Add("vault-scan", a.vault.Interval(), func(context.Context) { a.vault.Scan() })
	} else {
		log.Warn("no vault configured; only explicit tags can be activated")
	}
	a.source.Changed()
	jobs.Add("stylesheet-watch", cfg.Poll(), func(context.Context) {
		if a.source.Changed() {
			log.Info("theme stylesheets changed; re-applying accent")
			a.plugin.Refresh()
		}
	})
	jobsDone := jobs.Start(ctx)
	defer func() {
		cancel()
		jobsDone.Wait()
	}()

	mux := http.NewServeMux()
	apiServer := api.NewServer(a.plugin, a.registry, a.source, jobs, log)
	a.plugin.Register(apiServer.Register(mux))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printListeningAddresses(log, cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server shutdown")
	}
	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	dataDirAbs, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := config.Default()
	cfg.DataDir = dataDirAbs
	if cmd.Flags().Changed("vault") {
		cfg.VaultDir = vaultDir
	}
	if cmd.Flags().Changed("stylesheet") {
		cfg.Stylesheets = stylesheets
	}

	cfgPath := config.Path(dataDirAbs)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("config file already exists: %s", cfgPath)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated default config file: %s\n", cfgPath)
	return nil
}

func printListeningAddresses(log *logger.Logger, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || (host != "" && host != "0.0.0.0" && host != "::") {
		log.WithFields(map[string]any{"url": "http://" + addr}).Info("listening")
		return
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.WithFields(map[string]any{"url": "http://0.0.0.0:" + port}).Info("listening")
		return
	}
	urls := []string{"http://localhost:" + port}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			urls = append(urls, fmt.Sprintf("http://%s:%s", ipnet.IP.String(), port))
		}
	}
	log.WithFields(map[string]any{"urls": urls}).Info("listening")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
