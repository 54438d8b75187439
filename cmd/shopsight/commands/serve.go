package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tugdual/shopsight/internal/auth"
	"github.com/tugdual/shopsight/internal/capture"
	"github.com/tugdual/shopsight/internal/config"
	"github.com/tugdual/shopsight/internal/logger"
	"github.com/tugdual/shopsight/internal/server"
	"github.com/tugdual/shopsight/internal/store"
	"github.com/tugdual/shopsight/internal/training"
	"github.com/tugdual/shopsight/internal/tray"
	"github.com/tugdual/shopsight/internal/zones"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Shopsight server",
	Long: `Start the Shopsight HTTP server.

The server exposes a session-authenticated JSON API for camera control,
zone calibration, and the training simulator, plus MJPEG and WebSocket
frame streams for the dashboard.`,
	Example: `  # Start server on default port (8080)
  shopsight serve

  # Start server on custom port with a config file
  shopsight serve --port 9090 --config /etc/shopsight/config.yaml

  # Start with a desktop tray icon
  shopsight serve --tray`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("tray", false, "show a system tray icon")
	viper.BindPFlag("tray", serveCmd.Flags().Lookup("tray"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	// Flag overrides
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			cfg.Server.Port = port
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			cfg.Log.Level = level
		}
	}
	if viper.GetBool("tray") {
		cfg.Tray = true
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.WithComponent("serve")

	if cfg.Auth.AdminPassword == "" {
		log.Warn().Msg("no admin password configured (SHOPSIGHT_AUTH_ADMIN_PASSWORD); login is disabled")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	camera := capture.NewSession(logger.WithComponent("capture"), cfg.Camera.FPS)
	camera.SetResolution(cfg.Camera.Width, cfg.Camera.Height)
	defer camera.Disconnect()

	simulator := training.New(logger.WithComponent("training"))
	simulator.SetHistory(st.Runs())

	sessions := auth.NewManager(cfg.Auth.SessionTTL)

	srv := server.New(server.Config{
		Log:       logger.WithComponent("server"),
		StaticDir: cfg.Static,
		Camera:    camera,
		Zones:     zones.NewStore(cfg.Zones.Path, logger.WithComponent("zones")),
		Training:  simulator,
		Store:     st,
		Sessions:  sessions,
		Credentials: auth.StaticCredentials{
			Username: cfg.Auth.AdminUser,
			Password: cfg.Auth.AdminPassword,
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{})
	if cfg.Tray {
		go runTray(camera, cfg.Server.Port, quit)
	}

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	case <-quit:
		log.Info().Msg("quit from tray")
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	simulator.Stop()
	camera.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// runTray runs the system tray loop and keeps its camera status line fresh.
func runTray(camera *capture.Session, port int, quit chan struct{}) {
	t := tray.New()
	t.OnOpen(func() {
		openBrowser(fmt.Sprintf("http://localhost:%d/", port))
	})
	t.OnQuit(func() {
		close(quit)
	})

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			connected, id := camera.Status()
			t.SetCameraStatus(connected, fmt.Sprint(id))
		}
	}()

	t.Run()
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) {
	switch runtime.GOOS {
	case "darwin":
		exec.Command("open", url).Start()
	case "windows":
		exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		exec.Command("xdg-open", url).Start()
	}
}
