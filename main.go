package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clinic-queue/internal/announce"
	"clinic-queue/internal/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	v          *viper.Viper
	cfg        *Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:          "clinicq",
		Short:        "Multi-counter clinic ticket calling",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.v, opts.configFile)
			if err != nil {
				return err
			}
			if err := setupLogger(cfg.Log.Level); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().String("redis", "", "redis address")
	_ = opts.v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = opts.v.BindPFlag("redis.addr", cmd.PersistentFlags().Lookup("redis"))

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDisplayCommand(opts))
	cmd.AddCommand(newAnnounceCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))

	return cmd
}

// setupLogger installs charmbracelet/log as the slog handler.
func setupLogger(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log.ParseLevel(%v): %w", level, err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	slog.SetDefault(slog.New(logger))
	return nil
}

func newRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %v: %w", cfg.Addr, err)
	}
	return client, nil
}

func newAnnouncer(cfg AudioConfig) *announce.Announcer {
	player := announce.NewExecPlayer(announce.ExecPlayerConfig{
		Dir:        cfg.Dir,
		InstantDir: cfg.InstantDir,
		Command:    cfg.Player,
	})
	speaker := announce.NewExecSpeaker(announce.ExecSpeakerConfig{
		Command:           cfg.Speaker,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
	return announce.NewAnnouncer(player, speaker, announce.Config{
		Language:    cfg.Language,
		Rate:        cfg.Rate,
		Pause:       cfg.Pause,
		TTSFallback: cfg.TTSFallback,
	})
}

// applyStoredRate picks up a rate saved from the operator UI.
func applyStoredRate(ctx context.Context, display *remote.Display, a *announce.Announcer) {
	settings, err := display.Settings(ctx)
	if err != nil {
		slog.Warn("display.Settings()", "error", err)
		return
	}
	raw, ok := settings["rate"]
	if !ok {
		return
	}
	var r float64
	if err := json.Unmarshal(raw, &r); err != nil || r <= 0 {
		return
	}
	a.SetRate(r)
}
