package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"clinic-queue/internal/announce"
	"clinic-queue/internal/queue"
	"clinic-queue/internal/remote"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operator HTTP API and the task worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *Config) error {
	redisClient, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store := remote.NewRedisStore(redisClient, cfg.Redis.Prefix)
	display := remote.NewDisplay(store)
	calls := remote.NewCallLog(store)

	manager := queue.NewManager(cfg.Counters, queue.WithHistoryCapacity(cfg.History.Capacity))
	queueService := NewQueueService(manager, display)
	if err := queueService.Load(ctx); err != nil {
		return err
	}

	var pubNub Pubnub
	if cfg.PubNub.Enabled() {
		if pubNub, err = NewPubnub(&cfg.PubNub); err != nil {
			return err
		}
	} else {
		slog.Warn("pubnub keys not set, display notifications are only logged")
	}

	var announcer *announce.Announcer
	if cfg.Announce.Enabled {
		announcer = newAnnouncer(cfg.Audio)
		applyStoredRate(ctx, display, announcer)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	handlers := &Handlers{
		queueService:        queueService,
		callService:         NewCallService(queueService, calls, asynqClient, cfg.Display.ID, cfg.Announce.Enabled),
		notificationService: NewNotificationService(pubNub),
		display:             display,
		announcer:           announcer,
		pubNub:              pubNub,
	}

	w, err := startWorker(redisOpt, handlers, cfg.Calls)
	if err != nil {
		return err
	}
	defer w.Shutdown()

	e := newEcho()
	setupRoutes(e, handlers)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if announcer != nil {
		announcer.Stop()
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	return e
}

func newDisplayCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "display",
		Short: "Announce calls and instant audio on this machine's speakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisplay(cmd.Context(), opts.cfg)
		},
	}
}

func runDisplay(ctx context.Context, cfg *Config) error {
	redisClient, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store := remote.NewRedisStore(redisClient, cfg.Redis.Prefix)
	display := remote.NewDisplay(store)
	calls := remote.NewCallLog(store)

	announcer := newAnnouncer(cfg.Audio)
	applyStoredRate(ctx, display, announcer)

	stopCalls, stopInstant := listenDisplay(ctx, calls, display, announcer, cfg.Display.PollInterval, time.Now())
	defer stopInstant()
	defer stopCalls()

	slog.Info("display listening", "display", cfg.Display.ID, "poll_interval", cfg.Display.PollInterval)
	<-ctx.Done()
	announcer.Stop()
	return nil
}

// listenDisplay announces each call and instant audio request stored after
// since, once. Changes that do not bring a newer record, like a trim of old
// calls, play nothing. Requests that arrive while the announcer is busy are
// dropped.
func listenDisplay(ctx context.Context, calls *remote.CallLog, display *remote.Display, a *announce.Announcer, interval time.Duration, since time.Time) (stopCalls, stopInstant func()) {
	// each subscription calls back from its own goroutine, one call at a time
	lastCall := since.UnixMilli() - 1
	lastInstant := lastCall

	stopCalls = calls.ListenToCalls(ctx, interval, func(rec remote.CallRecord) {
		if rec.Timestamp <= lastCall {
			return
		}
		lastCall = rec.Timestamp
		go func() {
			err := a.Announce(ctx, announce.Call{
				TicketNumber: rec.TicketNumber,
				CounterID:    rec.CounterID,
				CounterName:  rec.CounterName,
			})
			if err != nil && !errors.Is(err, announce.ErrAnnouncing) {
				slog.Error("a.Announce()", "counter", rec.CounterID, "ticket", rec.TicketNumber, "error", err)
			}
		}()
	})

	stopInstant = display.ListenToInstantAudio(ctx, interval, func(ia remote.InstantAudio) {
		if ia.Timestamp <= lastInstant {
			return
		}
		lastInstant = ia.Timestamp
		go func() {
			if err := a.PlayInstant(ctx, ia.Filename); err != nil && !errors.Is(err, announce.ErrAnnouncing) {
				slog.Error("a.PlayInstant()", "file", ia.Filename, "error", err)
			}
		}()
	})

	return stopCalls, stopInstant
}

func newAnnounceCommand(opts *rootOptions) *cobra.Command {
	var (
		counterID   string
		counterName string
		play        bool
	)

	cmd := &cobra.Command{
		Use:   "announce <ticket>",
		Short: "Print, and optionally play, the announcement for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticket, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("ticket must be an integer: %w", err)
			}

			printAnnouncement(cmd, ticket, counterID, counterName)

			if !play {
				return nil
			}
			return newAnnouncer(opts.cfg.Audio).Announce(cmd.Context(), announce.Call{
				TicketNumber: ticket,
				CounterID:    counterID,
				CounterName:  counterName,
			})
		},
	}

	cmd.Flags().StringVar(&counterID, "counter", "1", "counter id")
	cmd.Flags().StringVar(&counterName, "name", "", "counter name used by the spoken fallback")
	cmd.Flags().BoolVar(&play, "play", false, "play the announcement")

	return cmd
}

func printAnnouncement(cmd *cobra.Command, ticket int, counterID, counterName string) {
	out := cmd.OutOrStdout()

	seq, err := announce.BuildSequence(ticket, counterID)
	if err != nil {
		fmt.Fprintf(out, "no token sequence (%v)\nfallback: %s\n", err, announce.Sentence(ticket, counterName))
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tASSET\tFALLBACK")
	for _, t := range seq {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t, announce.AssetName(t), announce.FallbackText(t))
	}
	tw.Flush()
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored counters and the latest call",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			redisClient, err := newRedisClient(ctx, opts.cfg.Redis)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			store := remote.NewRedisStore(redisClient, opts.cfg.Redis.Prefix)
			return printStatus(ctx, cmd, opts.cfg.Counters, remote.NewDisplay(store), remote.NewCallLog(store), time.Now())
		},
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, configs []queue.CounterConfig, display *remote.Display, calls *remote.CallLog, now time.Time) error {
	out := cmd.OutOrStdout()

	saved := map[string]queue.Counter{}
	if _, err := display.LoadCounters(ctx, &saved); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTER\tNAME\tCURRENT\tCALLED\tWAITING\tACTIVE\tLAST CALL")
	for _, cc := range configs {
		c, ok := saved[cc.ID]
		if !ok {
			c = queue.NewCounter(cc)
		}
		last := "never"
		if c.LastCallAt != nil {
			last = humanize.RelTime(*c.LastCallAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%t\t%s\n",
			cc.ID, cc.Name, c.CurrentTicket, humanize.Comma(int64(c.Stats.TotalCalled)), len(c.Queue), c.IsActive, last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rec, ok, err := calls.LatestCall(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "\nno calls yet")
		return nil
	}
	fmt.Fprintf(out, "\nlatest call: ticket %d at %s (%s), %s\n",
		rec.TicketNumber, rec.CounterName, rec.ActionKind, humanize.RelTime(rec.Time(), now, "ago", "from now"))
	return nil
}
