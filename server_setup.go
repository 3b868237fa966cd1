package main

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

type worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
}

// startWorker runs the task server and registers the periodic call log trim.
func startWorker(redisOpt asynq.RedisClientOpt, handlers *Handlers, cfg CallsConfig) (*worker, error) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: slogAsynqLogger{},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotifyDisplay, handlers.HandleNotifyDisplay)
	mux.HandleFunc(TypeAnnounceCall, handlers.HandleAnnounceCall)
	mux.HandleFunc(TypeTrimCalls, handlers.HandleTrimCalls)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: slogAsynqLogger{}})

	task, err := NewTrimCallsTask(cfg.Keep)
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cfg.Trim, task); err != nil {
		return nil, fmt.Errorf("scheduler.Register(%v): %w", cfg.Trim, err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("scheduler.Start(): %w", err)
	}
	if err := srv.Start(mux); err != nil {
		scheduler.Shutdown()
		return nil, fmt.Errorf("srv.Start(): %w", err)
	}

	slog.Info("asynq worker started", "trim_schedule", cfg.Trim, "keep_calls", cfg.Keep)
	return &worker{srv: srv, scheduler: scheduler}, nil
}

func (w *worker) Shutdown() {
	w.scheduler.Shutdown()
	w.srv.Shutdown()
}

// slogAsynqLogger routes asynq's internal logging through slog.
type slogAsynqLogger struct{}

func (slogAsynqLogger) Debug(args ...any) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (slogAsynqLogger) Info(args ...any)  { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (slogAsynqLogger) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (slogAsynqLogger) Error(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }
func (slogAsynqLogger) Fatal(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }

func setupRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api/v1")

	// Counters
	api.GET("/counters", handlers.ListCounters)
	api.GET("/counters/:id", handlers.GetCounter)
	api.GET("/counters/:id/stats", handlers.CounterStats)
	api.GET("/counters/:id/history", handlers.CounterHistory)
	api.GET("/counters/:id/wait", handlers.EstimatedWait)

	// Call actions
	api.POST("/counters/:id/next", handlers.Next)
	api.POST("/counters/:id/previous", handlers.Previous)
	api.POST("/counters/:id/repeat", handlers.Repeat)
	api.POST("/counters/:id/specific", handlers.Specific)

	api.POST("/counters/:id/reset", handlers.Reset)
	api.POST("/counters/:id/pause", handlers.Pause)
	api.POST("/counters/:id/resume", handlers.Resume)

	// Waiting list
	api.POST("/counters/:id/queue", handlers.Enqueue)
	api.DELETE("/counters/:id/queue/:number", handlers.Dequeue)

	api.GET("/stats", handlers.OverallStats)
	api.GET("/history", handlers.History)
	api.GET("/calls/latest", handlers.LatestCall)

	// Announcements
	api.GET("/announce", handlers.AnnouncerStatus)
	api.POST("/announce/stop", handlers.StopAnnouncement)
	api.PUT("/announce/rate", handlers.SetRate)
	api.POST("/instant", handlers.Instant)

	// Display boards
	api.GET("/display/name", handlers.GetDisplayName)
	api.PUT("/display/name", handlers.SetDisplayName)
	api.GET("/display/token", handlers.DisplayToken)

	api.POST("/admin/clear", handlers.ClearAll)
}
