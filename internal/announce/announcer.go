package announce

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	MinRate = 0.5
	MaxRate = 2.0

	DefaultLanguage = "ar-SA"
	DefaultPause    = 100 * time.Millisecond
)

// Player plays the clip behind a token and returns when it ends.
type Player interface {
	Play(ctx context.Context, t Token, rate float64) error
	PlayFile(ctx context.Context, name string, rate float64) error
}

// Speaker synthesises text. Empty text is a silent success.
type Speaker interface {
	Speak(ctx context.Context, text, lang string, rate float64) error
}

type Call struct {
	TicketNumber int
	CounterID    string
	CounterName  string
}

type Config struct {
	Language string
	Rate     float64
	// Pause between tokens, DefaultPause when zero. Negative disables it.
	Pause time.Duration
	// TTSFallback speaks a token's text when its clip fails.
	TTSFallback bool
}

// Announcer plays one announcement at a time for the whole process.
type Announcer struct {
	player  Player
	speaker Speaker
	lang    string
	pause   time.Duration
	useTTS  bool

	mu           sync.Mutex
	rate         float64
	busy         bool
	gen          uint64
	cancelSpeech context.CancelFunc
}

func NewAnnouncer(player Player, speaker Speaker, cfg Config) *Announcer {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Rate == 0 {
		cfg.Rate = 1.0
	}
	switch {
	case cfg.Pause == 0:
		cfg.Pause = DefaultPause
	case cfg.Pause < 0:
		cfg.Pause = 0
	}
	return &Announcer{
		player:  player,
		speaker: speaker,
		lang:    cfg.Language,
		pause:   cfg.Pause,
		useTTS:  cfg.TTSFallback,
		rate:    clampRate(cfg.Rate),
	}
}

func clampRate(r float64) float64 {
	return min(MaxRate, max(MinRate, r))
}

func (a *Announcer) SetRate(r float64) {
	a.mu.Lock()
	a.rate = clampRate(r)
	a.mu.Unlock()
}

func (a *Announcer) Rate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}

func (a *Announcer) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

func (a *Announcer) acquire(ctx context.Context) (uint64, context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.busy {
		return 0, nil, ErrAnnouncing
	}
	a.busy = true
	a.gen++

	speechCtx, cancel := context.WithCancel(ctx)
	a.cancelSpeech = cancel
	return a.gen, speechCtx, nil
}

func (a *Announcer) release(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.gen != gen {
		return
	}
	a.busy = false
	if a.cancelSpeech != nil {
		a.cancelSpeech()
		a.cancelSpeech = nil
	}
}

func (a *Announcer) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy && a.gen == gen
}

// Stop frees the gate and cancels speech in flight. A clip that is already
// playing may run to its end, but no further tokens of that sequence play.
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.busy = false
	a.gen++
	if a.cancelSpeech != nil {
		a.cancelSpeech()
		a.cancelSpeech = nil
	}
}

// Announce plays the sequence for c. It returns ErrAnnouncing at once when
// another announcement holds the gate.
func (a *Announcer) Announce(ctx context.Context, c Call) error {
	gen, speechCtx, err := a.acquire(ctx)
	if err != nil {
		slog.Info("announcement rejected", "counterID", c.CounterID, "ticket", c.TicketNumber)
		return err
	}
	defer a.release(gen)

	seq, err := BuildSequence(c.TicketNumber, c.CounterID)
	if err != nil {
		slog.Warn("announcement sequence failed, speaking sentence", "ticket", c.TicketNumber, "error", err)
		if !a.useTTS {
			return err
		}
		return a.speak(speechCtx, Sentence(c.TicketNumber, c.CounterName))
	}

	slog.Debug("playing sequence", "counterID", c.CounterID, "ticket", c.TicketNumber, "tokens", len(seq))
	a.playSequence(ctx, speechCtx, gen, seq)
	return nil
}

func (a *Announcer) playSequence(ctx, speechCtx context.Context, gen uint64, seq []Token) {
	for i, t := range seq {
		if !a.current(gen) || ctx.Err() != nil {
			return
		}

		if err := a.player.Play(ctx, t, a.Rate()); err != nil {
			slog.Warn("clip failed", "token", t.String(), "error", err)
			if a.useTTS {
				if err := a.speak(speechCtx, FallbackText(t)); err != nil {
					slog.Error("speech fallback failed", "token", t.String(), "error", err)
				}
			}
			continue
		}

		if i < len(seq)-1 && a.pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.pause):
			}
		}
	}
}

func (a *Announcer) speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return a.speaker.Speak(ctx, text, a.lang, a.Rate())
}

// PlayInstant plays a pre-recorded announcement. It shares the gate with
// Announce.
func (a *Announcer) PlayInstant(ctx context.Context, name string) error {
	gen, _, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer a.release(gen)

	return a.player.PlayFile(ctx, name, a.Rate())
}
