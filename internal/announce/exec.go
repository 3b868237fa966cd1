package announce

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

// ExecPlayer plays asset files through an external command line player.
type ExecPlayer struct {
	dir        string
	instantDir string
	command    string
}

type ExecPlayerConfig struct {
	// Dir holds the token clips, InstantDir the pre-recorded announcements.
	Dir        string
	InstantDir string
	// Command defaults to ffplay.
	Command string
}

func NewExecPlayer(cfg ExecPlayerConfig) *ExecPlayer {
	if cfg.Command == "" {
		cfg.Command = "ffplay"
	}
	if cfg.InstantDir == "" {
		cfg.InstantDir = filepath.Join(filepath.Dir(filepath.Clean(cfg.Dir)), "instant")
	}
	return &ExecPlayer{
		dir:        cfg.Dir,
		instantDir: cfg.InstantDir,
		command:    cfg.Command,
	}
}

func (p *ExecPlayer) Play(ctx context.Context, t Token, r float64) error {
	name := AssetName(t)
	if name == "" {
		return fmt.Errorf("no asset for token %s", t)
	}
	return p.run(ctx, filepath.Join(p.dir, name), r)
}

func (p *ExecPlayer) PlayFile(ctx context.Context, name string, r float64) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid instant audio name %q", name)
	}
	return p.run(ctx, filepath.Join(p.instantDir, name), r)
}

func (p *ExecPlayer) run(ctx context.Context, path string, r float64) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file %s: %w", path, err)
	}

	args := []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-af", "atempo=" + strconv.FormatFloat(clampRate(r), 'f', 2, 64),
		path,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", p.command, filepath.Base(path), err, stderr.String())
	}
	return nil
}

// ExecSpeaker speaks through espeak-ng, or a compatible command, limited to a
// number of utterances per minute.
type ExecSpeaker struct {
	command string
	limiter *rate.Limiter
}

type ExecSpeakerConfig struct {
	Command           string
	RequestsPerMinute int
}

func NewExecSpeaker(cfg ExecSpeakerConfig) *ExecSpeaker {
	if cfg.Command == "" {
		cfg.Command = "espeak-ng"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	return &ExecSpeaker{
		command: cfg.Command,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 5),
	}
}

func (s *ExecSpeaker) Speak(ctx context.Context, text, lang string, r float64) error {
	if text == "" {
		return nil
	}

	voice, err := Voice(lang)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("speech rate limit: %w", err)
	}

	// espeak-ng speaks 175 words per minute at normal speed
	wpm := int(175 * clampRate(r))
	cmd := exec.CommandContext(ctx, s.command, "-v", voice, "-s", strconv.Itoa(wpm), text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.command, err, stderr.String())
	}
	return nil
}

// Voice maps a BCP 47 tag such as ar-SA to its base language.
func Voice(lang string) (string, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("language %q: %w", lang, err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}
