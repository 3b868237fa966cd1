package announce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu     sync.Mutex
	played []Token
	files  []string
	rates  []float64
	fail   map[Token]bool
	// block, when set, holds every Play until it is closed.
	block   chan struct{}
	started chan struct{}
}

func (p *fakePlayer) Play(ctx context.Context, t Token, rate float64) error {
	if p.started != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[t] {
		return errors.New("clip missing")
	}
	p.played = append(p.played, t)
	p.rates = append(p.rates, rate)
	return nil
}

func (p *fakePlayer) PlayFile(ctx context.Context, name string, rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, name)
	return nil
}

func (p *fakePlayer) Played() []Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Token{}, p.played...)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	langs  []string
	err    error
}

func (s *fakeSpeaker) Speak(ctx context.Context, text, lang string, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	s.langs = append(s.langs, lang)
	return s.err
}

func newTestAnnouncer(p *fakePlayer, s *fakeSpeaker) *Announcer {
	return NewAnnouncer(p, s, Config{TTSFallback: true, Pause: time.Millisecond})
}

func TestAnnounce_PlaysSequenceInOrder(t *testing.T) {
	p, s := &fakePlayer{}, &fakeSpeaker{}
	a := newTestAnnouncer(p, s)

	err := a.Announce(context.Background(), Call{TicketNumber: 468, CounterID: "2", CounterName: "Dental"})
	require.NoError(t, err)

	want, _ := BuildSequence(468, "2")
	assert.Equal(t, want, p.Played())
	assert.Empty(t, s.spoken)
	assert.False(t, a.Busy())
}

func TestAnnounce_FallsBackPerToken(t *testing.T) {
	p := &fakePlayer{fail: map[Token]bool{
		NumberWord(60): true,
		Chime:          true,
	}}
	s := &fakeSpeaker{}
	a := newTestAnnouncer(p, s)

	err := a.Announce(context.Background(), Call{TicketNumber: 68, CounterID: "1"})
	require.NoError(t, err)

	assert.Equal(t, []Token{Prefix, NumberWord(8), Conjunction, CounterRef("1")}, p.Played())
	// the chime has no text, so only the number is spoken
	assert.Equal(t, []string{"ستون"}, s.spoken)
	assert.Equal(t, []string{DefaultLanguage}, s.langs)
}

func TestAnnounce_SpeechErrorDoesNotAbort(t *testing.T) {
	p := &fakePlayer{fail: map[Token]bool{Prefix: true}}
	s := &fakeSpeaker{err: errors.New("no voice")}
	a := newTestAnnouncer(p, s)

	err := a.Announce(context.Background(), Call{TicketNumber: 5, CounterID: "1"})
	require.NoError(t, err)
	assert.Equal(t, []Token{Chime, NumberWord(5), CounterRef("1")}, p.Played())
}

func TestAnnounce_NoFallbackWhenDisabled(t *testing.T) {
	p := &fakePlayer{fail: map[Token]bool{NumberWord(5): true}}
	s := &fakeSpeaker{}
	a := NewAnnouncer(p, s, Config{Pause: -1})

	err := a.Announce(context.Background(), Call{TicketNumber: 5, CounterID: "1"})
	require.NoError(t, err)
	assert.Empty(t, s.spoken)
}

func TestAnnounce_SequenceFailureSpeaksSentence(t *testing.T) {
	p, s := &fakePlayer{}, &fakeSpeaker{}
	a := newTestAnnouncer(p, s)

	err := a.Announce(context.Background(), Call{TicketNumber: 1500, CounterID: "3", CounterName: "عيادة الجلدية"})
	require.NoError(t, err)

	assert.Empty(t, p.Played())
	assert.Equal(t, []string{"على العميل رقم 1500 عيادة الجلدية"}, s.spoken)
}

func TestAnnounce_RejectsWhileBusy(t *testing.T) {
	p := &fakePlayer{block: make(chan struct{}), started: make(chan struct{}, 1)}
	a := newTestAnnouncer(p, &fakeSpeaker{})

	done := make(chan error, 1)
	go func() {
		done <- a.Announce(context.Background(), Call{TicketNumber: 1, CounterID: "1"})
	}()
	<-p.started

	assert.True(t, a.Busy())
	err := a.Announce(context.Background(), Call{TicketNumber: 2, CounterID: "2"})
	assert.ErrorIs(t, err, ErrAnnouncing)
	assert.ErrorIs(t, a.PlayInstant(context.Background(), "welcome.mp3"), ErrAnnouncing)

	close(p.block)
	require.NoError(t, <-done)
	assert.False(t, a.Busy())
	assert.Len(t, p.Played(), 4)
}

func TestStop_ReleasesGateAndHaltsSequence(t *testing.T) {
	p := &fakePlayer{block: make(chan struct{}), started: make(chan struct{}, 1)}
	a := newTestAnnouncer(p, &fakeSpeaker{})

	done := make(chan error, 1)
	go func() {
		done <- a.Announce(context.Background(), Call{TicketNumber: 468, CounterID: "1"})
	}()
	<-p.started

	a.Stop()
	assert.False(t, a.Busy())

	close(p.block)
	require.NoError(t, <-done)

	// the clip that was playing finishes, nothing after it
	assert.Equal(t, []Token{Chime}, p.Played())

	// the stopped run released nothing, the gate is free for the next call
	require.NoError(t, a.Announce(context.Background(), Call{TicketNumber: 1, CounterID: "1"}))
}

func TestSetRate_Clamps(t *testing.T) {
	a := NewAnnouncer(&fakePlayer{}, &fakeSpeaker{}, Config{Rate: 5})
	assert.Equal(t, MaxRate, a.Rate())

	a.SetRate(0.1)
	assert.Equal(t, MinRate, a.Rate())

	a.SetRate(1.25)
	assert.Equal(t, 1.25, a.Rate())
}

func TestPlayInstant(t *testing.T) {
	p := &fakePlayer{}
	a := NewAnnouncer(p, &fakeSpeaker{}, Config{Pause: time.Millisecond})

	require.NoError(t, a.PlayInstant(context.Background(), "welcome.mp3"))
	assert.Equal(t, []string{"welcome.mp3"}, p.files)
	assert.False(t, a.Busy())
}
