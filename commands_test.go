package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-queue/internal/announce"
	"clinic-queue/internal/remote"
)

func outputCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestPrintAnnouncement(t *testing.T) {
	cmd, buf := outputCommand()
	printAnnouncement(cmd, 68, "2", "Dental")

	out := buf.String()
	assert.Contains(t, out, "ding.mp3")
	assert.Contains(t, out, "8.mp3")
	assert.Contains(t, out, "and.mp3")
	assert.Contains(t, out, "60.mp3")
	assert.Contains(t, out, "clinic2.mp3")
	assert.Contains(t, out, "عيادة رقم 2")
}

func TestPrintAnnouncement_OutOfRange(t *testing.T) {
	cmd, buf := outputCommand()
	printAnnouncement(cmd, 1500, "1", "Family Medicine")

	assert.Contains(t, buf.String(), "fallback: ")
	assert.Contains(t, buf.String(), "Family Medicine")
}

func TestPrintStatus(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	cmd, buf := outputCommand()
	require.NoError(t, printStatus(ctx, cmd, testCounters, env.display, env.calls, time.Now()))
	assert.Contains(t, buf.String(), "never")
	assert.Contains(t, buf.String(), "no calls yet")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/counters/1/specific", `{"ticket_number": 12}`).Code)

	cmd, buf = outputCommand()
	require.NoError(t, printStatus(ctx, cmd, testCounters, env.display, env.calls, time.Now().Add(2*time.Minute)))
	assert.Contains(t, buf.String(), "Family Medicine")
	assert.Contains(t, buf.String(), "2 minutes ago")
	assert.Contains(t, buf.String(), "latest call: ticket 12 at Family Medicine (specific)")
}

// recordingPlayer records every clip it is asked to play.
type recordingPlayer struct {
	tokens chan announce.Token
	files  chan string
}

func (p *recordingPlayer) Play(ctx context.Context, t announce.Token, rate float64) error {
	p.tokens <- t
	return nil
}

func (p *recordingPlayer) PlayFile(ctx context.Context, name string, rate float64) error {
	p.files <- name
	return nil
}

func TestListenDisplay(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	// stored before the display started, never announced
	_, err := env.calls.SendCall(ctx, remote.CallRecord{CounterID: "1", TicketNumber: 99, Timestamp: 1})
	require.NoError(t, err)

	player := &recordingPlayer{tokens: make(chan announce.Token, 32), files: make(chan string, 4)}
	a := announce.NewAnnouncer(player, silentSpeaker{}, announce.Config{Pause: -1})

	since := time.Now()
	stopCalls, stopInstant := listenDisplay(ctx, env.calls, env.display, a, 10*time.Millisecond, since)
	defer stopInstant()
	defer stopCalls()

	_, err = env.calls.SendCall(ctx, remote.CallRecord{CounterID: "2", TicketNumber: 3, Timestamp: since.UnixMilli() + 1})
	require.NoError(t, err)

	var got []announce.Token
	require.Eventually(t, func() bool {
		for {
			select {
			case tok := <-player.tokens:
				got = append(got, tok)
			default:
				return len(got) == 4
			}
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, announce.NumberWord(3), got[2])
	assert.Equal(t, announce.CounterRef("2"), got[3])

	require.Eventually(t, func() bool { return !a.Busy() }, time.Second, 5*time.Millisecond)

	_, err = env.display.SetInstantAudio(ctx, "closing.mp3")
	require.NoError(t, err)
	select {
	case name := <-player.files:
		assert.Equal(t, "closing.mp3", name)
	case <-time.After(time.Second):
		t.Fatal("instant audio was not played")
	}
}

func drainTokens(player *recordingPlayer) int {
	n := 0
	for {
		select {
		case <-player.tokens:
			n++
		default:
			return n
		}
	}
}

func TestListenDisplay_TrimDoesNotReplay(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	since := time.Now()
	for i := int64(1); i <= 3; i++ {
		_, err := env.calls.SendCall(ctx, remote.CallRecord{CounterID: "1", TicketNumber: int(i), Timestamp: since.UnixMilli() + i})
		require.NoError(t, err)
	}

	player := &recordingPlayer{tokens: make(chan announce.Token, 32), files: make(chan string, 4)}
	a := announce.NewAnnouncer(player, silentSpeaker{}, announce.Config{Pause: -1})

	stopCalls, stopInstant := listenDisplay(ctx, env.calls, env.display, a, 10*time.Millisecond, since)
	defer stopInstant()
	defer stopCalls()

	played := 0
	require.Eventually(t, func() bool {
		played += drainTokens(player)
		return played == 4 && !a.Busy()
	}, time.Second, 5*time.Millisecond)

	removed, err := env.calls.Trim(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	// several polls see the trimmed collection
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, drainTokens(player))

	_, err = env.calls.SendCall(ctx, remote.CallRecord{CounterID: "2", TicketNumber: 7, Timestamp: since.UnixMilli() + 10})
	require.NoError(t, err)
	played = 0
	require.Eventually(t, func() bool {
		played += drainTokens(player)
		return played == 4
	}, time.Second, 5*time.Millisecond)
}

func TestListenDisplay_InstantAudioPlaysOnce(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	player := &recordingPlayer{tokens: make(chan announce.Token, 32), files: make(chan string, 4)}
	a := announce.NewAnnouncer(player, silentSpeaker{}, announce.Config{Pause: -1})

	since := time.Now()
	stopCalls, stopInstant := listenDisplay(ctx, env.calls, env.display, a, 10*time.Millisecond, since)
	defer stopInstant()
	defer stopCalls()

	ia, err := env.display.SetInstantAudio(ctx, "closing.mp3")
	require.NoError(t, err)
	select {
	case name := <-player.files:
		assert.Equal(t, "closing.mp3", name)
	case <-time.After(time.Second):
		t.Fatal("instant audio was not played")
	}

	// same request rewritten with an extra field is not a new request
	require.NoError(t, env.store.Set(ctx, remote.PathInstantAudio, map[string]any{
		"filename":  ia.Filename,
		"timestamp": ia.Timestamp,
		"source":    "operator",
	}))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, player.files)
}
