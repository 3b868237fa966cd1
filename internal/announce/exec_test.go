package announce

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoice(t *testing.T) {
	v, err := Voice("ar-SA")
	require.NoError(t, err)
	assert.Equal(t, "ar", v)

	v, err = Voice("en")
	require.NoError(t, err)
	assert.Equal(t, "en", v)

	_, err = Voice("not a tag!")
	assert.Error(t, err)
}

func TestExecPlayer_MissingFile(t *testing.T) {
	p := NewExecPlayer(ExecPlayerConfig{Dir: t.TempDir(), Command: "true"})

	err := p.Play(context.Background(), NumberWord(7), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecPlayer_PlaysExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prefix.mp3"), []byte("ID3"), 0o644))

	p := NewExecPlayer(ExecPlayerConfig{Dir: dir, Command: "true"})
	assert.NoError(t, p.Play(context.Background(), Prefix, 1))
}

func TestExecPlayer_InstantFiles(t *testing.T) {
	root := t.TempDir()
	audio := filepath.Join(root, "audio")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "instant"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "instant", "welcome.mp3"), []byte("ID3"), 0o644))

	p := NewExecPlayer(ExecPlayerConfig{Dir: audio, Command: "true"})
	assert.NoError(t, p.PlayFile(context.Background(), "welcome.mp3", 1))
	assert.Error(t, p.PlayFile(context.Background(), "../audio/1.mp3", 1))
}

func TestExecSpeaker_EmptyTextIsSilent(t *testing.T) {
	s := NewExecSpeaker(ExecSpeakerConfig{Command: "false"})
	assert.NoError(t, s.Speak(context.Background(), "", DefaultLanguage, 1))
}

func TestExecSpeaker_CommandFailure(t *testing.T) {
	s := NewExecSpeaker(ExecSpeakerConfig{Command: "false"})
	assert.Error(t, s.Speak(context.Background(), "و", DefaultLanguage, 1))
}
