// Package announce turns called tickets into spoken announcement sequences
// and plays them.
package announce

import (
	"errors"
	"fmt"
)

// MaxNumber is the largest ticket the numeral grammar covers.
const MaxNumber = 999

var ErrOutOfRange = fmt.Errorf("ticket number outside 0..%d", MaxNumber)

var ErrAnnouncing = errors.New("an announcement is already playing")

type Kind int

const (
	KindChime Kind = iota
	KindPrefix
	KindConjunction
	KindNumber
	KindCounter
)

// Token is one abstract unit of an announcement: a clip when audio is
// available, a phrase when it has to be spoken instead.
type Token struct {
	Kind      Kind
	Number    int
	CounterID string
}

var (
	Chime       = Token{Kind: KindChime}
	Prefix      = Token{Kind: KindPrefix}
	Conjunction = Token{Kind: KindConjunction}
)

func NumberWord(n int) Token {
	return Token{Kind: KindNumber, Number: n}
}

func CounterRef(id string) Token {
	return Token{Kind: KindCounter, CounterID: id}
}

func (t Token) String() string {
	switch t.Kind {
	case KindChime:
		return "chime"
	case KindPrefix:
		return "prefix"
	case KindConjunction:
		return "and"
	case KindNumber:
		return fmt.Sprintf("number(%d)", t.Number)
	case KindCounter:
		return fmt.Sprintf("counter(%s)", t.CounterID)
	default:
		return fmt.Sprintf("token(%d)", int(t.Kind))
	}
}

// AssetName is the audio file recorded for t.
func AssetName(t Token) string {
	switch t.Kind {
	case KindChime:
		return "ding.mp3"
	case KindPrefix:
		return "prefix.mp3"
	case KindConjunction:
		return "and.mp3"
	case KindNumber:
		return fmt.Sprintf("%d.mp3", t.Number)
	case KindCounter:
		return fmt.Sprintf("clinic%s.mp3", t.CounterID)
	default:
		return ""
	}
}
