package announce

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	prefixPhrase      = "على العميل رقم"
	conjunctionPhrase = "و"
	counterPhrase     = "عيادة رقم"
)

var numberPhrases = map[int]string{
	0:  "صفر",
	1:  "واحد",
	2:  "اثنان",
	3:  "ثلاثة",
	4:  "أربعة",
	5:  "خمسة",
	6:  "ستة",
	7:  "سبعة",
	8:  "ثمانية",
	9:  "تسعة",
	10: "عشرة",
	11: "أحد عشر",
	12: "اثنا عشر",
	13: "ثلاثة عشر",
	14: "أربعة عشر",
	15: "خمسة عشر",
	16: "ستة عشر",
	17: "سبعة عشر",
	18: "ثمانية عشر",
	19: "تسعة عشر",
	20: "عشرون",
	30: "ثلاثون",
	40: "أربعون",
	50: "خمسون",
	60: "ستون",
	70: "سبعون",
	80: "ثمانون",
	90: "تسعون",

	100: "مائة",
	200: "مئتان",
	300: "ثلاثمائة",
	400: "أربعمائة",
	500: "خمسمائة",
	600: "ستمائة",
	700: "سبعمائة",
	800: "ثمانمائة",
	900: "تسعمائة",
}

// FallbackText is what gets spoken for t when its clip cannot be played.
// The chime has no words and maps to the empty string.
func FallbackText(t Token) string {
	switch t.Kind {
	case KindChime:
		return ""
	case KindPrefix:
		return prefixPhrase
	case KindConjunction:
		return conjunctionPhrase
	case KindNumber:
		if s, ok := numberPhrases[t.Number]; ok {
			return s
		}
		return strconv.Itoa(t.Number)
	case KindCounter:
		return counterPhrase + " " + t.CounterID
	default:
		return ""
	}
}

// Sentence is the single utterance used when a whole sequence cannot be played.
func Sentence(ticket int, counterName string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %d %s", prefixPhrase, ticket, counterName))
}
