package announce

// Decompose splits n into numeral tokens in spoken order: hundreds first, then
// ones before tens joined by a conjunction. 11 to 19 are single words.
func Decompose(n int) ([]Token, error) {
	if n < 0 || n > MaxNumber {
		return nil, ErrOutOfRange
	}
	if n == 0 {
		return []Token{NumberWord(0)}, nil
	}

	var out []Token

	if h := n / 100; h > 0 {
		out = append(out, NumberWord(h*100))
		n %= 100
		if n > 0 {
			out = append(out, Conjunction)
		}
	}

	if n >= 11 && n <= 19 {
		return append(out, NumberWord(n)), nil
	}

	tens, ones := n/10, n%10
	switch {
	case tens > 0 && ones > 0:
		out = append(out, NumberWord(ones), Conjunction, NumberWord(tens*10))
	case tens > 0:
		out = append(out, NumberWord(tens*10))
	case ones > 0:
		out = append(out, NumberWord(ones))
	}
	return out, nil
}

// BuildSequence is the full announcement for a ticket called at a counter.
func BuildSequence(ticket int, counterID string) ([]Token, error) {
	numerals, err := Decompose(ticket)
	if err != nil {
		return nil, err
	}

	seq := make([]Token, 0, len(numerals)+3)
	seq = append(seq, Chime, Prefix)
	seq = append(seq, numerals...)
	return append(seq, CounterRef(counterID)), nil
}
