package audio

// StubCardLongnames replaces the ALSA card lookup for the duration of a test.
func StubCardLongnames(names map[string]string) (restore func()) {
	prev := cardLongname
	cardLongname = func(card string) (string, bool) {
		name, ok := names[card]
		return name, ok
	}
	return func() { cardLongname = prev }
}
