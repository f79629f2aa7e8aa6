package audio

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
)

const procCards = "/proc/asound/cards"

// cardLongname resolves an ALSA card id or index to its long name.
var cardLongname = procCardLongname

var (
	procCardsOnce  sync.Once
	procCardsNames map[string]string
)

func procCardLongname(card string) (string, bool) {
	procCardsOnce.Do(func() {
		f, err := os.Open(procCards)
		if err != nil {
			return
		}
		defer f.Close()
		procCardsNames = parseCards(f)
	})
	name, ok := procCardsNames[card]
	return name, ok
}

// parseCards reads the /proc/asound/cards layout, keying each long name by
// both the card index and its id:
//
//	0 [PCH            ]: HDA-Intel - HDA Intel PCH
//	                     HDA Intel PCH at 0xf7f10000 irq 32
func parseCards(r io.Reader) map[string]string {
	names := make(map[string]string)
	var keys []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if line[0] != ' ' || strings.Contains(trimmed, "]:") {
			index, rest, ok := strings.Cut(trimmed, " ")
			if !ok {
				keys = nil
				continue
			}
			id := ""
			if open := strings.Index(rest, "["); open >= 0 {
				if end := strings.Index(rest, "]"); end > open {
					id = strings.TrimSpace(rest[open+1 : end])
				}
			}
			keys = []string{index}
			if id != "" {
				keys = append(keys, id)
			}
			continue
		}
		if keys == nil {
			continue
		}
		longname := trimmed
		if head, _, ok := strings.Cut(longname, " at "); ok {
			longname = strings.TrimSpace(head)
		}
		for _, k := range keys {
			names[k] = longname
		}
		keys = nil
	}
	return names
}

// parseALSAName splits "hw:CARD=PCH,DEV=0" or "plughw:1,2" into its card and
// device parts. ok is false for names that are not hw/plughw PCMs.
func parseALSAName(name string) (card, dev string, ok bool) {
	rest, found := strings.CutPrefix(name, "plughw:")
	if !found {
		rest, found = strings.CutPrefix(name, "hw:")
	}
	if !found {
		return "", "", false
	}

	for _, part := range strings.Split(rest, ",") {
		switch {
		case strings.HasPrefix(part, "CARD="):
			card = strings.TrimPrefix(part, "CARD=")
		case strings.HasPrefix(part, "DEV="):
			dev = strings.TrimPrefix(part, "DEV=")
		case card == "":
			card = part
		case dev == "":
			dev = part
		}
	}
	return card, dev, card != ""
}

// friendlyName labels ALSA hardware PCMs by their card's long name. Other
// names are returned unchanged.
func friendlyName(name string) string {
	card, dev, ok := parseALSAName(name)
	if !ok {
		return name
	}
	label := card
	if longname, found := cardLongname(card); found && longname != "" {
		label = longname
	}
	if dev == "" || dev == "0" {
		return label
	}
	return label + " (Device " + dev + ")"
}
