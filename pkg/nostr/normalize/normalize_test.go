package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	for in, want := range map[string]string{
		"":                 "",
		"wss://x.com/y":    "wss://x.com/y",
		"wss://x.com/y/":   "wss://x.com/y",
		"http://x.com/y":   "ws://x.com/y",
		"wss://x.com":      "wss://x.com",
		"wss://x.com/":     "wss://x.com",
		"x.com":            "wss://x.com",
		"x.com/":           "wss://x.com",
		"x.com////":        "wss://x.com",
		"x.com/?x=23":      "wss://x.com?x=23",
		"https://x.com":    "wss://x.com",
		"  WSS://X.COM/  ": "wss://x.com",
	} {
		assert.Equal(t, want, URL(in), "input %q", in)
	}
}

func TestURLIdempotent(t *testing.T) {
	for _, in := range []string{"x.com", "http://x.com/y", "wss://x.com/"} {
		once := URL(in)
		assert.Equal(t, once, URL(once))
	}
}
