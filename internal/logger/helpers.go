package logger

import (
	"io"
	"os"
	"strings"
)

var (
	FlagVerboseCount int  // -V, -VV, -VVV
	FlagQuiet        bool // --quiet/-q
	FlagSilent       bool // --silent/-s
	FlagJSON         bool // --json, for hosts that parse our output
)

func ConfigureLoggerFromFlags() {
	var w io.Writer = os.Stdout
	var level string
	switch {
	case FlagSilent:
		level = "error"
		w = io.Discard
	case FlagQuiet:
		level = "error"
	default:
		switch FlagVerboseCount {
		case 0:
			level = "info"
		default:
			level = "debug"
		}
	}

	if strings.TrimSpace(os.Getenv("DELTASYNC_DEBUG")) == "1" && !FlagSilent {
		level = "debug"
	}

	Configure(Options{
		Level: level,
		JSON:  FlagJSON,
		Color: !FlagJSON,
		Out:   w,
	})
}
