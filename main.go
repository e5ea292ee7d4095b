package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/EasterCompany/dex-voice-rating/engine"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitUnsupported = 2 // voice cannot run on this device
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errVoiceUnsupported) {
			os.Exit(ExitUnsupported)
		}
		os.Exit(ExitError)
	}
}

var errVoiceUnsupported = errors.New(engine.MsgVoiceUnsupported)
