// Command capture streams microphone audio to the relay and renders the
// translation as it arrives.
//
// Usage:
//
//	arecord -f S16_LE -r 48000 -c 1 -t raw | capture --rate 48000
//	capture --input speech.pcm --rate 24000
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
