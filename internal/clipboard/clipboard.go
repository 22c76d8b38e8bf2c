// Package clipboard sets the terminal's clipboard with an OSC 52 escape
// sequence, which works over ssh and inside tmux without a helper binary.
package clipboard

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// Sequence returns the OSC 52 sequence that sets the clipboard to text.
// Inside tmux the sequence is wrapped in a DCS passthrough.
func Sequence(text string, inTmux bool) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	if inTmux {
		// ESCs inside the payload are doubled
		return fmt.Sprintf("\x1bPtmux;\x1b\x1b]52;c;%s\x07\x1b\\", encoded)
	}
	return fmt.Sprintf("\x1b]52;c;%s\x07", encoded)
}

// Write sends the sequence for text to w, detecting tmux from $TMUX
func Write(w io.Writer, text string) error {
	if _, err := io.WriteString(w, Sequence(text, os.Getenv("TMUX") != "")); err != nil {
		return fmt.Errorf("failed to write clipboard sequence: %w", err)
	}
	return nil
}
