package clipboard

import (
	"errors"
	"fmt"

	cb "github.com/atotto/clipboard"
)

// ErrUnavailable means no clipboard utility was found (xclip, xsel,
// wl-copy or termux-clipboard-set on Linux).
var ErrUnavailable = errors.New("clipboard unavailable")

func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if !Available() {
		return ErrUnavailable
	}
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}
