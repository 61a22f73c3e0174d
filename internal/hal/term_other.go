//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package hal

import "errors"

func openTerminal(Options) (Frontend, error) {
	return nil, errors.New("terminal frontend is not supported on this platform")
}
