package app

import (
	"errors"

	intrnl "mediachat/internal"
)

// RunClient launches the Bubble Tea terminal client with the provided
// configuration.
func RunClient(cfg ClientConfig) error {
	if cfg.ServerURL == "" {
		return errors.New("server URL is required")
	}
	if cfg.Username == "" {
		return errors.New("display name is required")
	}
	return intrnl.RunClient(cfg.ServerURL, cfg.Username)
}
