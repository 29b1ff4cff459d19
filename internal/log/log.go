// Package log provides the node's structured logger.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Log zerolog.Logger

func init() {
	// Pretty console output for development
	// For production JSON, remove ConsoleWriter and use: zerolog.New(os.Stdout)
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	Log = zerolog.New(output).
		With().
		Timestamp().
		Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetJSONOutput switches to JSON logging (for production)
func SetJSONOutput() {
	Log = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}

// SetDebugLevel enables debug logging
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// PeerLogger returns a logger scoped to a single peer connection.
func PeerLogger(token, addr string) zerolog.Logger {
	return Log.With().
		Str("peer_token", token).
		Str("addr", addr).
		Logger()
}

// ComponentLogger returns a logger scoped to a named subsystem (dispatcher, cache, script, ...).
func ComponentLogger(component string) zerolog.Logger {
	return Log.With().
		Str("component", component).
		Logger()
}
