package logger

import (
	"fmt"
	"log/slog"
)

// Plugin tags a record with the plugin it concerns.
func Plugin(name string) slog.Attr { return slog.String("plugin", name) }

// Tool tags a record with the tool it concerns.
func Tool(name string) slog.Attr { return slog.String("tool", name) }

// ChainAttr tags a record with a chain. Anything implementing fmt.Stringer is
// accepted so the logger does not depend on the core types.
func ChainAttr(chain fmt.Stringer) slog.Attr { return slog.String("chain", chain.String()) }

// Err tags a record with an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
