// Package logging wires the structured logger used across the manager and
// engine: a github.com/go-logr/logr front-end over the stdlib log package.
package logging

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

func init() {
	stdr.SetVerbosity(1)
}

// New returns a named logr.Logger writing to stderr with file:line
// annotations, suitable for passing into engine.New or manager.Config.Logger.
func New(name string) logr.Logger {
	l := stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile))
	return l.WithName(name)
}

// Discard returns a logger that drops everything, for tests that don't
// want log noise.
func Discard() logr.Logger {
	return logr.Discard()
}
