// Package logging configures the go-logging backend shared by every package
// in the agent. Packages obtain their logger with logging.MustGetLogger and
// inherit whatever backend Init installed.
package logging

import (
	"io"
	"os"

	gologging "github.com/op/go-logging"
)

const format = `%{time:2006-01-02 15:04:05} %{level:.5s} [%{module}] %{message}`

// Init installs a leveled backend writing to w (stdout when nil). The level
// string is one of CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG.
func Init(level string, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := gologging.LogLevel(level)
	if err != nil {
		return err
	}

	base := gologging.NewLogBackend(w, "", 0)
	formatted := gologging.NewBackendFormatter(base, gologging.MustStringFormatter(format))
	leveled := gologging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")

	gologging.SetBackend(leveled)
	return nil
}

// OpenFile opens path for appending log records, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
