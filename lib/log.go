package lib

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const (
	LogTimeFormat = "2006-01-02T15:04:05.000"
)

func ZeroConsoleLog() {
	log.Logger = log.Output(consoleWriter())
}

// ZeroConsoleAndFileLog logs to both the console and the given file.
func ZeroConsoleAndFileLog(filename string) {
	var logFile *os.File
	var err error

	if !LocalFileExists(filename) {
		logFile, err = os.Create(filename)
	} else {
		logFile, err = os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, 0666)
	}
	if err != nil {
		log.Error().Err(err).Msg("Error setting up log config")
		ZeroConsoleLog()
		return
	}

	var writers []io.Writer
	writers = append(writers, logFile)
	writers = append(writers, consoleWriter())
	mw := io.MultiWriter(writers...)

	log.Logger = zerolog.New(mw).With().Timestamp().Logger()
}

// ZeroJSONLog logs JSON lines to stdout and the given file, skipping console
// formatting entirely.
func ZeroJSONLog(filename string) {
	var logFile *os.File
	var err error

	if !LocalFileExists(filename) {
		logFile, err = os.Create(filename)
	} else {
		logFile, err = os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, 0666)
	}
	if err != nil {
		log.Error().Err(err).Msg("Error setting up log config")
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}

	log.Logger = zerolog.New(io.MultiWriter(logFile, os.Stdout)).With().Timestamp().Logger()
}

// consoleWriter returns a color console writer when stdout is a terminal and
// a plain JSON writer otherwise, so piped output stays machine readable.
func consoleWriter() io.Writer {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return os.Stdout
	}
	if runtime.GOOS == "windows" {
		return zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat}
	}
	return zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: LogTimeFormat}
}
