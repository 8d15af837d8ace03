package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

type loggingLevel int

const (
	logError loggingLevel = iota
	logInfo
	logDebug
)

var currentLogLevel = logInfo

func logf(level loggingLevel, format string, args ...any) {
	if level > currentLogLevel {
		return
	}
	prefix := "[INFO] "
	switch level {
	case logDebug:
		prefix = "[DEBUG]"
	case logError:
		prefix = "[ERROR]"
	}
	log.Printf("%-9s%s", prefix, fmt.Sprintf(format, args...))
}

func parseLogLevel(s string) (loggingLevel, error) {
	switch strings.ToLower(s) {
	case "error":
		return logError, nil
	case "info":
		return logInfo, nil
	case "debug":
		return logDebug, nil
	default:
		return 0, fmt.Errorf("invalid log level: %q", s)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "scale":
		err = runScale(os.Args[2:])
	case "metrics":
		err = runMetrics(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: hdrtools <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  convert --in in.exr --out out.yuv [--config convert.json] [--out-space ycbcr --out-chroma 420 ...]")
	fmt.Fprintln(os.Stderr, "  scale   --in in.yuv --w 1920 --h 1080 --out out.yuv --ow 960 --oh 540 [--interp lanczos3]")
	fmt.Fprintln(os.Stderr, "  metrics --ref ref.yuv --test test.yuv --w 1920 --h 1080 [--storage uint16 --bit-depth 10]")
	fmt.Fprintln(os.Stderr, "Run hdrtools <command> --help for the flags of a command.")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
