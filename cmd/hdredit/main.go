package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/hdredit/internal/config"
	"github.com/zsiec/hdredit/internal/editor"
	"github.com/zsiec/hdredit/internal/ingest"
)

var version = "dev"

// DefaultOutput is written when -o is not given.
const DefaultOutput = "hdr_edited_output.hevc"

// errConsumerDone stops the input pump once the consumer needs no more data.
var errConsumerDone = errors.New("consumer finished")

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:], settings, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("hdredit failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, settings config.Settings, stdout io.Writer) error {
	if len(args) == 0 {
		usage()
		return flag.ErrHelp
	}
	switch args[0] {
	case "edit":
		return runEdit(ctx, args[1:], settings)
	case "info":
		return runInfo(ctx, args[1:], settings, stdout)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, "hdredit", version)
		return nil
	case "help", "-h", "-help", "--help":
		usage()
		return flag.ErrHelp
	default:
		// Bare flags are an edit, matching the single-command form.
		return runEdit(ctx, args, settings)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: hdredit <command> [args]")
	fmt.Fprintln(os.Stderr, "Losslessly edit the HDR metadata (MDCV, CLL) of an HEVC stream.")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  edit -i input.hevc -c edit.json [-o output.hevc]")
	fmt.Fprintln(os.Stderr, "       input may be a file, - for stdin, a .ts or .mkv file or srt://host:port?streamid=...")
	fmt.Fprintln(os.Stderr, "  info -i input.hevc [-full] [-json]")
	fmt.Fprintln(os.Stderr, "  version")
}

// inputFlags registers -i/-input and resolves the positional form.
type inputFlags struct {
	input string
}

func (f *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.input, "i", "", "input HEVC file, - for stdin, .ts/.mkv file or srt:// URL")
	fs.StringVar(&f.input, "input", "", "same as -i")
}

func (f *inputFlags) resolve(fs *flag.FlagSet) (ingest.Target, error) {
	input := f.input
	switch {
	case fs.NArg() > 1:
		return ingest.Target{}, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	case fs.NArg() == 1 && input != "":
		return ingest.Target{}, errors.New("input given both as -i and positional argument")
	case fs.NArg() == 1:
		input = fs.Arg(0)
	}
	return ingest.ParseTarget(input)
}

func runEdit(ctx context.Context, args []string, settings config.Settings) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	var in inputFlags
	in.register(fs)
	var cfgPath, outPath string
	fs.StringVar(&cfgPath, "c", "", "edit config file (JSON or YAML)")
	fs.StringVar(&cfgPath, "config", "", "same as -c")
	fs.StringVar(&outPath, "o", DefaultOutput, "output HEVC file")
	fs.StringVar(&outPath, "output", DefaultOutput, "same as -o")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := in.resolve(fs)
	if err != nil {
		return err
	}
	if cfgPath == "" {
		return errors.New("missing required argument -c")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	log := slog.Default()
	ed, err := editor.New(cfg, out, editor.Options{
		ChunkSize:   settings.ChunkSize,
		WriteBuffer: settings.WriteBuffer,
		Log:         log,
	})
	if err != nil {
		return err
	}
	src := ingest.NewSource(target, ingest.Options{DialTimeout: settings.SRTDialTimeout, Log: log})

	log.Info("editing", "input", target, "output", outPath, "config", cfgPath)

	stopProgress := startProgress(settings.ProgressInterval, func() {
		rs, st := src.Stats(), ed.Stats()
		log.Info("progress", "bytes_read", rs.BytesReceived, "nals", st.NALs, "sei_nals", st.SEINALs)
	})
	err = pump(ctx, src, ed.Run)
	stopProgress()
	if err != nil {
		return err
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	st := ed.Stats()
	log.Info("done",
		"output", outPath,
		"nals", st.NALs,
		"sei_edited", st.Rewritten+st.Split,
		"split", st.Split,
		"messages_emitted", st.EmittedSEI,
		"passthrough", st.Passthrough,
		"caption_sei", st.CaptionSEI)
	return nil
}

func runInfo(ctx context.Context, args []string, settings config.Settings, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	var in inputFlags
	in.register(fs)
	full := fs.Bool("full", false, "scan the whole input and count every NAL and SEI type")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := in.resolve(fs)
	if err != nil {
		return err
	}

	src := ingest.NewSource(target, ingest.Options{DialTimeout: settings.SRTDialTimeout, Log: slog.Default()})

	var rep *editor.Report
	err = pump(ctx, src, func(ctx context.Context, r io.Reader) error {
		var err error
		rep, err = editor.Inspect(ctx, r, settings.ChunkSize, *full)
		return err
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(stdout, target, rep, *full)
	return nil
}

// pump runs the input source and the consumer concurrently, joined by a
// pipe. The consumer sees the bytes in input order; whichever side fails
// first cancels the other.
func pump(ctx context.Context, src *ingest.Source, consume func(context.Context, io.Reader) error) error {
	pr, pw := io.Pipe()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := src.Run(ctx, pw)
		pw.CloseWithError(err)
		if errors.Is(err, errConsumerDone) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := consume(ctx, pr)
		if err == nil {
			pr.CloseWithError(errConsumerDone)
		} else {
			pr.CloseWithError(err)
		}
		return err
	})

	return g.Wait()
}

// startProgress calls report every interval until the returned stop func is
// called. A non-positive interval disables progress.
func startProgress(interval time.Duration, report func()) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				report()
			}
		}
	}()
	return func() { close(done) }
}
