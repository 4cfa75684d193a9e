// Package ingest resolves the input argument of the CLI into a byte source
// and pumps its HEVC elementary stream into the editor.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zsiec/hdredit/internal/ingest/srt"
	"github.com/zsiec/hdredit/internal/mkv"
	"github.com/zsiec/hdredit/internal/mpegts"
)

// Format identifies the container of an input.
type Format int

// Input container formats. FormatAuto is resolved by sniffing the first
// bytes of the input.
const (
	FormatAuto Format = iota
	FormatAnnexB
	FormatMPEGTS
	FormatMatroska
)

// ebmlMagic opens every Matroska file.
var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

func (f Format) String() string {
	switch f {
	case FormatAnnexB:
		return "annexb"
	case FormatMPEGTS:
		return "mpegts"
	case FormatMatroska:
		return "matroska"
	default:
		return "auto"
	}
}

// Kind is where the bytes come from.
type Kind int

// Input kinds.
const (
	KindFile Kind = iota
	KindStdin
	KindSRT
)

// ErrNoInput is returned for an empty input argument.
var ErrNoInput = errors.New("ingest: no input given")

// Target is a parsed input argument.
type Target struct {
	Kind     Kind
	Path     string
	Address  string
	StreamID string
	Format   Format
}

func (t Target) String() string {
	switch t.Kind {
	case KindStdin:
		return "stdin"
	case KindSRT:
		return "srt://" + t.Address
	default:
		return t.Path
	}
}

// ParseTarget interprets an input argument: "-" is stdin, srt://host:port
// pulls from an SRT listener (streamid taken from the query), anything else
// is a file path. Files named .ts, .m2ts or .mts are MPEG-TS; .mkv files are
// Matroska.
func ParseTarget(input string) (Target, error) {
	switch {
	case input == "":
		return Target{}, ErrNoInput
	case input == "-":
		return Target{Kind: KindStdin}, nil
	case strings.HasPrefix(input, "srt://"):
		u, err := url.Parse(input)
		if err != nil {
			return Target{}, fmt.Errorf("ingest: %w", err)
		}
		if u.Host == "" || u.Port() == "" {
			return Target{}, fmt.Errorf("ingest: SRT URL %q needs host:port", input)
		}
		return Target{
			Kind:     KindSRT,
			Address:  u.Host,
			StreamID: u.Query().Get("streamid"),
			Format:   FormatMPEGTS,
		}, nil
	}

	t := Target{Kind: KindFile, Path: input}
	switch strings.ToLower(filepath.Ext(input)) {
	case ".ts", ".m2ts", ".mts":
		t.Format = FormatMPEGTS
	case ".mkv":
		t.Format = FormatMatroska
	}
	return t, nil
}

// Stats captures byte counters of the raw input.
type Stats struct {
	BytesReceived int64 `json:"bytesReceived"`
	ReadCount     int64 `json:"readCount"`
	UptimeMs      int64 `json:"uptimeMs"`
}

// Options tunes a Source.
type Options struct {
	DialTimeout time.Duration
	Stdin       io.Reader
	Log         *slog.Logger
}

// Source pumps one input into a writer.
type Source struct {
	target    Target
	opts      Options
	log       *slog.Logger
	startedAt time.Time

	bytesReceived atomic.Int64
	readCount     atomic.Int64
}

// NewSource creates a Source for t. Nothing is opened until Run; uptime
// counts from here.
func NewSource(t Target, opts Options) *Source {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	return &Source{
		target:    t,
		opts:      opts,
		log:       opts.Log.With("component", "ingest", "input", t.String()),
		startedAt: time.Now(),
	}
}

// Run opens the input and writes its HEVC elementary stream to w until the
// input ends or ctx is cancelled. Cancellation closes the input so a blocked
// read returns.
func (s *Source) Run(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rc, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()

	br := bufio.NewReaderSize(&countingReader{r: rc, s: s}, srt.ReadBufferSize)

	format := s.target.Format
	if format == FormatAuto {
		prefix, _ := br.Peek(189)
		format = sniff(prefix)
	}
	s.log.Info("input opened", "format", format)

	switch format {
	case FormatMPEGTS:
		_, err = mpegts.NewExtractor(br, s.log).WriteTo(ctx, w)
	case FormatMatroska:
		_, err = mkv.NewExtractor(br, s.log).WriteTo(ctx, w)
	default:
		_, err = io.Copy(w, br)
	}

	st := s.Stats()
	s.log.Debug("input finished", "bytes", st.BytesReceived, "reads", st.ReadCount, "uptime_ms", st.UptimeMs)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("ingest %s: %w", s.target, err)
	}
	return nil
}

// sniff guesses the container from the first bytes of an input.
func sniff(prefix []byte) Format {
	switch {
	case bytes.HasPrefix(prefix, ebmlMagic):
		return FormatMatroska
	case mpegts.LooksLikeTS(prefix):
		return FormatMPEGTS
	default:
		return FormatAnnexB
	}
}

func (s *Source) open(ctx context.Context) (io.ReadCloser, error) {
	switch s.target.Kind {
	case KindStdin:
		if rc, ok := s.opts.Stdin.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(s.opts.Stdin), nil
	case KindSRT:
		s.log.Info("dialing", "stream_id", s.target.StreamID)
		return srt.Dial(ctx, srt.PullRequest{
			Address:  s.target.Address,
			StreamID: s.target.StreamID,
			Timeout:  s.opts.DialTimeout,
		})
	default:
		f, err := os.Open(s.target.Path)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		return f, nil
	}
}

// Stats returns a snapshot of the input counters.
func (s *Source) Stats() Stats {
	return Stats{
		BytesReceived: s.bytesReceived.Load(),
		ReadCount:     s.readCount.Load(),
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
	}
}

type countingReader struct {
	r io.Reader
	s *Source
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.s.bytesReceived.Add(int64(n))
		c.s.readCount.Add(1)
	}
	return n, err
}
