package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hdredit/internal/config"
	"github.com/zsiec/hdredit/internal/editor"
)

var (
	vps = []byte{0x40, 0x01, 0x0C, 0x01, 0xFF, 0xFF}
	cll = []byte{0x4E, 0x01, 0x90, 0x04, 0x03, 0xE8, 0x01, 0x90, 0x80}
	idr = []byte{0x26, 0x01, 0xAF, 0x09, 0x40}
)

func stream(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func testSettings() config.Settings {
	return config.Settings{ChunkSize: 64, WriteBuffer: 128}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunEdit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeFile(t, dir, "in.hevc", stream(vps, cll, idr))
	cfg := writeFile(t, dir, "edit.json", []byte(`{"cll": {"max_content_light_level": 500, "max_average_light_level": 200}}`))
	out := filepath.Join(dir, "out.hevc")

	err := run(context.Background(), []string{"edit", "-i", in, "-c", cfg, "-o", out}, testSettings(), &bytes.Buffer{})
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	want := stream(vps, []byte{0x4E, 0x01, 0x90, 0x04, 0x01, 0xF4, 0x00, 0xC8, 0x80}, idr)
	assert.Equal(t, want, got)
}

// ebml encodes one element; payloads here stay below 127 bytes.
func ebml(id []byte, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	out := append(append([]byte(nil), id...), 0x80|byte(len(body)))
	return append(out, body...)
}

// lengthPrefixed packs nals as one Matroska frame with 4-byte lengths.
func lengthPrefixed(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		out = append(out, 0, 0, 0, byte(len(n)))
		out = append(out, n...)
	}
	return out
}

func TestRunEditMatroskaMatchesAnnexB(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := writeFile(t, dir, "edit.json", []byte(`{"cll": {"max_content_light_level": 500, "max_average_light_level": 200}}`))

	hvcc := make([]byte, 23)
	hvcc[0], hvcc[21], hvcc[22] = 1, 0xFF, 1
	hvcc = append(hvcc, 0xA0, 0x00, 0x01, 0x00, byte(len(vps)))
	hvcc = append(hvcc, vps...)
	track := ebml([]byte{0xAE},
		ebml([]byte{0xD7}, []byte{0x01}),
		ebml([]byte{0x86}, []byte("V_MPEGH/ISO/HEVC")),
		ebml([]byte{0x63, 0xA2}, hvcc),
	)
	block := append([]byte{0x81, 0x00, 0x00, 0x80}, lengthPrefixed(cll, idr)...)
	mkv := append(
		ebml([]byte{0x1A, 0x45, 0xDF, 0xA3}, ebml([]byte{0x42, 0x82}, []byte("matroska"))),
		ebml([]byte{0x18, 0x53, 0x80, 0x67},
			ebml([]byte{0x16, 0x54, 0xAE, 0x6B}, track),
			ebml([]byte{0x1F, 0x43, 0xB6, 0x75}, ebml([]byte{0xA3}, block)),
		)...,
	)

	outputs := make([][]byte, 0, 2)
	for _, in := range []string{
		writeFile(t, dir, "regular.hevc", stream(vps, cll, idr)),
		writeFile(t, dir, "regular.mkv", mkv),
	} {
		out := in + ".out"
		require.NoError(t, run(context.Background(), []string{"edit", "-i", in, "-c", cfg, "-o", out}, testSettings(), &bytes.Buffer{}))
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		outputs = append(outputs, got)
	}
	assert.Equal(t, stream(vps, []byte{0x4E, 0x01, 0x90, 0x04, 0x01, 0xF4, 0x00, 0xC8, 0x80}, idr), outputs[0])
	assert.Equal(t, outputs[0], outputs[1])
}

func TestRunEditPositionalWithoutSubcommand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeFile(t, dir, "in.hevc", stream(vps, cll, idr))
	cfg := writeFile(t, dir, "edit.yaml", []byte("mdcv:\n  preset: bt.709\n"))
	out := filepath.Join(dir, "out.hevc")

	// Only MDCV is configured and the stream has none: output equals input.
	err := run(context.Background(), []string{"--config", cfg, "--output", out, in}, testSettings(), &bytes.Buffer{})
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, stream(vps, cll, idr), got)
}

func TestRunEditErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeFile(t, dir, "in.hevc", stream(vps, idr))
	empty := writeFile(t, dir, "empty.json", []byte(`{}`))
	good := writeFile(t, dir, "good.json", []byte(`{"cll": {"max_content_light_level": 1}}`))
	out := filepath.Join(dir, "out.hevc")

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing config", args: []string{"edit", "-i", in, "-o", out}},
		{name: "empty config", args: []string{"edit", "-i", in, "-c", empty, "-o", out}},
		{name: "input twice", args: []string{"edit", "-i", in, "-c", good, "-o", out, in}},
		{name: "no input", args: []string{"edit", "-c", good, "-o", out}},
		{name: "missing input file", args: []string{"edit", "-i", filepath.Join(dir, "nope.hevc"), "-c", good, "-o", out}},
		{name: "unknown flag", args: []string{"edit", "-x"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, run(context.Background(), tc.args, testSettings(), &bytes.Buffer{}))
		})
	}
}

func TestRunEditEmptyConfigFailsBeforeOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeFile(t, dir, "in.hevc", stream(vps))
	empty := writeFile(t, dir, "empty.json", []byte(`{}`))
	out := filepath.Join(dir, "out.hevc")

	err := run(context.Background(), []string{"edit", "-i", in, "-c", empty, "-o", out}, testSettings(), &bytes.Buffer{})
	require.ErrorIs(t, err, config.ErrConfigInvalid)
	_, statErr := os.Stat(out)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunInfoJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeFile(t, dir, "in.hevc", stream(vps, cll, idr, cll))

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"info", "-json", "-full", in}, testSettings(), &stdout)
	require.NoError(t, err)

	var rep editor.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	require.NotNil(t, rep.CLL)
	assert.Equal(t, uint16(1000), rep.CLL.MaxContentLightLevel)
	assert.Equal(t, uint16(400), rep.CLL.MaxAverageLightLevel)
	assert.Nil(t, rep.MDCV)
	assert.Equal(t, int64(4), rep.NALs)
	assert.Equal(t, map[int]int{144: 2}, rep.SEIType)
}

func TestRunInfoText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeFile(t, dir, "in.hevc", stream(vps, cll, idr))

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"info", "-i", in}, testSettings(), &stdout))
	assert.Contains(t, stdout.String(), "MaxCLL 1000 nits, MaxFALL 400 nits")
	assert.Contains(t, stdout.String(), "MDCV:   not present")
}

func TestRunVersion(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, testSettings(), &stdout))
	assert.Equal(t, "hdredit dev\n", stdout.String())
}
