// Package download assembles downloaded stream segments into one output
// file, either by byte concatenation or by handing a concat manifest to
// ffmpeg. ffmpeg runs via exec.Command with an explicit argument slice and
// output paths are validated against directory traversal.
package download

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"stream2media/internal/httputil"
)

// ErrNoSegments is returned when there is nothing to assemble.
var ErrNoSegments = errors.New("no segments to assemble")

// Muxer joins the files listed in a concat manifest into outputPath.
type Muxer interface {
	Concat(ctx context.Context, manifestPath, outputPath string) error
}

// FFmpeg is the Muxer backed by the ffmpeg binary.
type FFmpeg struct {
	Path string // binary name or path, "ffmpeg" when empty
}

// Args returns the ffmpeg arguments for a stream-copy concat.
func (f FFmpeg) Args(manifestPath, outputPath string) []string {
	return []string{
		"-y", // Overwrite output
		"-safe", "0",
		"-f", "concat",
		"-i", manifestPath,
		"-c", "copy", // No re-encoding
		outputPath,
	}
}

// Concat runs ffmpeg. A failed run removes the partial output.
func (f FFmpeg) Concat(ctx context.Context, manifestPath, outputPath string) error {
	name := f.Path
	if name == "" {
		name = "ffmpeg"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, f.Args(manifestPath, outputPath)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		afero.NewOsFs().Remove(outputPath)
		return fmt.Errorf("ffmpeg concat failed: %w: %s", err, tail(stderr.String(), 5))
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}

// WriteConcatManifest writes one "file '<path>'" line per segment.
func WriteConcatManifest(fs afero.Fs, paths []string, manifestPath string) error {
	if err := fs.MkdirAll(filepath.Dir(manifestPath), 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}

	f, err := fs.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, p := range paths {
		// Single quotes are closed, escaped and reopened per the concat demuxer syntax.
		escaped := strings.ReplaceAll(p, "'", `'\''`)
		if _, err := fmt.Fprintf(w, "file '%s'\n", escaped); err != nil {
			f.Close()
			return fmt.Errorf("writing manifest: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing manifest: %w", err)
	}
	return f.Close()
}

// ConcatBytes appends the raw bytes of every segment to outputPath.
// Segments must share a container, e.g. MPEG-TS.
func ConcatBytes(fs afero.Fs, paths []string, outputPath string) (int64, error) {
	out, err := fs.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("creating output: %w", err)
	}

	var total int64
	for _, p := range paths {
		n, err := appendFile(fs, out, p)
		total += n
		if err != nil {
			out.Close()
			fs.Remove(outputPath)
			return total, err
		}
	}
	return total, out.Close()
}

func appendFile(fs afero.Fs, dst io.Writer, path string) (int64, error) {
	in, err := fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening segment: %w", err)
	}
	defer in.Close()

	n, err := io.Copy(dst, in)
	if err != nil {
		return n, fmt.Errorf("copying segment %s: %w", path, err)
	}
	return n, nil
}

// Assembler writes finished files into an output directory.
type Assembler struct {
	FS    afero.Fs
	Dir   string
	Muxer Muxer
}

// Assemble joins segments into "<title>.<format>". Format "ts" concatenates
// bytes; "mkv" writes a concat manifest next to the output and runs the Muxer.
func (a *Assembler) Assemble(ctx context.Context, segments []string, title, format string) (string, error) {
	if len(segments) == 0 {
		return "", ErrNoSegments
	}
	if err := a.FS.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	base := httputil.SanitizeFilename(title)
	outputPath, err := httputil.SafeDownloadPath(a.Dir, base+"."+format)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}

	switch format {
	case "ts":
		if _, err := ConcatBytes(a.FS, segments, outputPath); err != nil {
			return "", err
		}
	case "mkv":
		if a.Muxer == nil {
			return "", fmt.Errorf("no muxer configured for %s output", format)
		}
		manifestPath, err := httputil.SafeDownloadPath(a.Dir, base+"_input.txt")
		if err != nil {
			return "", fmt.Errorf("invalid manifest path: %w", err)
		}
		if err := WriteConcatManifest(a.FS, segments, manifestPath); err != nil {
			return "", err
		}
		defer a.FS.Remove(manifestPath)

		if err := a.Muxer.Concat(ctx, manifestPath, outputPath); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}

	return outputPath, nil
}

// Cleanup removes downloaded segments and any directories left empty.
func (a *Assembler) Cleanup(segments []string) {
	dirs := make(map[string]bool)
	for _, p := range segments {
		a.FS.Remove(p)
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if entries, err := afero.ReadDir(a.FS, d); err == nil && len(entries) == 0 {
			a.FS.Remove(d)
		}
	}
}
