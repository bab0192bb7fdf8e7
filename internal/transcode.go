package internal

import (
	"context"
	"fmt"
	"os/exec"
)

// Target encoding profile for distributed video: H.264/AAC in MP4, 480px
// tall with the aspect ratio preserved, 800k/128k bitrates.
var ffmpegArgs = []string{
	"-c:v", "libx264",
	"-c:a", "aac",
	"-vf", "scale=-2:480",
	"-b:v", "800k",
	"-b:a", "128k",
	"-f", "mp4",
}

// Transcoder re-encodes a source video into the target MP4 profile. The
// pipeline talks to this seam so tests can substitute a fake.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpeg shells out to the ffmpeg binary for each job.
type FFmpeg struct {
	// Binary overrides the ffmpeg executable path; empty means look up
	// "ffmpeg" on PATH.
	Binary string
}

func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	binary := f.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	args := append([]string{"-y", "-i", src}, ffmpegArgs...)
	args = append(args, dst)
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, truncate(string(output), 512))
	}
	return nil
}

// TranscodeResult is the outcome of the single transcode attempt for one
// upload: either the re-encoded output, or a fallback to the untouched
// original with the reason attached.
type TranscodeResult struct {
	Path      string
	SizeBytes int64
	FellBack  bool
	Reason    string
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
