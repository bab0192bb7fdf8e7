package internal

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"mediachat/internal/storage"
)

// ErrInvalidPayload marks a malformed inline upload.
var ErrInvalidPayload = errors.New("invalid inline upload payload")

// ErrNoFile is returned when the HTTP upload carries no file part.
var ErrNoFile = errors.New("no file uploaded")

// media kinds derived from the declared mime type.
const (
	KindImage = "image"
	KindVideo = "video"
	KindFile  = "file"
)

// ClassifyMime buckets a declared mime type into image, video, or generic
// file, deciding which ingestion path the upload takes.
func ClassifyMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	default:
		return KindFile
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// SanitizeFilename reduces a client-supplied name to a path-safe allow-list.
// Names that sanitize away entirely are neutralized, never rejected.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." || strings.Trim(name, "_") == "" {
		return "unnamed"
	}
	return name
}

// UploadJob is the transient record of one accepted out-of-band upload. It
// lives from multipart parse until the resulting Message is handed back.
type UploadJob struct {
	SourcePath   string
	StoredName   string
	OriginalName string
	DeclaredMime string
	SizeBytes    int64
	Uploader     string
}

// Pipeline classifies and stores uploaded media, transcoding video before
// distribution. Transcode jobs share a bounded worker pool: the semaphore
// caps the number of concurrent ffmpeg processes, queueing the rest, which
// deliberately hardens the unbounded behavior the protocol grew up with.
type Pipeline struct {
	uploadDir  string
	videoDir   string
	transcoder Transcoder
	workers    *semaphore.Weighted
	timeout    time.Duration
	store      *storage.Store
	metrics    *Metrics
	now        func() time.Time
}

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	UploadDir        string
	VideoDir         string
	Transcoder       Transcoder
	TranscodeWorkers int64
	TranscodeTimeout time.Duration
}

func NewPipeline(opts PipelineOptions, store *storage.Store, metrics *Metrics) *Pipeline {
	workers := opts.TranscodeWorkers
	if workers <= 0 {
		workers = 2
	}
	timeout := opts.TranscodeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	transcoder := opts.Transcoder
	if transcoder == nil {
		transcoder = &FFmpeg{}
	}
	return &Pipeline{
		uploadDir:  opts.UploadDir,
		videoDir:   opts.VideoDir,
		transcoder: transcoder,
		workers:    semaphore.NewWeighted(workers),
		timeout:    timeout,
		store:      store,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Process turns a stored upload into its chat message: classify, transcode
// when it is a video, and record the final blob in the media index. The
// returned message references either the transcoded output or, on any
// transcode failure, the untouched original — an upload is never lost.
func (p *Pipeline) Process(ctx context.Context, job UploadJob) (Message, error) {
	kind := ClassifyMime(job.DeclaredMime)
	p.metrics.UploadsTotal.WithLabelValues(kind).Inc()

	fileURL := "/uploads/" + job.StoredName
	fileType := job.DeclaredMime
	fileSize := job.SizeBytes
	transcoded := false

	if kind == KindVideo {
		base := strings.TrimSuffix(job.StoredName, filepath.Ext(job.StoredName))
		outName := fmt.Sprintf("%s_compressed_%d.mp4", base, p.now().UnixMilli())
		result := p.transcodeVideo(ctx, job.SourcePath, filepath.Join(p.videoDir, outName), job.SizeBytes)
		if result.FellBack {
			p.metrics.TranscodesTotal.WithLabelValues("fallback").Inc()
			slog.Warn("transcode failed, serving original",
				"file", job.OriginalName, "reason", result.Reason)
		} else {
			p.metrics.TranscodesTotal.WithLabelValues("success").Inc()
			fileURL = "/compressed_videos/" + outName
			fileType = "video/mp4"
			fileSize = result.SizeBytes
			transcoded = true
		}
	}

	record := storage.MediaRecord{
		StoredName:   filepath.Base(fileURL),
		OriginalName: job.OriginalName,
		MimeType:     fileType,
		SizeBytes:    fileSize,
		Kind:         kind,
		URL:          fileURL,
		Transcoded:   transcoded,
		Uploader:     job.Uploader,
	}
	if err := p.store.RecordMedia(ctx, record); err != nil {
		// the blob is on disk and the message still goes out; the index is
		// advisory.
		slog.Error("recording media index entry", "file", job.OriginalName, "error", err)
	}

	return Message{
		Sender:    job.Uploader,
		Body:      job.OriginalName,
		Timestamp: formatTimestamp(p.now()),
		Type:      kind,
		File:      fileURL,
		FileType:  fileType,
		FileName:  job.OriginalName,
		FileSize:  fileSize,
	}, nil
}

// transcodeVideo makes exactly one attempt under a worker slot and a
// deadline. Success removes the original; every failure path keeps it and
// reports a fallback.
func (p *Pipeline) transcodeVideo(ctx context.Context, src, dst string, originalSize int64) TranscodeResult {
	fallback := func(reason string) TranscodeResult {
		_ = os.Remove(dst) // partial output, if any
		return TranscodeResult{Path: src, SizeBytes: originalSize, FellBack: true, Reason: reason}
	}

	if err := p.workers.Acquire(ctx, 1); err != nil {
		return fallback(fmt.Sprintf("waiting for transcode slot: %v", err))
	}
	defer p.workers.Release(1)

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.transcoder.Transcode(jobCtx, src, dst); err != nil {
		return fallback(err.Error())
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		return fallback("transcode produced no output")
	}
	if err := os.Remove(src); err != nil {
		slog.Warn("removing original after transcode", "path", src, "error", err)
	}
	return TranscodeResult{Path: dst, SizeBytes: info.Size()}
}

// IngestInline wraps an already compressed inline image into its message.
// The bytes are passed through untouched; only the dimensions are probed
// for the log.
func (p *Pipeline) IngestInline(sender string, payload InlineFilePayload, timestamp string) Message {
	if width, height, ok := probeDataURL(payload.FileContent); ok {
		slog.Debug("inline image accepted",
			"file", payload.FileName, "width", width, "height", height)
	}
	return Message{
		Sender:    sender,
		Body:      payload.FileName,
		Timestamp: timestamp,
		Type:      MessageImage,
		File:      payload.FileContent,
		FileType:  payload.FileType,
		FileName:  payload.FileName,
		FileSize:  payload.FileSize,
	}
}

// probeDataURL decodes the base64 body of a data URL far enough to read the
// image dimensions. Any failure is fine; the payload is relayed regardless.
func probeDataURL(dataURL string) (width, height int, ok bool) {
	idx := strings.Index(dataURL, "base64,")
	if idx < 0 {
		return 0, 0, false
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len("base64,"):])
	if err != nil {
		return 0, 0, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
