package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// HandleUpload is the out-of-band intake path: a bounded multipart POST
// carrying the file under "chatFile" and the sender under "username".
// Videos are transcoded before distribution; everything else is stored
// as-is. The finished message is pushed over the persistent channel before
// the HTTP response is written, and independently of it.
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("file too large"))
			return
		}
		writeError(w, http.StatusBadRequest, errors.New("malformed multipart body"))
		return
	}

	file, header, err := r.FormFile("chatFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrNoFile)
		return
	}
	defer file.Close()

	username := r.FormValue("username")
	if username == "" {
		username = "Unknown"
	}

	job, err := s.pipeline.saveUpload(file, header, username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// the job must finish even if the uploader goes away mid-transcode; an
	// in-flight upload completes independently of connection state.
	msg, err := s.pipeline.Process(context.WithoutCancel(r.Context()), job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.Publish(msg)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "File uploaded and processed successfully",
		"fileUrl": msg.File,
	})
}

// saveUpload copies the multipart part into the uploads root under a
// timestamp-prefixed, sanitized name and returns the transient job record.
func (p *Pipeline) saveUpload(file multipart.File, header *multipart.FileHeader, username string) (UploadJob, error) {
	storedName := fmt.Sprintf("%d-%s", p.now().UnixMilli(), SanitizeFilename(header.Filename))
	dstPath := filepath.Join(p.uploadDir, storedName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return UploadJob{}, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(dstPath)
		return UploadJob{}, fmt.Errorf("save upload: %w", err)
	}

	slog.Info("upload stored", "file", header.Filename, "stored_as", storedName,
		"size", written, "uploader", username)

	return UploadJob{
		SourcePath:   dstPath,
		StoredName:   storedName,
		OriginalName: header.Filename,
		DeclaredMime: declaredMimeType(header),
		SizeBytes:    written,
		Uploader:     username,
	}, nil
}

// declaredMimeType prefers the part's Content-Type, falling back to the
// filename extension when the client sent nothing usable.
func declaredMimeType(header *multipart.FileHeader) string {
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if detected := mime.TypeByExtension(filepath.Ext(header.Filename)); detected != "" {
			mimeType = detected
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mimeType
}
