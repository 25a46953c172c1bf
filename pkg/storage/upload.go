package storage

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/havenworks/docvault/internal/logger"
	"github.com/havenworks/docvault/internal/sanitize"
)

// UploadFile uploads one document and applies its metadata.
//
// Payloads up to the single-shot limit go in one request; larger payloads are
// transferred through an upload session in fixed-size byte-range chunks, each
// chunk retried independently on transient failure. The destination path is
// derived canonically from the structured identifier when one is present;
// otherwise the caller's free-form path is sanitized with the default root
// enforced.
//
// Content and metadata are not atomic: when the content lands but the
// metadata update fails the error is a *PartialUploadError carrying the item
// id, and the uploaded file is left in place.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) (*DriveItem, error) {
	name, folder, err := c.validateUpload(req)
	if err != nil {
		return nil, err
	}

	itemPath := strings.TrimSuffix(string(folder), "/") + "/" + string(name)

	var item *DriveItem
	if int64(len(req.Data)) <= c.singleShotLimit {
		item, err = c.uploadSingleShot(ctx, req.ContainerID, itemPath, req.Data)
	} else {
		item, err = c.uploadChunked(ctx, req.ContainerID, itemPath, req.Data)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("uploaded %s (%d bytes) to container %s as item %s",
		itemPath, len(req.Data), req.ContainerID, item.ID)

	if len(req.Metadata) > 0 {
		if err := c.UpdateDocumentMetadata(ctx, req.ContainerID, item.ID, req.Metadata); err != nil {
			return item, &PartialUploadError{ItemID: item.ID, Err: err}
		}
	}

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, req.ContainerID, string(folder), string(name), req.Data); err != nil {
			logger.Warn("archive mirror failed for item %s: %v", item.ID, err)
		}
	}

	return item, nil
}

// validateUpload applies all client-side checks and resolves the sanitized
// file name and destination folder. No network call is made here.
func (c *Client) validateUpload(req UploadRequest) (sanitize.Name, sanitize.Path, error) {
	if req.ContainerID == "" {
		return "", "", &ValidationError{Field: "ContainerID", Reason: "container id is required"}
	}
	if len(req.Data) == 0 {
		return "", "", &ValidationError{Field: "Data", Reason: "payload is empty"}
	}
	if c.maxFileSize > 0 && int64(len(req.Data)) > c.maxFileSize {
		return "", "", &ValidationError{
			Field:  "Data",
			Reason: fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", len(req.Data), c.maxFileSize),
		}
	}

	name, err := sanitize.CleanName(req.FileName)
	if err != nil {
		return "", "", &ValidationError{Field: "FileName", Reason: "invalid file name", Err: err}
	}

	if len(c.allowedExt) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(string(name)), "."))
		if _, ok := c.allowedExt[ext]; !ok {
			return "", "", &ValidationError{
				Field:  "FileName",
				Reason: fmt.Sprintf("file extension %q is not allowed", ext),
			}
		}
	}

	var folder sanitize.Path
	if req.Structured != nil {
		// Canonical mode: the caller's folder path is ignored entirely.
		folder, err = sanitize.CanonicalPath(*req.Structured)
		if err != nil {
			return "", "", &ValidationError{Field: "Structured", Reason: "invalid structured identifier", Err: err}
		}
	} else if req.FolderPath == "" || req.FolderPath == "/" {
		folder = sanitize.Path("/" + c.defaultRoot)
	} else {
		folder, err = sanitize.CleanPath(req.FolderPath, c.defaultRoot)
		if err != nil {
			return "", "", &ValidationError{Field: "FolderPath", Reason: "invalid folder path", Err: err}
		}
	}

	return name, folder, nil
}

// uploadSingleShot sends the whole payload in one request.
func (c *Client) uploadSingleShot(ctx context.Context, containerID, itemPath string, data []byte) (*DriveItem, error) {
	url := drivePathURL(containerID, sanitize.Path(itemPath), ":/content")

	resp, err := c.exec.do(ctx, http.MethodPut, url, requestOptions{rawBody: data})
	if err != nil {
		return nil, err
	}

	var item DriveItem
	if err := resp.decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// uploadChunked creates an upload session and transfers the payload in
// ordered byte-range chunks. Progress is checkpointed to the journal after
// every accepted chunk so an interrupted transfer leaves a resumable record.
func (c *Client) uploadChunked(ctx context.Context, containerID, itemPath string, data []byte) (*DriveItem, error) {
	session, err := c.createUploadSession(ctx, containerID, itemPath)
	if err != nil {
		return nil, err
	}

	total := int64(len(data))
	dir, name := splitItemPath(itemPath)

	for start := int64(0); start < total; start += c.chunkSize {
		end := start + c.chunkSize
		if end > total {
			end = total
		}

		item, err := c.uploadChunk(ctx, session.UploadURL, data[start:end], start, end-1, total)
		if err != nil {
			c.metrics.IncChunk("failed")
			c.checkpoint(ctx, containerID, dir, name, session.UploadURL, total, start)
			return nil, fmt.Errorf("chunk %d-%d of %d failed: %w", start, end-1, total, err)
		}
		c.metrics.IncChunk("sent")
		c.checkpoint(ctx, containerID, dir, name, session.UploadURL, total, end)

		if item != nil {
			// Final chunk accepted; the server answered with the item.
			c.metrics.IncChunk("completed")
			c.clearCheckpoint(ctx, containerID, dir, name)
			return item, nil
		}
	}

	return nil, fmt.Errorf("upload session for %s consumed all %d bytes without a final item response", itemPath, total)
}

// createUploadSession allocates a chunked-upload endpoint for the item path.
func (c *Client) createUploadSession(ctx context.Context, containerID, itemPath string) (*UploadSession, error) {
	url := drivePathURL(containerID, sanitize.Path(itemPath), ":/createUploadSession")

	body := map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "replace",
		},
	}

	resp, err := c.exec.do(ctx, http.MethodPost, url, requestOptions{jsonBody: body})
	if err != nil {
		return nil, fmt.Errorf("failed to create upload session: %w", err)
	}

	var session UploadSession
	if err := resp.decode(&session); err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, fmt.Errorf("upload session response carried no upload URL")
	}
	return &session, nil
}

// uploadChunk sends one byte range to the session URL. A 202 means the server
// expects more ranges (nil item); a 200 or 201 carries the completed item.
func (c *Client) uploadChunk(ctx context.Context, uploadURL string, chunk []byte, start, end, total int64) (*DriveItem, error) {
	resp, err := c.exec.do(ctx, http.MethodPut, uploadURL, requestOptions{
		rawBody: chunk,
		headers: map[string]string{
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", start, end, total),
		},
	})
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusAccepted {
		return nil, nil
	}

	var item DriveItem
	if err := resp.decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) checkpoint(ctx context.Context, containerID, dir, name, uploadURL string, total, sent int64) {
	if c.journal == nil {
		return
	}
	cp := UploadCheckpoint{
		ContainerID: containerID,
		Path:        dir,
		Name:        name,
		UploadURL:   uploadURL,
		TotalSize:   total,
		BytesSent:   sent,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := c.journal.Save(ctx, cp); err != nil {
		logger.Warn("failed to checkpoint upload %s/%s: %v", dir, name, err)
	}
}

func (c *Client) clearCheckpoint(ctx context.Context, containerID, dir, name string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Delete(ctx, containerID, dir, name); err != nil {
		logger.Warn("failed to clear upload checkpoint %s/%s: %v", dir, name, err)
	}
}

// splitItemPath separates the folder part from the file name.
func splitItemPath(itemPath string) (dir, name string) {
	idx := strings.LastIndexByte(itemPath, '/')
	if idx < 0 {
		return "/", itemPath
	}
	return itemPath[:idx], itemPath[idx+1:]
}
