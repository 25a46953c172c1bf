package storage

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/havenworks/docvault/internal/logger"
	"github.com/havenworks/docvault/internal/sanitize"
)

// escapeDrivePath percent-encodes each segment of a drive-relative path while
// keeping the separators intact, so names with spaces or unicode survive the
// path-addressing URL form.
func escapeDrivePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

// drivePathURL builds the colon-delimited path-addressing form for a folder,
// with suffix appended inside the address (e.g. ":/children").
func drivePathURL(containerID string, folderPath sanitize.Path, suffix string) string {
	base := "/containers/" + url.PathEscape(containerID) + "/drive"
	if folderPath == "" || folderPath == "/" {
		return base + "/root" + strings.TrimPrefix(suffix, ":")
	}
	return base + "/root:" + escapeDrivePath(string(folderPath)) + suffix
}

// childrenURL resolves the children collection URL for a free-form folder
// path, sanitizing it first. "" and "/" address the drive root.
func (c *Client) childrenURL(containerID, folderPath string) (string, error) {
	if folderPath == "" || folderPath == "/" {
		return drivePathURL(containerID, "/", ":/children"), nil
	}
	clean, err := sanitize.CleanPath(folderPath, c.defaultRoot)
	if err != nil {
		return "", &ValidationError{Field: "folderPath", Reason: "invalid folder path", Err: err}
	}
	return drivePathURL(containerID, clean, ":/children"), nil
}

// ListFiles returns the children of a folder. folderPath is free-form and is
// sanitized (with the default root enforced) before use; pass "" or "/" for
// the drive root.
func (c *Client) ListFiles(ctx context.Context, containerID, folderPath string) ([]DriveItem, error) {
	if containerID == "" {
		return nil, &ValidationError{Field: "containerID", Reason: "container id is required"}
	}

	path, err := c.childrenURL(containerID, folderPath)
	if err != nil {
		return nil, err
	}

	var out []DriveItem
	for path != "" {
		resp, err := c.exec.do(ctx, http.MethodGet, path, requestOptions{})
		if err != nil {
			return nil, err
		}

		var page listResponse[DriveItem]
		if err := resp.decode(&page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		path = page.NextLink
	}
	return out, nil
}

// GetItem fetches one drive item by id.
func (c *Client) GetItem(ctx context.Context, containerID, itemID string) (*DriveItem, error) {
	if containerID == "" || itemID == "" {
		return nil, &ValidationError{Field: "itemID", Reason: "container id and item id are required"}
	}

	resp, err := c.exec.do(ctx, http.MethodGet, itemURL(containerID, itemID), requestOptions{})
	if err != nil {
		return nil, err
	}

	var item DriveItem
	if err := resp.decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DownloadFile returns the full content of a file item.
func (c *Client) DownloadFile(ctx context.Context, containerID, itemID string) ([]byte, error) {
	if containerID == "" || itemID == "" {
		return nil, &ValidationError{Field: "itemID", Reason: "container id and item id are required"}
	}

	resp, err := c.exec.do(ctx, http.MethodGet, itemURL(containerID, itemID)+"/content", requestOptions{})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// DeleteFile removes an item (file or folder). Deleting an already-absent
// item surfaces the remote 404; callers that want idempotent semantics can
// test it with IsNotFound.
func (c *Client) DeleteFile(ctx context.Context, containerID, itemID string) error {
	if containerID == "" || itemID == "" {
		return &ValidationError{Field: "itemID", Reason: "container id and item id are required"}
	}

	_, err := c.exec.do(ctx, http.MethodDelete, itemURL(containerID, itemID), requestOptions{})
	if err != nil {
		return err
	}

	logger.Debug("deleted item %s in container %s", itemID, containerID)
	return nil
}

// CreateFolder creates a folder under the given parent path. The folder name
// and parent path are sanitized before use.
func (c *Client) CreateFolder(ctx context.Context, req CreateFolderRequest) (*DriveItem, error) {
	if req.ContainerID == "" {
		return nil, &ValidationError{Field: "ContainerID", Reason: "container id is required"}
	}

	name, err := sanitize.CleanName(req.Name)
	if err != nil {
		return nil, &ValidationError{Field: "Name", Reason: "invalid folder name", Err: err}
	}

	path, err := c.childrenURL(req.ContainerID, req.ParentPath)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":   string(name),
		"folder": map[string]any{},
	}

	resp, err := c.exec.do(ctx, http.MethodPost, path, requestOptions{jsonBody: body})
	if err != nil {
		return nil, err
	}

	var item DriveItem
	if err := resp.decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func itemURL(containerID, itemID string) string {
	return "/containers/" + url.PathEscape(containerID) + "/drive/items/" + url.PathEscape(itemID)
}
