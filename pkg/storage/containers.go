package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/havenworks/docvault/internal/logger"
)

// listResponse is the collection envelope every list endpoint uses.
type listResponse[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// ListContainers returns all containers of the client's container type.
// Follows pagination links until the collection is exhausted.
func (c *Client) ListContainers(ctx context.Context) ([]Container, error) {
	path := "/containers"
	if c.containerTypeID != "" {
		path += "?$filter=" + url.QueryEscape(fmt.Sprintf("containerTypeId eq %s", c.containerTypeID))
	}

	var out []Container
	for path != "" {
		resp, err := c.exec.do(ctx, http.MethodGet, path, requestOptions{})
		if err != nil {
			return nil, err
		}

		var page listResponse[Container]
		if err := resp.decode(&page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		path = page.NextLink
	}
	return out, nil
}

// GetContainer fetches one container by id, serving repeat lookups from a
// short-lived cache.
func (c *Client) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	if containerID == "" {
		return nil, &ValidationError{Field: "containerID", Reason: "container id is required"}
	}

	if cached, ok := c.cache.Get(containerID); ok {
		return &cached, nil
	}

	resp, err := c.exec.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(containerID), requestOptions{})
	if err != nil {
		return nil, err
	}

	var container Container
	if err := resp.decode(&container); err != nil {
		return nil, err
	}

	c.cache.SetWithTTL(containerID, container, 1, c.cacheTTL)
	return &container, nil
}

// CreateContainer provisions a new container. The container type id from the
// client configuration is applied unless the request carries its own.
func (c *Client) CreateContainer(ctx context.Context, req CreateContainerRequest) (*Container, error) {
	if req.DisplayName == "" {
		return nil, &ValidationError{Field: "DisplayName", Reason: "display name is required"}
	}

	typeID := req.ContainerTypeID
	if typeID == "" {
		typeID = c.containerTypeID
	}
	if typeID == "" {
		return nil, &ValidationError{Field: "ContainerTypeID", Reason: "container type id is required"}
	}

	body := map[string]any{
		"displayName":     req.DisplayName,
		"containerTypeId": typeID,
	}
	if req.Description != "" {
		body["description"] = req.Description
	}

	resp, err := c.exec.do(ctx, http.MethodPost, "/containers", requestOptions{jsonBody: body})
	if err != nil {
		return nil, err
	}

	var container Container
	if err := resp.decode(&container); err != nil {
		return nil, err
	}

	c.cache.SetWithTTL(container.ID, container, 1, c.cacheTTL)
	logger.Info("created container %s (%s)", container.ID, container.DisplayName)
	return &container, nil
}

// TestConnectivity verifies that the remote API is reachable and the
// credentials are accepted, by listing containers and discarding the result.
func (c *Client) TestConnectivity(ctx context.Context) error {
	_, err := c.exec.do(ctx, http.MethodGet, "/containers", requestOptions{})
	if err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	return nil
}
