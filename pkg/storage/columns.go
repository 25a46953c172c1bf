package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/havenworks/docvault/internal/logger"
)

// CreateColumn declares a metadata column on a container. Creation is
// idempotent: when the remote store reports the name as already taken, the
// existing definition is fetched and returned instead of an error.
func (c *Client) CreateColumn(ctx context.Context, containerID string, def ColumnDefinition) (*ColumnDefinition, error) {
	if containerID == "" {
		return nil, &ValidationError{Field: "containerID", Reason: "container id is required"}
	}
	if err := def.Validate(); err != nil {
		return nil, &ValidationError{Field: "column", Reason: "invalid column definition", Err: err}
	}

	resp, err := c.exec.do(ctx, http.MethodPost, columnsURL(containerID), requestOptions{jsonBody: def})
	if err != nil {
		if IsConflict(err) {
			logger.Debug("column %s already exists on container %s, fetching definition", def.Name, containerID)
			return c.findColumnByName(ctx, containerID, def.Name)
		}
		return nil, err
	}

	var created ColumnDefinition
	if err := resp.decode(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListColumns returns all metadata columns declared on a container.
func (c *Client) ListColumns(ctx context.Context, containerID string) ([]ColumnDefinition, error) {
	if containerID == "" {
		return nil, &ValidationError{Field: "containerID", Reason: "container id is required"}
	}

	path := columnsURL(containerID)
	var out []ColumnDefinition
	for path != "" {
		resp, err := c.exec.do(ctx, http.MethodGet, path, requestOptions{})
		if err != nil {
			return nil, err
		}

		var page listResponse[ColumnDefinition]
		if err := resp.decode(&page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		path = page.NextLink
	}
	return out, nil
}

// GetColumn fetches one column by its id.
func (c *Client) GetColumn(ctx context.Context, containerID, columnID string) (*ColumnDefinition, error) {
	if containerID == "" || columnID == "" {
		return nil, &ValidationError{Field: "columnID", Reason: "container id and column id are required"}
	}

	resp, err := c.exec.do(ctx, http.MethodGet, columnsURL(containerID)+"/"+url.PathEscape(columnID), requestOptions{})
	if err != nil {
		return nil, err
	}

	var def ColumnDefinition
	if err := resp.decode(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// UpdateColumn patches a column definition. The column type cannot change;
// only the mutable attributes of the existing facet are applied.
func (c *Client) UpdateColumn(ctx context.Context, containerID, columnID string, def ColumnDefinition) (*ColumnDefinition, error) {
	if containerID == "" || columnID == "" {
		return nil, &ValidationError{Field: "columnID", Reason: "container id and column id are required"}
	}

	resp, err := c.exec.do(ctx, http.MethodPatch, columnsURL(containerID)+"/"+url.PathEscape(columnID), requestOptions{jsonBody: def})
	if err != nil {
		return nil, err
	}

	var updated ColumnDefinition
	if err := resp.decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteColumn removes a column declaration. Documents keep any values
// already written under the column name; only the schema entry goes away.
func (c *Client) DeleteColumn(ctx context.Context, containerID, columnID string) error {
	if containerID == "" || columnID == "" {
		return &ValidationError{Field: "columnID", Reason: "container id and column id are required"}
	}

	_, err := c.exec.do(ctx, http.MethodDelete, columnsURL(containerID)+"/"+url.PathEscape(columnID), requestOptions{})
	return err
}

// findColumnByName scans the container's columns for a name match. Used to
// resolve idempotent creation after a conflict.
func (c *Client) findColumnByName(ctx context.Context, containerID, name string) (*ColumnDefinition, error) {
	columns, err := c.ListColumns(ctx, containerID)
	if err != nil {
		return nil, err
	}
	for i := range columns {
		if columns[i].Name == name {
			return &columns[i], nil
		}
	}
	return nil, fmt.Errorf("column %q reported as existing but not found on container %s", name, containerID)
}

// receiptColumns is the standard metadata schema applied to document
// containers: enough structure to file, find and reconcile receipts.
func receiptColumns() []ColumnDefinition {
	return []ColumnDefinition{
		{
			Name:        "ExpenseID",
			DisplayName: "Expense ID",
			Indexed:     true,
			Text:        &TextColumn{MaxLength: 64},
		},
		{
			Name:        "ProjectCode",
			DisplayName: "Project Code",
			Indexed:     true,
			Text:        &TextColumn{MaxLength: 32},
		},
		{
			Name:        "DocumentDate",
			DisplayName: "Document Date",
			DateTime:    &DateTimeColumn{Format: "dateOnly"},
		},
		{
			Name:        "Amount",
			DisplayName: "Amount",
			Currency:    &CurrencyColumn{},
		},
		{
			Name:        "Category",
			DisplayName: "Category",
			Choice: &ChoiceColumn{
				Choices: []string{"Travel", "Meals", "Supplies", "Software", "Other"},
			},
		},
		{
			Name:        "Reconciled",
			DisplayName: "Reconciled",
			Boolean:     &BooleanColumn{},
		},
	}
}

// InitializeMetadataSchema declares the standard receipt columns on a
// container. Safe to call repeatedly: creation is idempotent per column.
func (c *Client) InitializeMetadataSchema(ctx context.Context, containerID string) error {
	for _, def := range receiptColumns() {
		if _, err := c.CreateColumn(ctx, containerID, def); err != nil {
			return fmt.Errorf("failed to declare column %s: %w", def.Name, err)
		}
	}
	logger.Info("metadata schema initialized on container %s", containerID)
	return nil
}

// UpdateDocumentMetadata writes all field values in one batched update. The
// remote store applies the batch atomically; a failed call changes nothing.
func (c *Client) UpdateDocumentMetadata(ctx context.Context, containerID, itemID string, fields map[string]any) error {
	if containerID == "" || itemID == "" {
		return &ValidationError{Field: "itemID", Reason: "container id and item id are required"}
	}
	if len(fields) == 0 {
		return &ValidationError{Field: "fields", Reason: "no metadata fields to update"}
	}

	_, err := c.exec.do(ctx, http.MethodPatch, itemURL(containerID, itemID)+"/listItem/fields", requestOptions{jsonBody: fields})
	return err
}

func columnsURL(containerID string) string {
	return "/containers/" + url.PathEscape(containerID) + "/columns"
}
