package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ListDocumentsWithMetadata returns the documents of a folder together with
// their metadata fields, applying server-side filtering, ordering and paging.
// Filters combine with logical AND only.
func (c *Client) ListDocumentsWithMetadata(ctx context.Context, containerID, folderPath string, opts QueryOptions) ([]DocumentWithMetadata, error) {
	if containerID == "" {
		return nil, &ValidationError{Field: "containerID", Reason: "container id is required"}
	}

	query := url.Values{}
	query.Set("$expand", "listItem($expand=fields)")

	if filter, err := renderFilters(opts.Filters); err != nil {
		return nil, err
	} else if filter != "" {
		query.Set("$filter", filter)
	}

	if opts.OrderBy != "" {
		order := "fields/" + opts.OrderBy
		if opts.Descending {
			order += " desc"
		}
		query.Set("$orderby", order)
	}

	if opts.Top > 0 {
		query.Set("$top", strconv.Itoa(opts.Top))
	}

	items, err := c.listExpanded(ctx, containerID, folderPath, query)
	if err != nil {
		return nil, err
	}

	out := make([]DocumentWithMetadata, 0, len(items))
	for _, it := range items {
		doc := DocumentWithMetadata{Item: it.DriveItem}
		if it.ListItem != nil {
			doc.Fields = it.ListItem.Fields
		}
		out = append(out, doc)
	}
	return out, nil
}

// expandedItem is the wire shape of a drive item with its list-item fields
// expanded inline.
type expandedItem struct {
	DriveItem
	ListItem *struct {
		Fields map[string]any `json:"fields"`
	} `json:"listItem,omitempty"`
}

func (c *Client) listExpanded(ctx context.Context, containerID, folderPath string, query url.Values) ([]expandedItem, error) {
	base, err := c.childrenURL(containerID, folderPath)
	if err != nil {
		return nil, err
	}
	path := base + "?" + query.Encode()

	var out []expandedItem
	for path != "" {
		resp, err := c.exec.do(ctx, http.MethodGet, path, requestOptions{})
		if err != nil {
			return nil, err
		}

		var page listResponse[expandedItem]
		if err := resp.decode(&page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		path = page.NextLink
	}
	return out, nil
}

// renderFilters builds the $filter expression: each predicate addresses a
// metadata field as fields/<Name>, predicates join with " and ".
func renderFilters(filters []MetadataFilter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f.Field == "" {
			return "", &ValidationError{Field: "Filters", Reason: "filter field name is empty"}
		}
		op := f.Operator
		if op == "" {
			op = OpEq
		}
		value, err := renderFilterValue(f.Value)
		if err != nil {
			return "", &ValidationError{Field: "Filters", Reason: fmt.Sprintf("field %s: %v", f.Field, err)}
		}
		parts = append(parts, fmt.Sprintf("fields/%s %s %s", f.Field, op, value))
	}
	return strings.Join(parts, " and "), nil
}

// renderFilterValue formats a filter operand as an OData literal. Strings are
// single-quoted with embedded quotes doubled; times use RFC 3339.
func renderFilterValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339), nil
	case nil:
		return "", fmt.Errorf("filter value is nil")
	default:
		return "", fmt.Errorf("unsupported filter value type %T", v)
	}
}
