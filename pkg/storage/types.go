package storage

import (
	"fmt"
	"time"

	"github.com/havenworks/docvault/internal/sanitize"
)

// Container is a logical, access-scoped storage unit holding files, folders
// and their metadata schema. Container identifiers are opaque and always
// supplied by the caller, never inferred.
type Container struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"displayName"`
	Description     string    `json:"description,omitempty"`
	ContainerTypeID string    `json:"containerTypeId,omitempty"`
	CreatedAt       time.Time `json:"createdDateTime,omitempty"`
	Status          string    `json:"status,omitempty"`
}

// DriveItem is a remote file or folder node. Items are created and returned
// by the remote API; the client never fabricates ids.
type DriveItem struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Size       int64            `json:"size"`
	CreatedAt  time.Time        `json:"createdDateTime"`
	ModifiedAt time.Time        `json:"lastModifiedDateTime"`
	WebURL     string           `json:"webUrl,omitempty"`
	Folder     *FolderFacet     `json:"folder,omitempty"`
	File       *FileFacet       `json:"file,omitempty"`
	Parent     *ParentReference `json:"parentReference,omitempty"`
}

// FolderFacet marks an item as a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount,omitempty"`
}

// FileFacet marks an item as a file.
type FileFacet struct {
	MimeType string `json:"mimeType,omitempty"`
}

// ParentReference locates an item inside its drive.
type ParentReference struct {
	DriveID string `json:"driveId,omitempty"`
	Path    string `json:"path,omitempty"`
}

// IsFolder reports whether the item is a folder node.
func (i *DriveItem) IsFolder() bool {
	return i.Folder != nil
}

// MimeType returns the file MIME type, or "" for folders.
func (i *DriveItem) MimeType() string {
	if i.File == nil {
		return ""
	}
	return i.File.MimeType
}

// ParentPath returns the drive-relative parent path, or "".
func (i *DriveItem) ParentPath() string {
	if i.Parent == nil {
		return ""
	}
	return i.Parent.Path
}

// UploadSession is a server-allocated endpoint accepting a large payload in
// ordered byte-range chunks. Created once per large-file upload, discarded
// after completion or permanent failure.
type UploadSession struct {
	UploadURL          string    `json:"uploadUrl"`
	ExpirationDateTime time.Time `json:"expirationDateTime,omitempty"`
	NextExpectedRanges []string  `json:"nextExpectedRanges,omitempty"`
}

// ColumnType enumerates the supported metadata column types.
type ColumnType string

const (
	ColumnText               ColumnType = "text"
	ColumnChoice             ColumnType = "choice"
	ColumnDateTime           ColumnType = "dateTime"
	ColumnNumber             ColumnType = "number"
	ColumnCurrency           ColumnType = "currency"
	ColumnBoolean            ColumnType = "boolean"
	ColumnPersonOrGroup      ColumnType = "personOrGroup"
	ColumnHyperlinkOrPicture ColumnType = "hyperlinkOrPicture"
)

// ColumnDefinition declares one typed metadata column on a container.
//
// The column type is a tagged union: exactly one of the facet pointers must
// be set, and Type() is derived from which one it is. The wire format is
// type-discriminated the same way (the facet's JSON key names the type).
type ColumnDefinition struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Indexed     bool   `json:"indexed,omitempty"`

	Text               *TextColumn               `json:"text,omitempty"`
	Choice             *ChoiceColumn             `json:"choice,omitempty"`
	DateTime           *DateTimeColumn           `json:"dateTime,omitempty"`
	Number             *NumberColumn             `json:"number,omitempty"`
	Currency           *CurrencyColumn           `json:"currency,omitempty"`
	Boolean            *BooleanColumn            `json:"boolean,omitempty"`
	PersonOrGroup      *PersonOrGroupColumn      `json:"personOrGroup,omitempty"`
	HyperlinkOrPicture *HyperlinkOrPictureColumn `json:"hyperlinkOrPicture,omitempty"`
}

// TextColumn configures a plain text column.
type TextColumn struct {
	AllowMultipleLines bool `json:"allowMultipleLines,omitempty"`
	MaxLength          int  `json:"maxLength,omitempty"`
}

// ChoiceColumn configures a fixed-choice column.
type ChoiceColumn struct {
	Choices        []string `json:"choices"`
	AllowTextEntry bool     `json:"allowTextEntry,omitempty"`
	DisplayAs      string   `json:"displayAs,omitempty"`
}

// DateTimeColumn configures a date/time column.
type DateTimeColumn struct {
	// Format is "dateOnly" or "dateTime".
	Format    string `json:"format,omitempty"`
	DisplayAs string `json:"displayAs,omitempty"`
}

// NumberColumn configures a numeric column.
type NumberColumn struct {
	DecimalPlaces string   `json:"decimalPlaces,omitempty"`
	Minimum       *float64 `json:"minimum,omitempty"`
	Maximum       *float64 `json:"maximum,omitempty"`
}

// CurrencyColumn configures a currency column.
type CurrencyColumn struct {
	Locale string `json:"locale,omitempty"`
}

// BooleanColumn configures a yes/no column. It carries no options; its
// presence alone selects the type.
type BooleanColumn struct{}

// PersonOrGroupColumn configures a person-or-group column.
type PersonOrGroupColumn struct {
	AllowMultipleSelection bool   `json:"allowMultipleSelection,omitempty"`
	ChooseFromType         string `json:"chooseFromType,omitempty"`
}

// HyperlinkOrPictureColumn configures a hyperlink-or-picture column.
type HyperlinkOrPictureColumn struct {
	IsPicture bool `json:"isPicture,omitempty"`
}

// Type returns the column type derived from the populated facet, or "" when
// no facet is set.
func (c *ColumnDefinition) Type() ColumnType {
	switch {
	case c.Text != nil:
		return ColumnText
	case c.Choice != nil:
		return ColumnChoice
	case c.DateTime != nil:
		return ColumnDateTime
	case c.Number != nil:
		return ColumnNumber
	case c.Currency != nil:
		return ColumnCurrency
	case c.Boolean != nil:
		return ColumnBoolean
	case c.PersonOrGroup != nil:
		return ColumnPersonOrGroup
	case c.HyperlinkOrPicture != nil:
		return ColumnHyperlinkOrPicture
	default:
		return ""
	}
}

// Validate checks that the definition names a column and carries exactly one
// type facet.
func (c *ColumnDefinition) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name is required")
	}

	facets := 0
	for _, set := range []bool{
		c.Text != nil, c.Choice != nil, c.DateTime != nil, c.Number != nil,
		c.Currency != nil, c.Boolean != nil, c.PersonOrGroup != nil,
		c.HyperlinkOrPicture != nil,
	} {
		if set {
			facets++
		}
	}

	if facets == 0 {
		return fmt.Errorf("column %q: no type facet set", c.Name)
	}
	if facets > 1 {
		return fmt.Errorf("column %q: multiple type facets set", c.Name)
	}
	return nil
}

// FilterOp is a comparison operator in a metadata query.
type FilterOp string

const (
	OpEq FilterOp = "eq"
	OpNe FilterOp = "ne"
	OpGt FilterOp = "gt"
	OpGe FilterOp = "ge"
	OpLt FilterOp = "lt"
	OpLe FilterOp = "le"
)

// MetadataFilter compares one metadata field against a value. Multiple
// filters are combined with logical AND only; there is no OR and no nested
// grouping.
type MetadataFilter struct {
	Field    string
	Operator FilterOp
	Value    any
}

// QueryOptions composes filtering, ordering and paging for metadata queries.
type QueryOptions struct {
	Filters    []MetadataFilter
	OrderBy    string
	Descending bool
	Top        int
}

// DocumentWithMetadata pairs a drive item with its metadata fields.
type DocumentWithMetadata struct {
	Item   DriveItem
	Fields map[string]any
}

// UploadRequest describes one file upload. One explicit request struct per
// operation; there is no positional-parameter aliasing.
type UploadRequest struct {
	// ContainerID scopes the upload. Required.
	ContainerID string

	// FolderPath is the caller's free-form destination. Ignored when
	// Structured is set (the canonical path wins).
	FolderPath string

	// FileName is the desired file name, sanitized before use. Required.
	FileName string

	// Data is the full payload. Required, non-empty.
	Data []byte

	// Structured, when set, derives the storage path deterministically from
	// the owning record (canonical mode).
	Structured *sanitize.StructuredID

	// Metadata is applied to the uploaded document in one batched update
	// after the content lands. A metadata failure does not undo the upload.
	Metadata map[string]any
}

// CreateContainerRequest describes a new container.
type CreateContainerRequest struct {
	DisplayName     string
	ContainerTypeID string
	Description     string
}

// CreateFolderRequest describes a new folder.
type CreateFolderRequest struct {
	ContainerID string
	ParentPath  string
	Name        string
}
