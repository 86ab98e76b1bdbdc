package notion

import (
	"encoding/json"
	"time"
)

// Page is a Notion page object. Properties are kept raw because each
// property is a tagged union; simplification happens in the ingestor.
type Page struct {
	Object         string                     `json:"object"`
	ID             string                     `json:"id"`
	CreatedTime    time.Time                  `json:"created_time"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	URL            string                     `json:"url"`
	Properties     map[string]json.RawMessage `json:"properties"`
}

// Block is a Notion block object with its text-bearing variants.
type Block struct {
	Object      string `json:"object"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`

	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock `json:"numbered_list_item,omitempty"`
	Quote            *TextBlock `json:"quote,omitempty"`
	Callout          *TextBlock `json:"callout,omitempty"`
	ToDo             *ToDoBlock `json:"to_do,omitempty"`
}

// TextBlock holds rich text content shared by paragraph, heading, list,
// quote and callout blocks.
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
}

// ToDoBlock is a to-do block with its checked state.
type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// RichText is one rich text fragment.
type RichText struct {
	Type      string `json:"type"`
	PlainText string `json:"plain_text"`
}

// queryDatabaseRequest is the body for the database query endpoint.
type queryDatabaseRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// queryDatabaseResponse is a paginated page listing.
type queryDatabaseResponse struct {
	Object     string `json:"object"`
	Results    []Page `json:"results"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// blockChildrenResponse is a paginated block listing.
type blockChildrenResponse struct {
	Object     string  `json:"object"`
	Results    []Block `json:"results"`
	NextCursor string  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}
