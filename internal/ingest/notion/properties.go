package notion

import (
	"encoding/json"
)

// property mirrors the tagged-union shape of a Notion page property. Only
// the variants the catalog pages actually use are decoded.
type property struct {
	Type string `json:"type"`

	Title       []RichText      `json:"title,omitempty"`
	RichText    []RichText      `json:"rich_text,omitempty"`
	Number      *float64        `json:"number,omitempty"`
	Select      *selectOption   `json:"select,omitempty"`
	Status      *selectOption   `json:"status,omitempty"`
	MultiSelect []selectOption  `json:"multi_select,omitempty"`
	Date        *dateValue      `json:"date,omitempty"`
	Checkbox    *bool           `json:"checkbox,omitempty"`
	URL         *string         `json:"url,omitempty"`
	Email       *string         `json:"email,omitempty"`
	PhoneNumber *string         `json:"phone_number,omitempty"`
	CreatedTime string          `json:"created_time,omitempty"`
	EditedTime  string          `json:"last_edited_time,omitempty"`
	Formula     json.RawMessage `json:"formula,omitempty"`
}

type selectOption struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
}

// SimplifyProperties collapses raw page properties into plain Go values:
// text properties become strings, selects their option names, numbers and
// checkboxes their scalar values, and date properties a {start, end} map so
// downstream flattening can split them into range keys. Unsupported
// property types are dropped.
func SimplifyProperties(raw map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(raw))
	for name, data := range raw {
		var p property
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		switch p.Type {
		case "title":
			out[name] = richTextPlain(p.Title)
		case "rich_text":
			out[name] = richTextPlain(p.RichText)
		case "number":
			if p.Number != nil {
				out[name] = *p.Number
			}
		case "select":
			if p.Select != nil {
				out[name] = p.Select.Name
			}
		case "status":
			if p.Status != nil {
				out[name] = p.Status.Name
			}
		case "multi_select":
			names := make([]any, 0, len(p.MultiSelect))
			for _, opt := range p.MultiSelect {
				names = append(names, opt.Name)
			}
			out[name] = names
		case "date":
			if p.Date != nil {
				d := map[string]any{"start": p.Date.Start}
				if p.Date.End != "" {
					d["end"] = p.Date.End
				}
				if p.Date.TimeZone != "" {
					d["time_zone"] = p.Date.TimeZone
				}
				out[name] = d
			}
		case "checkbox":
			if p.Checkbox != nil {
				out[name] = *p.Checkbox
			}
		case "url":
			if p.URL != nil {
				out[name] = *p.URL
			}
		case "email":
			if p.Email != nil {
				out[name] = *p.Email
			}
		case "phone_number":
			if p.PhoneNumber != nil {
				out[name] = *p.PhoneNumber
			}
		case "created_time":
			out[name] = p.CreatedTime
		case "last_edited_time":
			out[name] = p.EditedTime
		}
	}
	return out
}

// PageTitle returns the page's title property text, or an empty string when
// the page has none.
func PageTitle(raw map[string]json.RawMessage) string {
	for _, data := range raw {
		var p property
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		if p.Type == "title" {
			return richTextPlain(p.Title)
		}
	}
	return ""
}
