package notion

// searchRequest is the POST /v1/search body.
type searchRequest struct {
	Sort     searchSort `json:"sort"`
	PageSize int        `json:"page_size"`
}

type searchSort struct {
	Direction string `json:"direction"`
	Timestamp string `json:"timestamp"`
}

// searchResponse is the search result envelope.
type searchResponse struct {
	Results    []object `json:"results"`
	HasMore    bool     `json:"has_more"`
	NextCursor string   `json:"next_cursor"`
}

type object struct {
	ID             string              `json:"id"`
	Object         string              `json:"object"` // "page" or "database"
	CreatedTime    string              `json:"created_time"`
	LastEditedTime string              `json:"last_edited_time"`
	URL            string              `json:"url"`
	Properties     map[string]property `json:"properties"`

	// Title is set for databases only.
	Title []richText `json:"title"`
}

type property struct {
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Title []richText `json:"title"`
}

type richText struct {
	Type      string `json:"type"`
	PlainText string `json:"plain_text"`
}

// displayTitle extracts the page title from properties, falling back
// to the database title, then "Untitled".
func (o object) displayTitle() string {
	for _, prop := range o.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 && prop.Title[0].PlainText != "" {
			return prop.Title[0].PlainText
		}
	}
	if len(o.Title) > 0 && o.Title[0].PlainText != "" {
		return o.Title[0].PlainText
	}
	return "Untitled"
}

// icon picks the icon hint by object kind.
func (o object) icon() string {
	switch o.Object {
	case "database":
		return "table"
	case "page":
		return "document"
	default:
		return "document"
	}
}
