package domain

// PageContent is the extracted text and metadata of a fetched page.
type PageContent struct {
	Content         string `json:"content"`
	MetaTitle       string `json:"meta_title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	OGTitle         string `json:"og_title,omitempty"`
	OGDescription   string `json:"og_description,omitempty"`
}

// Empty reports whether extraction produced no usable text.
func (p PageContent) Empty() bool { return p.Content == "" }
