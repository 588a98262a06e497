// Package catalog defines the JSON documents the browsing client
// consumes and the parse+validate step the decode reactor runs on them.
package catalog

// Kind selects which construct to parse from a byte stream.
type Kind int

const (
	// KindHome parses the service home document.
	KindHome Kind = iota
	// KindSet parses a media collection document.
	KindSet
)

// String returns the document kind name.
func (k Kind) String() string {
	switch k {
	case KindHome:
		return "home"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// Link is a hypermedia link in a home document.
type Link struct {
	Rel  string `json:"rel" validate:"required"`
	Href string `json:"href" validate:"required,url"`
}

// Home is the service home document: the entry point the client fetches
// first to discover where collections live.
type Home struct {
	Title string `json:"title" validate:"required"`
	Links []Link `json:"links" validate:"required,min=1,dive"`
}

// Link returns the href of the first link with the given rel, or "".
func (h *Home) Link(rel string) string {
	for _, l := range h.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

// Entry is one media item in a collection.
type Entry struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title"`
	Media string `json:"media" validate:"required,url"`
	Thumb string `json:"thumb" validate:"omitempty,url"`
}

// Set is a media collection document.
type Set struct {
	Name    string  `json:"name" validate:"required"`
	Entries []Entry `json:"entries" validate:"dive"`
}

// Document is the tagged result of a parse: exactly one of Home or Set
// is populated, according to Kind.
type Document struct {
	Kind Kind
	Home *Home
	Set  *Set
}
