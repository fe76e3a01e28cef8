package model

// Pagination describes the backward boundary of a paginated message fetch.
// NextCursor is opaque to the client; nil or HasMore=false means no more
// history is available.
type Pagination struct {
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

// MessagePage is one page of channel history, ordered oldest-first
type MessagePage struct {
	Messages   []*Message `json:"messages"`
	Pagination Pagination `json:"pagination"`
}
