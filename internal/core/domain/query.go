package domain

import "time"

// ConversationTurn is one prior question/answer pair supplied with a query.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Query is an immutable incoming question.
type Query struct {
	Text           string             `json:"text"`
	ConversationID string             `json:"conversation_id,omitempty"`
	History        []ConversationTurn `json:"history,omitempty"`
	Latitude       *float64           `json:"latitude,omitempty"`
	Longitude      *float64           `json:"longitude,omitempty"`
}

// PreparedQuery is the preprocessor output: the rewritten/expanded search
// text plus the classified topic. UserText is never altered.
type PreparedQuery struct {
	UserText   string `json:"user_text"`
	SearchText string `json:"search_text"`
	Topic      string `json:"topic"`
	Expanded   bool   `json:"expanded"`
}

// SearchHit is a raw retrieval result from one source.
type SearchHit struct {
	SourceID    string  `json:"source_id"`
	DocumentID  string  `json:"document_id"`
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	Text        string  `json:"text"`
	VectorScore float64 `json:"vector_score"`
	Category    string  `json:"category,omitempty"`
}

// ScoredResult is a SearchHit after hybrid scoring and deduplication.
type ScoredResult struct {
	Hit          SearchHit `json:"hit"`
	KeywordScore float64   `json:"keyword_score"`
	HybridScore  float64   `json:"hybrid_score"`
	Rank         int       `json:"rank"`
}

// SourceRef is one deduplicated citation shown with an answer.
type SourceRef struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Badge  string `json:"badge"`
}

// Image is a reference photo matched to the query topic.
type Image struct {
	Path    string `json:"path"`
	Caption string `json:"caption,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// AnswerContext is the bounded context assembled for generation.
type AnswerContext struct {
	Text       string      `json:"text"`
	Sources    []SourceRef `json:"sources"`
	Images     []Image     `json:"images,omitempty"`
	TokenCount int         `json:"token_count"`
}

// GroundingResult is the post-generation grounding verdict.
type GroundingResult struct {
	Grounded          bool     `json:"grounded"`
	Confidence        float64  `json:"confidence"`
	UnsupportedClaims []string `json:"unsupported_claims,omitempty"`
	Issues            []string `json:"issues,omitempty"`
}

// Answer is the final pipeline output.
type Answer struct {
	Text                string          `json:"answer"`
	Sources             []SourceRef     `json:"sources"`
	Images              []Image         `json:"images,omitempty"`
	Confidence          ConfidenceScore `json:"confidence"`
	RecommendedProducts []string        `json:"recommended_products,omitempty"`
	WebSearchUsed       bool            `json:"web_search_used"`
	GroundingPassed     bool            `json:"grounding_passed"`
	Topic               string          `json:"topic,omitempty"`
}

// Feedback is a user rating of a delivered answer.
type Feedback struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Rating     string    `json:"rating"`
	Correction string    `json:"correction,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	SourceIDs  []string  `json:"source_ids,omitempty"`
	Confidence float64   `json:"confidence"`
	Topic      string    `json:"topic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
