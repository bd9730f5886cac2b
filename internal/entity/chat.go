package entity

// Turn is one question/answer pair of a conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// History is the ordered sequence of turns of one session, oldest first.
type History []Turn

// Query holds everything produced while answering a single question.
type Query struct {
	RawQuestion       string
	RewrittenQuestion string
	RetrievedChunks   []ScoredChunk
	Answer            string
}
