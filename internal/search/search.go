package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Topic     string `json:"topic"`
	Completed bool   `json:"completed"`
	UserID    string `json:"userId"`
}

// Query describes a search request. UserID is mandatory; results never
// cross user boundaries.
type Query struct {
	Text        string
	UserID      string
	FilterTopic string // empty = all topics
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over tasks.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push task records into a search index.
type Indexer interface {
	IndexTask(t TaskRecord) error
	DeleteTask(id int64) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID        int64  `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Topic     string `json:"topic"`
	Completed bool   `json:"completed"`
}
