package models

// TweetsResponse is the success body of GET /tweets.
type TweetsResponse struct {
	Tweets []ServicePost `json:"tweets"`
}

// ErrorResponse is the error body shared by GET /tweets and the CLI.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PostsResponse is the response for GET /api/v1/posts.
type PostsResponse struct {
	// Success indicates whether the fetch completed without errors.
	Success bool `json:"success"`

	// Handle is the normalized profile handle.
	Handle string `json:"handle"`

	// Posts is the assembled result set in service shape.
	Posts []ServicePost `json:"posts"`

	// Candidates is the number of post containers found in the markup.
	Candidates int `json:"candidates"`

	// Rejected is the number of containers dropped during normalization.
	Rejected int `json:"rejected"`

	// EngineUsed indicates which fetch engine produced the markup
	// (e.g. "proxy", "direct", "rod").
	EngineUsed string `json:"engine_used,omitempty"`

	// CacheStatus is "hit" or "miss", or empty when caching is disabled.
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the wall-clock time for the entire request.
	TotalMs int64 `json:"total_ms"`

	// FetchMs is the time spent acquiring the rendered markup.
	FetchMs int64 `json:"fetch_ms"`

	// ExtractMs is the time spent in the extraction pipeline.
	ExtractMs int64 `json:"extract_ms"`
}

// WatchResponse is the response for the /api/v1/watch routes.
type WatchResponse struct {
	Success bool `json:"success"`

	// Handle is the handle a follow or unfollow acted on.
	Handle string `json:"handle,omitempty"`

	// Found is the number of posts seen when a follow primed its cursor.
	Found int `json:"found,omitempty"`

	// Cursor is the newest post id at follow time.
	Cursor string `json:"cursor,omitempty"`

	// Handles lists every followed handle after the operation.
	Handles []string `json:"handles"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	Engine    string    `json:"engine"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
	BrowserPID  int `json:"browser_pid"`
}
