package ingestpostings

// Input names one listing page. When HTML is set the page is not fetched.
// An empty input crawls every registered url.
type Input struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

type Output struct {
	Pages          int `json:"pages"`
	FailedPages    int `json:"failedPages"`
	Postings       int `json:"postings"`
	Accepted       int `json:"accepted"`
	Duplicates     int `json:"duplicates"`
	Rejected       int `json:"rejected"`
	RecordsWritten int `json:"recordsWritten"`
}
