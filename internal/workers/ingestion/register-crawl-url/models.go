package registercrawlurl

type Input struct {
	URL string `json:"url"`
}

type Output struct {
	URL   string `json:"url"`
	Added bool   `json:"added"`
}
