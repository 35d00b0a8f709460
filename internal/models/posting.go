package models

// RawPosting is one job posting as scraped from a listing page. DetailURL is
// the identity key.
type RawPosting struct {
	DetailURL        string   `json:"detail_url"`
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	CompanyLink      string   `json:"company_link,omitempty"`
	Location         string   `json:"location,omitempty"`
	ListedDate       string   `json:"listed_date,omitempty"`
	PublicationStart string   `json:"publication_start,omitempty"`
	PublicationEnd   string   `json:"publication_end,omitempty"`
	PostsOffered     string   `json:"posts_offered,omitempty"`
	Experience       []string `json:"experience,omitempty"`
	SectorActivity   []string `json:"sector_activity,omitempty"`
	Function         []string `json:"function,omitempty"`
	Education        string   `json:"education,omitempty"`
	ContractType     string   `json:"contract_type,omitempty"`
}

// CrawlURL is a listing page registered for crawling.
type CrawlURL struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
}
