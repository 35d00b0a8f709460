// Package crawler fetches listing pages, extracts raw postings and hands them
// to the collector.
package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"employability-workers/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// Labels of the detail lines under each listing entry.
const (
	labelSector     = "Secteur d'activité"
	labelFunction   = "Fonction"
	labelExperience = "Expérience requise"
	labelEducation  = "Niveau d'étude demandé"
	labelContract   = "Type de contrat proposé"
	labelPosts      = "Postes proposés:"
)

// Extractor parses rekrute-style listing pages (ul#post-data > li).
type Extractor struct{}

// Extract returns the postings found in r. Relative links are resolved
// against baseURL. Entries without a detail link are skipped.
func (Extractor) Extract(baseURL string, r io.Reader) ([]models.RawPosting, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var postings []models.RawPosting
	doc.Find("ul#post-data > li").Each(func(_ int, job *goquery.Selection) {
		title := job.Find("h2 a.titreJob").First()
		href, ok := title.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		p := models.RawPosting{
			DetailURL:      resolve(base, href),
			Title:          clean(title.Text()),
			Company:        clean(job.Find("div.info span").First().Text()),
			ListedDate:     ownText(job.Find("em.date").First()),
			PostsOffered:   postsOffered(job),
			SectorActivity: labelled(job, labelSector),
			Function:       labelled(job, labelFunction),
			Experience:     labelled(job, labelExperience),
			Education:      first(labelled(job, labelEducation)),
			ContractType:   first(labelled(job, labelContract)),
		}

		if link, ok := job.Find("a.photo").First().Attr("href"); ok {
			p.CompanyLink = resolve(base, link)
		}

		job.Find("h2 a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if h, _ := a.Attr("href"); strings.Contains(h, "emploi") {
				parts := strings.Split(a.Text(), "|")
				p.Location = clean(parts[len(parts)-1])
				return false
			}
			return true
		})

		dates := job.Find("em.date span")
		if dates.Length() >= 2 {
			p.PublicationStart = clean(dates.Eq(0).Text())
			p.PublicationEnd = clean(dates.Eq(1).Text())
		}

		postings = append(postings, p)
	})

	return postings, nil
}

// labelled returns the link texts of the li whose own text contains label.
func labelled(job *goquery.Selection, label string) []string {
	var values []string
	job.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if !strings.Contains(ownText(li), label) {
			return true
		}
		li.Find("a").Each(func(_ int, a *goquery.Selection) {
			if v := clean(a.Text()); v != "" {
				values = append(values, v)
			}
		})
		return false
	})
	return values
}

func postsOffered(job *goquery.Selection) string {
	var posts string
	job.Find("em").EachWithBreak(func(_ int, em *goquery.Selection) bool {
		if strings.Contains(ownText(em), labelPosts) {
			posts = clean(em.Find("span").First().Text())
			return false
		}
		return true
	})
	return posts
}

// ownText is the text of s without the text of its child elements.
func ownText(s *goquery.Selection) string {
	return clean(s.Clone().Children().Remove().End().Text())
}

func resolve(base *url.URL, ref string) string {
	u, err := base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return strings.TrimSpace(ref)
	}
	return u.String()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
