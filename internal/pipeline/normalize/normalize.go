// Package normalize turns raw postings into canonical records. Normalization
// never fails: malformed fields fall back to their defaults and are reported
// as warnings through the logger.
package normalize

import (
	"regexp"
	"strings"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/metrics"
	"employability-workers/internal/models"
)

// Normalizer reports malformed raw fields while normalizing.
type Normalizer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Normalizer {
	return &Normalizer{logger: logger.Component(log, "normalizer")}
}

// Normalize normalizes raw without a logger.
func Normalize(raw models.RawPosting, employable bool) models.CanonicalRecord {
	return New(logger.NewNoOpLogger()).Normalize(raw, employable)
}

// Normalize projects raw onto a CanonicalRecord labelled with employable.
func (n *Normalizer) Normalize(raw models.RawPosting, employable bool) models.CanonicalRecord {
	candidates := n.experience(raw)

	return models.CanonicalRecord{
		DetailURL:            strings.TrimSpace(raw.DetailURL),
		JobTitle:             CollapseSpace(raw.Title),
		CompanyName:          CollapseSpace(raw.Company),
		CompanyLink:          strings.TrimSpace(raw.CompanyLink),
		Location:             CollapseSpace(raw.Location),
		ListedDate:           strings.TrimSpace(raw.ListedDate),
		PublicationStart:     strings.TrimSpace(raw.PublicationStart),
		PublicationEnd:       strings.TrimSpace(raw.PublicationEnd),
		PostsOffered:         strings.TrimSpace(raw.PostsOffered),
		ExperienceCandidates: candidates,
		ExperienceRequired:   MeanExperience(candidates),
		Education:            n.education(raw),
		SectorActivity:       Categories(raw.SectorActivity),
		Function:             Categories(raw.Function),
		ContractType:         CollapseSpace(raw.ContractType),
		Employable:           employable,
	}
}

func (n *Normalizer) experience(raw models.RawPosting) [][]float64 {
	if len(raw.Experience) == 0 {
		return nil
	}
	candidates := make([][]float64, len(raw.Experience))
	for i, text := range raw.Experience {
		tokens := integerTokens(text)
		if len(tokens) == 0 {
			if strings.TrimSpace(text) != "" {
				n.warn("experience", text)
			}
			tokens = []float64{0}
		}
		candidates[i] = tokens
	}
	return candidates
}

func (n *Normalizer) education(raw models.RawPosting) models.EducationFlags {
	flags := ParseEducation(raw.Education)
	if flags.Highest() < 0 && strings.TrimSpace(raw.Education) != "" {
		n.warn("education", raw.Education)
	}
	return flags
}

func (n *Normalizer) warn(field, value string) {
	metrics.MalformedFields.WithLabelValues(field).Inc()
	err := errors.NewMalformedRawFieldError(field, value)
	n.logger.Warn("raw field degraded to default", map[string]interface{}{
		"field": field,
		"value": value,
		"code":  string(err.Code),
	})
}

var (
	digitsRe    = regexp.MustCompile(`\d+`)
	bacPlusRe   = regexp.MustCompile(`(?i)\bbac\s*\+\s*([2-5])`)
	bacRe       = regexp.MustCompile(`(?i)\bbac\b`)
	doctorateRe = regexp.MustCompile(`(?i)\bdoctora`)
)

// ParseEducation maps free text onto education flags. The highest marker
// found wins and sets every level up to and including itself; a doctorate
// marker sets all levels; bare "Bac" counts only when no "Bac +N" is present.
func ParseEducation(text string) models.EducationFlags {
	if doctorateRe.MatchString(text) {
		return models.EducationUpTo(len(models.EducationLevels) - 1)
	}

	level := -1
	plus := bacPlusRe.FindAllStringSubmatch(text, -1)
	for _, m := range plus {
		// "Bac +2" is level 1, "Bac +5" is level 4
		if l := int(m[1][0]-'0') - 1; l > level {
			level = l
		}
	}
	if len(plus) == 0 && bacRe.MatchString(text) {
		level = 0
	}
	return models.EducationUpTo(level)
}

func integerTokens(text string) []float64 {
	matches := digitsRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		out = append(out, parseDigits(m))
	}
	return out
}

func parseDigits(s string) float64 {
	var v float64
	for _, c := range s {
		v = v*10 + float64(c-'0')
	}
	return v
}

// MeanExperience is the arithmetic mean of every candidate value, or 0.
func MeanExperience(candidates [][]float64) float64 {
	var sum float64
	var count int
	for _, c := range candidates {
		for _, v := range c {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// CollapseSpace collapses whitespace runs to one space and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Categories trims each value and drops empty ones, keeping order.
func Categories(values []string) []string {
	var out []string
	for _, v := range values {
		if v = CollapseSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
