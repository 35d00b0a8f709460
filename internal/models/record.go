package models

// Education levels in ascending order. The names double as feature columns.
var EducationLevels = [6]string{"Bac", "Bac +2", "Bac +3", "Bac +4", "Bac +5", "Doctorate"}

// EducationFlags holds one flag per level in EducationLevels. A set flag
// implies every lower flag is set.
type EducationFlags [6]bool

// EducationUpTo returns flags with levels [0..level] set. A negative level
// yields no flags.
func EducationUpTo(level int) EducationFlags {
	var f EducationFlags
	for i := 0; i <= level && i < len(f); i++ {
		f[i] = true
	}
	return f
}

// Highest returns the index of the highest set flag, or -1.
func (f EducationFlags) Highest() int {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] {
			return i
		}
	}
	return -1
}

// Downgrade clears the highest set flag only.
func (f EducationFlags) Downgrade() EducationFlags {
	if h := f.Highest(); h >= 0 {
		f[h] = false
	}
	return f
}

// IsMonotonic reports whether no flag is set above an unset one.
func (f EducationFlags) IsMonotonic() bool {
	seenUnset := false
	for _, set := range f {
		if set && seenUnset {
			return false
		}
		if !set {
			seenUnset = true
		}
	}
	return true
}

// CanonicalRecord is the normalized form of a RawPosting plus its label.
//
// Defaults: ExperienceRequired is 0 when no experience was stated, Education
// is all false when no level was recognised, and the category lists are nil
// when absent.
type CanonicalRecord struct {
	DetailURL            string         `json:"detail_url"`
	JobTitle             string         `json:"job_title"`
	CompanyName          string         `json:"company_name"`
	CompanyLink          string         `json:"company_link,omitempty"`
	Location             string         `json:"location,omitempty"`
	ListedDate           string         `json:"listed_date,omitempty"`
	PublicationStart     string         `json:"publication_start,omitempty"`
	PublicationEnd       string         `json:"publication_end,omitempty"`
	PostsOffered         string         `json:"posts_offered,omitempty"`
	ExperienceCandidates [][]float64    `json:"experience_candidates,omitempty"`
	ExperienceRequired   float64        `json:"experience_required"`
	Education            EducationFlags `json:"education"`
	SectorActivity       []string       `json:"sector_activity,omitempty"`
	Function             []string       `json:"function,omitempty"`
	ContractType         string         `json:"contract_type_offered,omitempty"`
	Employable           bool           `json:"employable"`
}

// Clone returns a deep copy so derived records never share slices.
func (r CanonicalRecord) Clone() CanonicalRecord {
	out := r
	if r.ExperienceCandidates != nil {
		out.ExperienceCandidates = make([][]float64, len(r.ExperienceCandidates))
		for i, c := range r.ExperienceCandidates {
			out.ExperienceCandidates[i] = append([]float64(nil), c...)
		}
	}
	out.SectorActivity = cloneStrings(r.SectorActivity)
	out.Function = cloneStrings(r.Function)
	return out
}

// Label returns 1 for employable records and 0 otherwise.
func (r CanonicalRecord) Label() int {
	if r.Employable {
		return 1
	}
	return 0
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
