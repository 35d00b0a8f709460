package normalize

import (
	"math"
	"testing"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ==========================
// Test Helpers
// ==========================

func createTestRaw() models.RawPosting {
	return models.RawPosting{
		DetailURL:      " https://www.rekrute.com/offre-emploi-dev-123.html ",
		Title:          "  Développeur   Go \n senior ",
		Company:        "ACME\tMaroc  ",
		Location:       "Casablanca",
		Experience:     []string{"De 2 à 3 ans"},
		SectorActivity: []string{" Informatique ", "", "Télécom"},
		Function:       []string{"Développement"},
		Education:      "Bac +3",
		ContractType:   " CDI ",
	}
}

// ==========================
// Education
// ==========================

func TestParseEducation(t *testing.T) {
	tests := []struct {
		text string
		want models.EducationFlags
	}{
		{"Bac +3", models.EducationFlags{true, true, true, false, false, false}},
		{"Doctorat", models.EducationFlags{true, true, true, true, true, true}},
		{"", models.EducationFlags{}},
		{"Bac", models.EducationFlags{true}},
		{"Bac+5 et plus", models.EducationUpTo(4)},
		{"Bac +2 ou Bac +4", models.EducationUpTo(3)},
		{"Bac, Bac +2", models.EducationUpTo(1)},
		{"Doctorate preferred, Bac +3 accepted", models.EducationUpTo(5)},
		{"Baccalauréat", models.EducationFlags{}},
		{"Autodidacte", models.EducationFlags{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ParseEducation(tt.text)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsMonotonic())
		})
	}
}

// ==========================
// Experience
// ==========================

func TestNormalize_ExperienceMean(t *testing.T) {
	raw := createTestRaw()
	raw.Experience = []string{"2 3"}

	rec := Normalize(raw, true)
	assert.Equal(t, [][]float64{{2, 3}}, rec.ExperienceCandidates)
	assert.Equal(t, 2.5, rec.ExperienceRequired)
}

func TestNormalize_ExperienceDefaults(t *testing.T) {
	raw := createTestRaw()

	raw.Experience = nil
	rec := Normalize(raw, true)
	assert.Nil(t, rec.ExperienceCandidates)
	assert.Equal(t, 0.0, rec.ExperienceRequired)

	raw.Experience = []string{"Débutant", "5 ans"}
	rec = Normalize(raw, true)
	assert.Equal(t, [][]float64{{0}, {5}}, rec.ExperienceCandidates)
	assert.Equal(t, 2.5, rec.ExperienceRequired)
}

func TestFlattenExperience(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    float64
		wantErr bool
	}{
		{"nested list", []interface{}{[]interface{}{2.0, 3.0}}, 2.5, false},
		{"scalar", 4.0, 4, false},
		{"int", 3, 3, false},
		{"numeric string", "1.5", 1.5, false},
		{"free text", "De 1 à 3 ans", 2, false},
		{"nil", nil, 0, false},
		{"empty list", []interface{}{}, 0, false},
		{"word", "five", 0, true},
		{"bool", true, 0, true},
		{"list with word", []interface{}{1.0, "many"}, 0, true},
		{"nan string", "NaN", 0, true},
		{"inf string", "Inf", 0, true},
		{"negative inf in list", []interface{}{2.0, "-Inf"}, 0, true},
		{"nan float", math.NaN(), 0, true},
		{"negative number", -2.0, 0, true},
		{"negative string", "-3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FlattenExperience("experience_required", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidFeatureValue)
				stdErr, _ := errors.AsStandardError(err)
				assert.Equal(t, "experience_required", stdErr.Field())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ==========================
// Text and categories
// ==========================

func TestNormalize_TextAndCategories(t *testing.T) {
	rec := Normalize(createTestRaw(), true)

	assert.Equal(t, "https://www.rekrute.com/offre-emploi-dev-123.html", rec.DetailURL)
	assert.Equal(t, "Développeur Go senior", rec.JobTitle)
	assert.Equal(t, "ACME Maroc", rec.CompanyName)
	assert.Equal(t, []string{"Informatique", "Télécom"}, rec.SectorActivity)
	assert.Equal(t, []string{"Développement"}, rec.Function)
	assert.Equal(t, "CDI", rec.ContractType)
	assert.Equal(t, models.EducationUpTo(2), rec.Education)
	assert.True(t, rec.Employable)
}

func TestNormalize_IsDeterministic(t *testing.T) {
	raw := createTestRaw()
	assert.Equal(t, Normalize(raw, false), Normalize(raw, false))
}

func TestNormalizer_LogsMalformedFields(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := New(logger.NewZapAdapter(zap.New(core)))

	raw := createTestRaw()
	raw.Experience = []string{"Confirmé"}
	raw.Education = "Master"

	rec := n.Normalize(raw, true)
	assert.Equal(t, 0.0, rec.ExperienceRequired)
	assert.Equal(t, models.EducationFlags{}, rec.Education)

	entries := logs.FilterMessage("raw field degraded to default").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "experience", entries[0].ContextMap()["field"])
	assert.Equal(t, "education", entries[1].ContextMap()["field"])
	assert.Equal(t, "MALFORMED_RAW_FIELD", entries[0].ContextMap()["code"])
}
