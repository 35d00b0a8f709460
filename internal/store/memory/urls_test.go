package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLRepository_AddIsIdempotent(t *testing.T) {
	repo := NewURLRepository()
	ctx := context.Background()

	added, err := repo.Add(ctx, "https://www.rekrute.com/offres.html")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, "https://www.rekrute.com/offres.html")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = repo.Add(ctx, "https://www.rekrute.com/offres.html?p=2")
	require.NoError(t, err)

	urls, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, int64(1), urls[0].ID)
	assert.Equal(t, "https://www.rekrute.com/offres.html?p=2", urls[1].URL)
	assert.NotEmpty(t, urls[0].CreatedAt)
}
