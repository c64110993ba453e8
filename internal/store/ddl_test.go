package store

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relfilter/internal/testutil"
)

func TestApplyModels_CreatesTables(t *testing.T) {
	s := openTestStore(t)
	reg := testutil.Registry(t)
	require.NoError(t, s.ApplyModels(context.Background(), reg))

	assert.Equal(t, []string{"author", "body", "category", "id", "metadata", "price", "published", "publishedAt", "rating", "status", "title", "views"},
		sorted(getTableColumns(t, s.db, "articles")))
	assert.Contains(t, getTableColumns(t, s.db, "users-permissions_user"), "company")
	assert.NotContains(t, getTableColumns(t, s.db, "users-permissions_user"), "articles",
		"oneToMany relations have no column on the inverse side")

	assert.Equal(t, []string{"article_id", "tag_id"},
		sorted(getTableColumns(t, s.db, "articles_tags__tags_articles")))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM relfilter_models").Scan(&n))
	assert.Equal(t, reg.Len(), n)
}

func TestApplyModels_Idempotent(t *testing.T) {
	s := openTestStore(t)
	reg := testutil.Registry(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyModels(ctx, reg))
	var before string
	require.NoError(t, s.db.QueryRow(
		"SELECT definition_hash FROM relfilter_models WHERE uid = ?", testutil.ArticleUID).Scan(&before))

	require.NoError(t, s.ApplyModels(ctx, reg))
	var after string
	require.NoError(t, s.db.QueryRow(
		"SELECT definition_hash FROM relfilter_models WHERE uid = ?", testutil.ArticleUID).Scan(&after))

	assert.Equal(t, before, after)
	assert.Len(t, before, 64)
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
