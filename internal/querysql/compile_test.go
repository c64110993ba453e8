package querysql

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relfilter/internal/connector"
	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/queryir"
	"github.com/roach88/relfilter/internal/testutil"
)

func build(t *testing.T, uid string, f ir.Filter) *Query {
	t.Helper()
	reg := testutil.Registry(t)
	q, err := NewSQLCompiler(reg).BuildQuery(connector.Request{Model: testutil.Model(t, reg, uid), Filter: f})
	require.NoError(t, err)
	return q.(*Query)
}

func where(field string, op ir.Operator, value any) ir.Filter {
	return ir.Filter{Where: []ir.WhereClause{{Field: field, Operator: op, Value: value}}}
}

func TestCompile_SimpleSelect(t *testing.T) {
	q := build(t, testutil.ArticleUID, where("title", ir.OpEq, "widgets"))

	assert.Equal(t, `SELECT "articles".* FROM "articles" WHERE "articles"."title" = ? ORDER BY "articles"."id" ASC COLLATE BINARY`, q.SQL)
	assert.Equal(t, []any{"widgets"}, q.Params)
	assert.Equal(t, Backend, q.Backend())
	assert.Equal(t, testutil.ArticleUID, q.Model.UID)
}

func TestCompile_NoFilter(t *testing.T) {
	q := build(t, testutil.ArticleUID, ir.Filter{})

	assert.Equal(t, `SELECT "articles".* FROM "articles" ORDER BY "articles"."id" ASC COLLATE BINARY`, q.SQL)
	assert.Empty(t, q.Params)
}

func TestCompile_ManyToOneJoin(t *testing.T) {
	q := build(t, testutil.ArticleUID, where("author.userId", ir.OpEq, int64(42)))

	assert.Equal(t, `SELECT "articles".* FROM "articles"`+
		` LEFT JOIN "users-permissions_user" AS "author" ON "author"."userId" = "articles"."author"`+
		` WHERE "author"."userId" = ?`+
		` ORDER BY "articles"."id" ASC COLLATE BINARY`, q.SQL)
	assert.Equal(t, []any{int64(42)}, q.Params)
}

func TestCompile_NestedJoins(t *testing.T) {
	q := build(t, testutil.ArticleUID, where("author.company.name", ir.OpEq, "Acme"))

	assert.Equal(t, `SELECT "articles".* FROM "articles"`+
		` LEFT JOIN "users-permissions_user" AS "author" ON "author"."userId" = "articles"."author"`+
		` LEFT JOIN "companies" AS "author__company" ON "author__company"."id" = "author"."company"`+
		` WHERE "author__company"."name" = ?`+
		` ORDER BY "articles"."id" ASC COLLATE BINARY`, q.SQL)
}

func TestCompile_ManyToManyUsesJoinTableAndDistinct(t *testing.T) {
	q := build(t, testutil.ArticleUID, where("tags.label", ir.OpEq, "go"))

	assert.Equal(t, `SELECT DISTINCT "articles".* FROM "articles"`+
		` LEFT JOIN "articles_tags__tags_articles" AS "tags_link" ON "tags_link"."article_id" = "articles"."id"`+
		` LEFT JOIN "tags" AS "tags" ON "tags"."id" = "tags_link"."tag_id"`+
		` WHERE "tags"."label" = ?`+
		` ORDER BY "articles"."id" ASC COLLATE BINARY`, q.SQL)
}

func TestCompile_OneToManyJoin(t *testing.T) {
	q := build(t, testutil.UserUID, where("articles.title", ir.OpEq, "x"))

	assert.Equal(t, `SELECT DISTINCT "users-permissions_user".* FROM "users-permissions_user"`+
		` LEFT JOIN "articles" AS "articles" ON "articles"."author" = "users-permissions_user"."userId"`+
		` WHERE "articles"."title" = ?`+
		` ORDER BY "users-permissions_user"."userId" ASC COLLATE BINARY`, q.SQL)
}

func TestCompile_Operators(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		op     ir.Operator
		value  any
		sql    string
		params []any
	}{
		{"ne", "views", ir.OpNe, int64(3), `"articles"."views" != ?`, []any{int64(3)}},
		{"lt", "views", ir.OpLt, int64(3), `"articles"."views" < ?`, []any{int64(3)}},
		{"lte", "views", ir.OpLte, int64(3), `"articles"."views" <= ?`, []any{int64(3)}},
		{"gt", "rating", ir.OpGt, 4.5, `"articles"."rating" > ?`, []any{4.5}},
		{"gte", "views", ir.OpGte, int64(3), `"articles"."views" >= ?`, []any{int64(3)}},
		{"in", "id", ir.OpIn, []any{int64(1), int64(2)}, `"articles"."id" IN (?, ?)`, []any{int64(1), int64(2)}},
		{"in scalar", "id", ir.OpIn, int64(1), `"articles"."id" IN (?)`, []any{int64(1)}},
		{"in empty", "id", ir.OpIn, []any{}, `1 = 0`, nil},
		{"nin", "id", ir.OpNin, []any{int64(1)}, `"articles"."id" NOT IN (?)`, []any{int64(1)}},
		{"nin empty", "id", ir.OpNin, []any{}, `1 = 1`, nil},
		{"eq list", "status", ir.OpEq, []any{"draft", "published"}, `"articles"."status" IN (?, ?)`, []any{"draft", "published"}},
		{"ne list", "status", ir.OpNe, []any{"draft"}, `"articles"."status" NOT IN (?)`, []any{"draft"}},
		{"contains", "title", ir.OpContains, "50%_off", `LOWER("articles"."title") LIKE LOWER(?) ESCAPE '\'`, []any{`%50\%\_off%`}},
		{"ncontains", "title", ir.OpNcontains, "go", `LOWER("articles"."title") NOT LIKE LOWER(?) ESCAPE '\'`, []any{"%go%"}},
		{"containss", "title", ir.OpContainss, "Go", `instr("articles"."title", ?) > 0`, []any{"Go"}},
		{"ncontainss", "title", ir.OpNcontainss, "Go", `instr("articles"."title", ?) = 0`, []any{"Go"}},
		{"contains list", "title", ir.OpContains, []any{"a", "b"}, `(LOWER("articles"."title") LIKE LOWER(?) ESCAPE '\' OR LOWER("articles"."title") LIKE LOWER(?) ESCAPE '\')`, []any{"%a%", "%b%"}},
		{"ncontainss list", "title", ir.OpNcontainss, []any{"a", "b"}, `(instr("articles"."title", ?) = 0 AND instr("articles"."title", ?) = 0)`, []any{"a", "b"}},
		{"null true", "publishedAt", ir.OpNull, true, `"articles"."publishedAt" IS NULL`, nil},
		{"null false", "publishedAt", ir.OpNull, false, `"articles"."publishedAt" IS NOT NULL`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := build(t, testutil.ArticleUID, where(tt.field, tt.op, tt.value))
			assert.Equal(t, `SELECT "articles".* FROM "articles" WHERE `+tt.sql+` ORDER BY "articles"."id" ASC COLLATE BINARY`, q.SQL)
			assert.Equal(t, tt.params, q.Params)
		})
	}
}

func TestCompile_OperatorErrors(t *testing.T) {
	reg := testutil.Registry(t)
	c := NewSQLCompiler(reg)
	article := testutil.Model(t, reg, testutil.ArticleUID)

	tests := []struct {
		name string
		f    ir.Filter
	}{
		{"range on list", where("views", ir.OpGt, []any{int64(1)})},
		{"null without bool", where("views", ir.OpNull, "yes")},
		{"unknown operator", where("views", "like", "x")},
		{"unbindable value", where("views", ir.OpEq, struct{}{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.BuildQuery(connector.Request{Model: article, Filter: tt.f})
			require.Error(t, err)
		})
	}
}

func TestCompile_InvalidPath(t *testing.T) {
	reg := testutil.Registry(t)
	article := testutil.Model(t, reg, testutil.ArticleUID)

	_, err := NewSQLCompiler(reg).BuildQuery(connector.Request{Model: article, Filter: where("ghost", ir.OpEq, "x")})
	require.Error(t, err)
	assert.True(t, filter.IsInvalidFieldPath(err))
}

func TestCompile_OrderByMandatory(t *testing.T) {
	q := build(t, testutil.ArticleUID, ir.Filter{
		Sort: []ir.Sort{
			{Field: "publishedAt", Order: ir.SortDesc},
			{Field: "author.username", Order: ir.SortAsc},
		},
	})

	assert.Equal(t, `SELECT "articles".* FROM "articles"`+
		` LEFT JOIN "users-permissions_user" AS "author" ON "author"."userId" = "articles"."author"`+
		` ORDER BY "articles"."publishedAt" DESC, "author"."username" ASC, "articles"."id" ASC COLLATE BINARY`, q.SQL)
}

func TestCompile_LimitOffset(t *testing.T) {
	tests := []struct {
		name   string
		limit  *int
		start  *int
		suffix string
		params []any
	}{
		{"none", nil, nil, "", nil},
		{"limit", ir.Int(10), nil, " LIMIT ?", []any{10}},
		{"limit and start", ir.Int(10), ir.Int(20), " LIMIT ? OFFSET ?", []any{10, 20}},
		{"start only", nil, ir.Int(20), " LIMIT ? OFFSET ?", []any{-1, 20}},
		{"negative limit", ir.Int(-1), nil, " LIMIT ?", []any{-1}},
		{"zero start", ir.Int(5), ir.Int(0), " LIMIT ?", []any{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := build(t, testutil.ArticleUID, ir.Filter{Limit: tt.limit, Start: tt.start})
			assert.Equal(t, `SELECT "articles".* FROM "articles" ORDER BY "articles"."id" ASC COLLATE BINARY`+tt.suffix, q.SQL)
			assert.Equal(t, tt.params, q.Params)
		})
	}
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	malicious := `'; DROP TABLE articles; --`
	q := build(t, testutil.ArticleUID, where("title", ir.OpEq, malicious))

	assert.NotContains(t, q.SQL, "DROP")
	assert.Equal(t, []any{malicious}, q.Params)
}

func TestCompile_NilQuery(t *testing.T) {
	_, _, err := NewSQLCompiler(testutil.Registry(t)).Compile(nil)
	require.Error(t, err)

	_, _, err = NewSQLCompiler(testutil.Registry(t)).Compile(&queryir.Select{})
	require.Error(t, err)
}

func TestToParam(t *testing.T) {
	d, _, err := apd.NewFromString("19.90")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "s", "s"},
		{"bool", true, true},
		{"int64", int64(4), int64(4)},
		{"float", 1.25, 1.25},
		{"time", time.Date(2024, 3, 9, 12, 30, 0, 0, time.FixedZone("x", 7200)), "2024-03-09T10:30:00.000Z"},
		{"decimal", d, "19.90"},
		{"object", map[string]any{"b": 1, "a": true}, `{"a":true,"b":1}`},
		{"array", []any{"x", 2}, `["x",2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToParam(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
