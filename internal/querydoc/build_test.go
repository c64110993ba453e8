package querydoc

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/relfilter/internal/connector"
	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/testutil"
)

func build(t *testing.T, uid string, f ir.Filter) *Query {
	t.Helper()
	reg := testutil.Registry(t)
	q, err := NewPipelineBuilder(reg).BuildQuery(connector.Request{Model: testutil.Model(t, reg, uid), Filter: f})
	require.NoError(t, err)
	return q.(*Query)
}

func where(field string, op ir.Operator, value any) ir.Filter {
	return ir.Filter{Where: []ir.WhereClause{{Field: field, Operator: op, Value: value}}}
}

var sortByID = bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: int32(1)}}}}

func TestBuildRootClause(t *testing.T) {
	q := build(t, testutil.CommentUID, where("likes", ir.OpGte, int64(10)))

	assert.Equal(t, "comments", q.Collection)
	assert.Equal(t, Backend, q.Backend())
	assert.Equal(t, Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "likes", Value: bson.D{{Key: "$gte", Value: int64(10)}}}}}},
		sortByID,
	}, q.Pipeline)
}

func TestBuildPrimaryKeyUsesObjectID(t *testing.T) {
	hex := "65f0c0ffee0000000000abcd"
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	q := build(t, testutil.CommentUID, where("_id", ir.OpIn, []any{hex, "not-an-oid"}))

	assert.Equal(t, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid, "not-an-oid"}}}}}, q.Pipeline[0][0].Value)
}

func TestBuildLookupAndUnset(t *testing.T) {
	q := build(t, testutil.CommentUID, where("author.company.name", ir.OpEq, "Acme"))

	assert.Equal(t, Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users-permissions_user"},
			{Key: "localField", Value: "author"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "__author"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "companies"},
			{Key: "localField", Value: "__author.company"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "__author__company"},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "__author__company.name", Value: bson.D{{Key: "$eq", Value: "Acme"}}}}}},
		sortByID,
		{{Key: "$unset", Value: bson.A{"__author", "__author__company"}}},
	}, q.Pipeline)
}

func TestBuildOneToManyLookup(t *testing.T) {
	q := build(t, testutil.UserUID, where("articles.title", ir.OpEq, "x"))

	assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "articles"},
		{Key: "localField", Value: "_id"},
		{Key: "foreignField", Value: "author"},
		{Key: "as", Value: "__articles"},
	}}}, q.Pipeline[0])
}

func TestBuildRelatedPrimaryKeyMapsToID(t *testing.T) {
	q := build(t, testutil.ArticleUID, where("author.userId", ir.OpEq, int64(42)))

	assert.Equal(t, bson.D{{Key: "__author._id", Value: bson.D{{Key: "$eq", Value: int64(42)}}}}, q.Pipeline[1][0].Value)
}

func TestBuildOperators(t *testing.T) {
	tests := []struct {
		name  string
		field string
		op    ir.Operator
		value any
		want  bson.D
	}{
		{"ne", "likes", ir.OpNe, int64(1), bson.D{{Key: "likes", Value: bson.D{{Key: "$ne", Value: int64(1)}}}}},
		{"lt", "likes", ir.OpLt, int64(1), bson.D{{Key: "likes", Value: bson.D{{Key: "$lt", Value: int64(1)}}}}},
		{"nin", "likes", ir.OpNin, []any{int64(1)}, bson.D{{Key: "likes", Value: bson.D{{Key: "$nin", Value: bson.A{int64(1)}}}}}},
		{"eq list", "likes", ir.OpEq, []any{int64(1), int64(2)}, bson.D{{Key: "likes", Value: bson.D{{Key: "$in", Value: bson.A{int64(1), int64(2)}}}}}},
		{"contains", "content", ir.OpContains, "a.b", bson.D{{Key: "content", Value: primitive.Regex{Pattern: `a\.b`, Options: "i"}}}},
		{"containss", "content", ir.OpContainss, "A", bson.D{{Key: "content", Value: primitive.Regex{Pattern: "A"}}}},
		{"ncontains", "content", ir.OpNcontains, "x", bson.D{{Key: "content", Value: bson.D{{Key: "$not", Value: primitive.Regex{Pattern: "x", Options: "i"}}}}}},
		{"contains list", "content", ir.OpContains, []any{"a", "b"}, bson.D{{Key: "content", Value: bson.D{{Key: "$in", Value: bson.A{
			primitive.Regex{Pattern: "a", Options: "i"}, primitive.Regex{Pattern: "b", Options: "i"},
		}}}}}},
		{"null true", "createdAt", ir.OpNull, true, bson.D{{Key: "createdAt", Value: bson.D{{Key: "$eq", Value: nil}}}}},
		{"null false", "createdAt", ir.OpNull, false, bson.D{{Key: "createdAt", Value: bson.D{{Key: "$ne", Value: nil}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := build(t, testutil.CommentUID, where(tt.field, tt.op, tt.value))
			assert.Equal(t, bson.D{{Key: "$match", Value: tt.want}}, q.Pipeline[0])
		})
	}
}

func TestBuildMultipleClausesUseAnd(t *testing.T) {
	q := build(t, testutil.CommentUID, ir.Filter{Where: []ir.WhereClause{
		{Field: "likes", Operator: ir.OpGt, Value: int64(1)},
		{Field: "content", Operator: ir.OpContainss, Value: "go"},
	}})

	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "likes", Value: bson.D{{Key: "$gt", Value: int64(1)}}}},
		bson.D{{Key: "content", Value: primitive.Regex{Pattern: "go"}}},
	}}}, q.Pipeline[0][0].Value)
}

func TestBuildSortSkipLimit(t *testing.T) {
	q := build(t, testutil.CommentUID, ir.Filter{
		Sort:  []ir.Sort{{Field: "createdAt", Order: ir.SortDesc}, {Field: "id", Order: ir.SortAsc}},
		Limit: ir.Int(10),
		Start: ir.Int(20),
	})

	assert.Equal(t, Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: int32(-1)}, {Key: "_id", Value: int32(1)}}}},
		{{Key: "$skip", Value: int64(20)}},
		{{Key: "$limit", Value: int64(10)}},
	}, q.Pipeline)
}

func TestBuildZeroLimitMatchesNothing(t *testing.T) {
	q := build(t, testutil.CommentUID, ir.Filter{Limit: ir.Int(0)})

	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: false}}}}, q.Pipeline[1])
}

func TestBuildErrors(t *testing.T) {
	reg := testutil.Registry(t)
	comment := testutil.Model(t, reg, testutil.CommentUID)
	b := NewPipelineBuilder(reg)

	_, err := b.BuildQuery(connector.Request{Model: comment, Filter: where("ghost", ir.OpEq, "x")})
	require.Error(t, err)
	assert.True(t, filter.IsInvalidFieldPath(err))

	_, err = b.BuildQuery(connector.Request{Model: comment, Filter: where("likes", ir.OpLt, []any{int64(1)})})
	require.Error(t, err)

	_, err = b.BuildQuery(connector.Request{Model: comment, Filter: where("likes", ir.OpNull, "x")})
	require.Error(t, err)

	_, err = b.Compile(nil)
	require.Error(t, err)
}

func TestToValue(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	got, err := ToValue(ts, false)
	require.NoError(t, err)
	assert.Equal(t, primitive.NewDateTimeFromTime(ts), got)

	d, _, err := apd.NewFromString("19.90")
	require.NoError(t, err)
	got, err = ToValue(d, false)
	require.NoError(t, err)
	want, err := primitive.ParseDecimal128("19.90")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	hex := "65f0c0ffee0000000000abcd"
	got, err = ToValue(hex, false)
	require.NoError(t, err)
	assert.Equal(t, hex, got, "only keys become ObjectIDs")
}

func TestExtJSON(t *testing.T) {
	q := build(t, testutil.CommentUID, where("likes", ir.OpEq, int64(3)))

	out, err := q.ExtJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"aggregate":"comments","pipeline":[{"$match":{"likes":{"$eq":3}}},{"$sort":{"_id":1}}]}`, out)
}
