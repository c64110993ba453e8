package testutil

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/schema"
)

// UIDs of the models in BlogSchema.
const (
	ArticleUID  = "application::article.article"
	CategoryUID = "application::category.category"
	CommentUID  = "application::comment.comment"
	CompanyUID  = "application::company.company"
	TagUID      = "application::tag.tag"
	UserUID     = "plugins::users-permissions.user"
)

// BlogSchema is the model set shared by package tests.
//
// Users live in a plugin and use userId as their primary key. Comments are
// stored by the document connector, everything else by the relational one.
const BlogSchema = `
model: article: {
	collectionName: "articles"
	primaryKeyType: "integer"
	attributes: {
		title:       type: "string"
		body:        type: "richtext"
		views:       type: "integer"
		price:       type: "integer"
		rating:      type: "float"
		published:   type: "boolean"
		publishedAt: type: "datetime"
		status: {type: "enumeration", enum: ["draft", "published"]}
		metadata:    type: "json"
		author: {model: "user", plugin: "users-permissions", via: "articles"}
		category: {model: "category"}
		tags: {collection: "tag", via: "articles"}
	}
}

model: category: {
	collectionName: "categories"
	primaryKeyType: "integer"
	attributes: {
		name: type: "string"
	}
}

model: tag: {
	collectionName: "tags"
	primaryKeyType: "integer"
	attributes: {
		label:    type: "string"
		articles: {collection: "article", via: "tags"}
	}
}

model: user: {
	plugin:         "users-permissions"
	collectionName: "users-permissions_user"
	primaryKey:     "userId"
	attributes: {
		userId:   type: "integer"
		username: type: "string"
		birthday: type: "date"
		articles: {collection: "article", plugin: "", via: "author"}
		company: {model: "company"}
	}
}

model: company: {
	collectionName: "companies"
	primaryKeyType: "integer"
	attributes: {
		name:    type: "string"
		founded: type: "date"
		revenue: type: "decimal"
	}
}

model: comment: {
	collectionName: "comments"
	orm:            "mongoose"
	primaryKey:     "_id"
	primaryKeyType: "string"
	attributes: {
		content:   type: "text"
		likes:     type: "integer"
		createdAt: type: "timestamp"
		author: {model: "user", plugin: "users-permissions"}
	}
}
`

// Registry compiles BlogSchema, failing the test on error.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	res, err := schema.LoadString(BlogSchema)
	require.NoError(t, err)
	return res.Registry
}

// Model returns the model with the given UID from reg, failing the test when
// it is missing.
func Model(t testing.TB, reg *schema.Registry, uid string) *ir.Model {
	t.Helper()
	m, ok := reg.Model(uid)
	require.True(t, ok, "model %s not found", uid)
	return m
}

// LogBuffer is a concurrency-safe buffer that captures slog text output.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogger returns a logger writing warn-and-above records into a fresh
// LogBuffer.
func NewLogger() (*slog.Logger, *LogBuffer) {
	lb := &LogBuffer{}
	return slog.New(slog.NewTextHandler(lb, &slog.HandlerOptions{Level: slog.LevelWarn})), lb
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
