// Package search maintains an in-memory full-text index over audiobook
// titles, backing the admin title search.
package search

import (
	"context"
	"strconv"
	"strings"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/audiovook/audiovook-server/database/model"
)

// Search is the Bleve-based title index.
type Search struct {
	index bleve.Index
}

// Document is the document we store in Bleve per title.
type Document struct {
	// Title ID, as a string because Bleve document ids are strings.
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Language string `json:"language"`
}

// New creates a new in-memory index.
func New() (*Search, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Search{
		index: idx,
	}, nil
}

// buildIndexMapping builds the Bleve index field mapping configuration.
func buildIndexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "standard"
	// Only indexing, not storing: matches return ids, rows come from sqlite.
	textFieldMapping.Store = false
	textFieldMapping.Index = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	doc.AddFieldMappingsAt("id", keyword)
	doc.AddFieldMappingsAt("title", textFieldMapping)
	doc.AddFieldMappingsAt("author", textFieldMapping)
	doc.AddFieldMappingsAt("language", keyword)

	m.DefaultMapping = doc
	return m
}

// IndexTitle indexes or updates a title.
func (s *Search) IndexTitle(ctx context.Context, title *model.Title) error {
	doc := Document{
		ID:       strconv.FormatInt(title.ID, 10),
		Title:    title.Title,
		Author:   title.Author,
		Language: title.Language,
	}
	return s.index.Index(doc.ID, doc)
}

// IndexTitles indexes a slice of titles in a single batch.
func (s *Search) IndexTitles(ctx context.Context, titles []model.Title) error {
	batch := s.index.NewBatch()
	for i := range titles {
		doc := Document{
			ID:       strconv.FormatInt(titles[i].ID, 10),
			Title:    titles[i].Title,
			Author:   titles[i].Author,
			Language: titles[i].Language,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return err
		}
	}
	return s.index.Batch(batch)
}

// Find runs a fuzzy match across title and author and returns matching
// title ids, best match first.
func (s *Search) Find(ctx context.Context, searchTerm string, size int) ([]int64, error) {
	searchTerm = strings.ToLower(strings.TrimSpace(searchTerm))
	if searchTerm == "" {
		return nil, nil
	}
	if size <= 0 {
		size = 25
	}

	match := bleve.NewMatchQuery(searchTerm)
	prefix := bleve.NewPrefixQuery(searchTerm)
	query := bleve.NewDisjunctionQuery(match, prefix)

	request := bleve.NewSearchRequestOptions(query, size, 0, false)
	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
