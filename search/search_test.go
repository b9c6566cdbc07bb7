package search

import (
	"context"
	"testing"

	"github.com/audiovook/audiovook-server/database/model"
)

func newTestIndex(t *testing.T) *Search {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	err = s.IndexTitles(context.Background(), []model.Title{
		{ID: 1, Title: "El Petit Príncep", Author: "Antoine de Saint-Exupéry", Language: "ca"},
		{ID: 2, Title: "Mecanoscrit del segon origen", Author: "Manuel de Pedrolo", Language: "ca"},
		{ID: 3, Title: "La plaça del Diamant", Author: "Mercè Rodoreda", Language: "ca"},
	})
	if err != nil {
		t.Fatalf("IndexTitles: %s", err)
	}
	return s
}

func TestFindByTitle(t *testing.T) {
	s := newTestIndex(t)

	ids, err := s.Find(context.Background(), "mecanoscrit", 10)
	if err != nil {
		t.Fatalf("Find: %s", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("unexpected result: %v", ids)
	}
}

func TestFindByAuthor(t *testing.T) {
	s := newTestIndex(t)

	ids, err := s.Find(context.Background(), "rodoreda", 10)
	if err != nil {
		t.Fatalf("Find: %s", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Errorf("unexpected result: %v", ids)
	}
}

func TestFindEmptyTerm(t *testing.T) {
	s := newTestIndex(t)

	ids, err := s.Find(context.Background(), "   ", 10)
	if err != nil {
		t.Fatalf("Find: %s", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no results, got %v", ids)
	}
}

func TestIndexTitleUpdates(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	err := s.IndexTitle(ctx, &model.Title{ID: 2, Title: "Tirant lo Blanc", Author: "Joanot Martorell"})
	if err != nil {
		t.Fatalf("IndexTitle: %s", err)
	}

	ids, _ := s.Find(ctx, "mecanoscrit", 10)
	if len(ids) != 0 {
		t.Errorf("stale document still indexed: %v", ids)
	}
	ids, _ = s.Find(ctx, "tirant", 10)
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("unexpected result: %v", ids)
	}
}
