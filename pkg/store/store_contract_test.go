package store

import (
	"context"
	"strings"
	"testing"

	"recordbook/pkg/domain"
)

// exerciseRecordStore runs the behavior every backend must share.
func exerciseRecordStore(t *testing.T, s RecordStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.FindOne(ctx); err != nil || ok {
		t.Fatalf("find one on empty store: ok=%v err=%v", ok, err)
	}

	toronto := domain.Fields{Name: domain.Text("A"), Age: domain.Text("5"), City: domain.Text("Toronto"), Hobby: domain.Text("Y")}
	other := domain.Fields{Name: domain.Text("B"), City: domain.Text("X")}

	firstID, err := s.Insert(ctx, toronto)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !domain.ValidRecordID(firstID) {
		t.Fatalf("insert returned id %q, want object id", firstID)
	}
	secondID, err := s.Insert(ctx, other)
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if firstID == secondID {
		t.Fatalf("ids must be unique, both %q", firstID)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("find all = %d records, want 2", len(all))
	}
	if all[0].ID != firstID || !all[0].Equal(toronto) {
		t.Fatalf("first record = %+v, want id %s with submitted fields", all[0], firstID)
	}
	if all[1].Age != nil || all[1].Hobby != nil {
		t.Fatalf("omitted fields should be null, got %+v", all[1].Fields)
	}

	filtered, err := s.FindByCity(ctx, "Toronto")
	if err != nil {
		t.Fatalf("find by city: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != firstID {
		t.Fatalf("find by city = %+v, want only %s", filtered, firstID)
	}

	res, err := s.ReplaceFields(ctx, firstID, domain.Fields{Name: domain.Text("C")})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if res.Matched != 1 || res.Modified != 1 {
		t.Fatalf("replace result = %+v, want 1/1", res)
	}
	res, err = s.ReplaceFields(ctx, firstID, domain.Fields{Name: domain.Text("C")})
	if err != nil {
		t.Fatalf("replace unchanged: %v", err)
	}
	if res.Matched != 1 || res.Modified != 0 {
		t.Fatalf("unchanged replace result = %+v, want 1/0", res)
	}
	res, err = s.ReplaceFields(ctx, domain.NewRecordID(), domain.Fields{})
	if err != nil {
		t.Fatalf("replace missing: %v", err)
	}
	if res.Matched != 0 || res.Modified != 0 {
		t.Fatalf("missing replace result = %+v, want 0/0", res)
	}

	filtered, err = s.FindByCity(ctx, "Toronto")
	if err != nil {
		t.Fatalf("find by city after update: %v", err)
	}
	if len(filtered) != 0 {
		t.Fatalf("replaced record kept its city: %+v", filtered)
	}

	upperID, err := s.Insert(ctx, other)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	res, err = s.ReplaceFields(ctx, strings.ToUpper(upperID), domain.Fields{Name: domain.Text("upper")})
	if err != nil || res.Matched != 1 || res.Modified != 1 {
		t.Fatalf("replace by uppercase id = %+v, %v; want 1/1", res, err)
	}
	if n, err := s.DeleteByID(ctx, strings.ToUpper(upperID)); err != nil || n != 1 {
		t.Fatalf("delete by uppercase id = %d, %v; want 1", n, err)
	}

	if n, err := s.DeleteByID(ctx, firstID); err != nil || n != 1 {
		t.Fatalf("delete = %d, %v; want 1", n, err)
	}
	if n, err := s.DeleteByID(ctx, firstID); err != nil || n != 0 {
		t.Fatalf("second delete = %d, %v; want 0", n, err)
	}
	if _, err := s.DeleteByID(ctx, "bad-id"); err != ErrInvalidID {
		t.Fatalf("delete bad id err = %v, want ErrInvalidID", err)
	}

	one, ok, err := s.FindOne(ctx)
	if err != nil || !ok {
		t.Fatalf("find one: ok=%v err=%v", ok, err)
	}
	if one.ID != secondID {
		t.Fatalf("find one = %s, want %s", one.ID, secondID)
	}
}
