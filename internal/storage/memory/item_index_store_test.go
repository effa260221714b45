package memory

import (
	"context"
	"reflect"
	"testing"
)

func TestItemIndexStore_ReplaceAndIDs(t *testing.T) {
	s := NewItemIndexStore()
	ctx := context.Background()

	ids, err := s.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty index, got %v", ids)
	}

	if err := s.Replace(ctx, []int{300, 100, 200}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	ids, err = s.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{300, 100, 200}) {
		t.Errorf("expected stored order preserved, got %v", ids)
	}

	// Replace fully swaps the list
	if err := s.Replace(ctx, []int{42}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	ids, err = s.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{42}) {
		t.Errorf("expected [42], got %v", ids)
	}
}

func TestItemIndexStore_ReplaceCopiesInput(t *testing.T) {
	s := NewItemIndexStore()
	ctx := context.Background()

	input := []int{1, 2, 3}
	if err := s.Replace(ctx, input); err != nil {
		t.Fatalf("replace: %v", err)
	}
	input[0] = -1

	ids, err := s.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{1, 2, 3}) {
		t.Errorf("mutating the input slice must not affect stored data, got %v", ids)
	}
}
