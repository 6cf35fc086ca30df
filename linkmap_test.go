package main

import "testing"

func TestNewLinkMapOrderAndChain(t *testing.T) {
	a := &DSO{Name: "a"}
	b := &DSO{Name: "b"}
	c := &DSO{Name: "c"}

	lm := NewLinkMap(a, b, c)
	if lm == nil || lm.DSO != a {
		t.Fatalf("expected head to be a, got %+v", lm)
	}
	if lm.Next == nil || lm.Next.DSO != b {
		t.Fatalf("expected second node to be b, got %+v", lm.Next)
	}
	if lm.Next.Next == nil || lm.Next.Next.DSO != c {
		t.Fatalf("expected third node to be c, got %+v", lm.Next.Next)
	}
	if lm.Next.Next.Next != nil {
		t.Fatal("expected chain to terminate after c")
	}
}

func TestNewLinkMapEmpty(t *testing.T) {
	if lm := NewLinkMap(); lm != nil {
		t.Fatalf("expected nil head for empty input, got %+v", lm)
	}
}

func TestNewLinkMapSingle(t *testing.T) {
	a := &DSO{Name: "solo"}
	lm := NewLinkMap(a)
	if lm == nil || lm.DSO != a || lm.Next != nil {
		t.Fatalf("unexpected single-node map: %+v", lm)
	}
}
