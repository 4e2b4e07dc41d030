package env

import "testing"

func TestGetFallback(t *testing.T) {
	t.Setenv("CURIO_TEST_VALUE", "  ")
	if got := Get("CURIO_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("CURIO_TEST_VALUE", "set")
	if got := Get("CURIO_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("CURIO_TEST_LIST", "a.example.com, ,b.example.com")
	got := List("CURIO_TEST_LIST")
	if len(got) != 2 || got[0] != "a.example.com" || got[1] != "b.example.com" {
		t.Fatalf("unexpected list %v", got)
	}
}
