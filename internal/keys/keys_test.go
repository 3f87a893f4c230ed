package keys

import "testing"

func TestTaggedIsOrderIndependent(t *testing.T) {
	a := Tagged("k", NormalizeTags([]string{"users", "menu"}))
	b := Tagged("k", NormalizeTags([]string{" menu", "users", "menu"}))
	if a != b {
		t.Fatalf("tag order/dups changed key: %q vs %q", a, b)
	}
	if c := Tagged("k", NormalizeTags([]string{"users"})); c == a {
		t.Fatalf("different tag sets collided on %q", c)
	}
}

func TestNormalizeTagsKeepsBlank(t *testing.T) {
	got := NormalizeTags([]string{"b", "  ", "a"})
	if len(got) != 3 || got[0] != "" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("got %q", got)
	}
}

func TestQueryDistinguishesParams(t *testing.T) {
	q := "SELECT * FROM users WHERE id = ?"
	if Query(q, []any{5}) == Query(q, []any{6}) {
		t.Fatalf("different params produced the same key")
	}
	if Query(q, []any{5}) != Query(q, []any{5}) {
		t.Fatalf("query key not deterministic")
	}
	// same printed value, different type
	if Query(q, []any{5}) == Query(q, []any{"5"}) {
		t.Fatalf("int and string params collided")
	}
}

func TestShortLength(t *testing.T) {
	if got := len(Short("a", "b")); got != 16 {
		t.Fatalf("len=%d want 16", got)
	}
	if Short("a", "b") == Short("ab") {
		t.Fatalf("separator not applied")
	}
}

func TestShortPartsAreUnambiguous(t *testing.T) {
	if Short("a\x1fb") == Short("a", "b") {
		t.Fatalf("embedded separator collided with two parts")
	}
	if Short("ab", "") == Short("a", "b") || Short("", "ab") == Short("ab") {
		t.Fatalf("part boundaries not encoded")
	}
	a := Tagged("k", NormalizeTags([]string{"a\x1fb"}))
	b := Tagged("k", NormalizeTags([]string{"a", "b"}))
	if a == b {
		t.Fatalf("tag sets {a\\x1fb} and {a,b} share slot %q", a)
	}
}
