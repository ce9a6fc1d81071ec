package statustree

import "testing"

func TestParsePath(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		wantErr bool
		segs    []string
	}{
		{"root", "status://", false, nil},
		{"simple", "status://a/b/c", false, []string{"a", "b", "c"}},
		{"wildcard", "status://a/*/c", false, []string{"a", "*", "c"}},
		{"missing scheme", "a/b/c", true, nil},
		{"leading slash", "status:///a", true, nil},
		{"trailing slash", "status://a/", true, nil},
		{"empty segment", "status://a//b", true, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := ParsePath(c.url)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", c.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := p.Segments()
			if len(got) != len(c.segs) {
				t.Fatalf("segments = %v, want %v", got, c.segs)
			}
			for i := range got {
				if got[i] != c.segs[i] {
					t.Errorf("segment %d = %q, want %q", i, got[i], c.segs[i])
				}
			}
		})
	}
}

func TestPathStringRoundTrip(t *testing.T) {
	for _, url := range []string{"status://", "status://a", "status://a/b/c"} {
		p, err := ParsePath(url)
		if err != nil {
			t.Fatalf("ParsePath(%q): %v", url, err)
		}
		if got := p.String(); got != url {
			t.Errorf("String() = %q, want %q", got, url)
		}
	}
}

func TestPathAncestors(t *testing.T) {
	p := MustParsePath("status://a/b/c")
	ancestors := p.Ancestors()
	want := []string{"status://", "status://a", "status://a/b", "status://a/b/c"}
	if len(ancestors) != len(want) {
		t.Fatalf("got %d ancestors, want %d", len(ancestors), len(want))
	}
	for i, a := range ancestors {
		if a.String() != want[i] {
			t.Errorf("ancestor %d = %q, want %q", i, a.String(), want[i])
		}
	}
}

func TestPathHasWildcard(t *testing.T) {
	if MustParsePath("status://a/b").HasWildcard() {
		t.Error("expected no wildcard")
	}
	if !MustParsePath("status://a/*/b").HasWildcard() {
		t.Error("expected wildcard")
	}
}
