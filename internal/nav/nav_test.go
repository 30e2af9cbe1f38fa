package nav

import "testing"

func TestLinksMarksExactMatch(t *testing.T) {
	cases := []struct {
		path   string
		active string
	}{
		{"/", "/"},
		{"/summary", "/summary"},
		{"/monthly-summary", "/monthly-summary"},
		{"/summary/", ""},
		{"/unknown", ""},
		{"", ""},
	}
	for _, tc := range cases {
		links := Links(tc.path)
		if len(links) != 5 {
			t.Fatalf("expected 5 links, got %d", len(links))
		}
		activeCount := 0
		for _, l := range links {
			if l.Active {
				activeCount++
				if l.Path != tc.active {
					t.Fatalf("path %q: %q marked active, want %q", tc.path, l.Path, tc.active)
				}
			}
		}
		want := 1
		if tc.active == "" {
			want = 0
		}
		if activeCount != want {
			t.Fatalf("path %q: %d active links, want %d", tc.path, activeCount, want)
		}
	}
}

func TestLinksOrderAndIsolation(t *testing.T) {
	want := []string{"/", "/transactions", "/categories", "/monthly-summary", "/summary"}
	got := Paths()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q want %q", i, got[i], want[i])
		}
	}

	Links("/summary")
	for _, l := range Links("/") {
		if l.Path == "/summary" && l.Active {
			t.Fatal("previous call leaked active state")
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("/monthly-summary"); got != "Monthly Summary" {
		t.Errorf("Label(/monthly-summary) = %q", got)
	}
	if got := Label("/nope"); got != "" {
		t.Errorf("Label(/nope) = %q, want empty", got)
	}
}
