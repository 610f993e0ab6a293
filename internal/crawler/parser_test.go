package crawler

import (
	"errors"
	"slices"
	"testing"
)

// TestExtractLinks tests link extraction, resolution and normalization.
func TestExtractLinks(t *testing.T) {
	t.Parallel()

	t.Run("resolves and normalizes in document order", func(t *testing.T) {
		t.Parallel()

		doc := `<html><head><link rel="stylesheet" href="/style.css"></head><body>
			<a href="https://EXAMPLE.com">Home</a>
			<a href="page2">Relative</a>
			<a href="../up">Parent</a>
			<a href="HTTPS://example.org/page#section">Fragment</a>
		</body></html>`

		got, err := ExtractLinks(doc, "https://test.com/dir/index.html", Scope{}, "")
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}

		want := []string{
			"https://test.com/style.css",
			"https://example.com/",
			"https://test.com/dir/page2",
			"https://test.com/up",
			"https://example.org/page#section",
		}
		if !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("discards non-crawlable schemes", func(t *testing.T) {
		t.Parallel()

		doc := `<body>
			<a href="javascript:void(0)">js</a>
			<a href=" JavaScript:alert(1)">js upper</a>
			<a href="mailto:a@example.com">mail</a>
			<a href="tel:+100">tel</a>
			<a href="sms:+100">sms</a>
			<a href="file:///etc/passwd">file</a>
			<a href="data:text/html,hi">data</a>
			<a href="/ok">ok</a>
		</body>`

		got, err := ExtractLinks(doc, "https://test.com/", Scope{}, "")
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if want := []string{"https://test.com/ok"}; !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("deduplicates", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="/a">1</a><a href="https://test.com/a">2</a><a href="/b">3</a><a href="/a">4</a>`

		got, err := ExtractLinks(doc, "https://test.com/", Scope{}, "")
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if want := []string{"https://test.com/a", "https://test.com/b"}; !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("drops self-referencing share links", func(t *testing.T) {
		t.Parallel()

		doc := `<body>
			<a href="https://twitter.com/share?url=https://example.com/blog/">Share</a>
			<a href="https://example.com/blog/post-1">Post</a>
		</body>`

		got, err := ExtractLinks(doc, "https://example.com/blog/", Scope{}, "https://example.com/blog/")
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if want := []string{"https://example.com/blog/post-1"}; !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("ignores anchors without href", func(t *testing.T) {
		t.Parallel()

		got, err := ExtractLinks(`<a name="top">top</a><a href="/x">x</a>`, "https://test.com/", Scope{}, "")
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if want := []string{"https://test.com/x"}; !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("rejects an unparseable base URL", func(t *testing.T) {
		t.Parallel()

		_, err := ExtractLinks(`<a href="/x">x</a>`, "http://[::1", Scope{}, "")
		if !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="/c">c</a><a href="/a">a</a><a href="/b">b</a>`
		first, err := ExtractLinks(doc, "https://test.com/", Scope{}, "")
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		for range 5 {
			got, err := ExtractLinks(doc, "https://test.com/", Scope{}, "")
			if err != nil {
				t.Fatalf("failed to extract: %v", err)
			}
			if !slices.Equal(got, first) {
				t.Fatalf("expected %v, got %v", first, got)
			}
		}
	})
}

// TestExtractLinksScope tests the selector, element and document tiers.
func TestExtractLinksScope(t *testing.T) {
	t.Parallel()

	doc := `<html><head><link rel="canonical" href="/canonical"></head><body>
		<nav><a href="/nav">Nav</a></nav>
		<main>
			<article class="post"><a href="/post">Post</a><link href="/post-link"></article>
			<a class="more" href="/more">More</a>
		</main>
		<footer><a href="/footer">Footer</a></footer>
	</body></html>`

	tests := []struct {
		name  string
		scope Scope
		want  []string
	}{
		{
			name:  "no scope uses the whole document",
			scope: Scope{},
			want: []string{
				"https://test.com/canonical", "https://test.com/nav", "https://test.com/post",
				"https://test.com/post-link", "https://test.com/more", "https://test.com/footer",
			},
		},
		{
			name:  "selector matching containers uses their link descendants",
			scope: Scope{Selector: "article.post"},
			want:  []string{"https://test.com/post", "https://test.com/post-link"},
		},
		{
			name:  "selector matching anchors uses them directly",
			scope: Scope{Selector: "a.more"},
			want:  []string{"https://test.com/more"},
		},
		{
			name:  "selector wins over element",
			scope: Scope{Selector: "footer", Element: "nav"},
			want:  []string{"https://test.com/footer"},
		},
		{
			name:  "element uses anchor descendants only",
			scope: Scope{Element: "main"},
			want:  []string{"https://test.com/post", "https://test.com/more"},
		},
		{
			name:  "unmatched selector falls back to element",
			scope: Scope{Selector: "#missing", Element: "nav"},
			want:  []string{"https://test.com/nav"},
		},
		{
			name:  "invalid selector falls back to element",
			scope: Scope{Selector: "[[[", Element: "footer"},
			want:  []string{"https://test.com/footer"},
		},
		{
			name:  "unmatched selector and element fall back to the document",
			scope: Scope{Selector: ".nothing", Element: "aside"},
			want: []string{
				"https://test.com/canonical", "https://test.com/nav", "https://test.com/post",
				"https://test.com/post-link", "https://test.com/more", "https://test.com/footer",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractLinks(doc, "https://test.com/", tt.scope, "")
			if err != nil {
				t.Fatalf("failed to extract: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestScopeIsZero tests the zero-scope check.
func TestScopeIsZero(t *testing.T) {
	t.Parallel()

	if !(Scope{}).IsZero() {
		t.Error("expected empty scope to be zero")
	}
	if (Scope{Element: "main"}).IsZero() {
		t.Error("expected scope with element not to be zero")
	}
}
