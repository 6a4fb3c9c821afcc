package slingform

import (
	"net/url"
	"testing"
)

func TestBuilderEncodesInInsertionOrder(t *testing.T) {
	b := New()
	b.Set("jcr:primaryType", "cq:Page")
	b.Node("jcr:content").
		PrimaryType("cq:PageContent").
		Set("jcr:title", "Hello & Welcome").
		Child("root").ResourceType("wcm/foundation/components/responsivegrid")
	b.SetAll("./cq:tags", "a", "b").TypeHint("./cq:tags", "String[]")

	want := "jcr%3AprimaryType=cq%3APage" +
		"&.%2Fjcr%3Acontent%2Fjcr%3AprimaryType=cq%3APageContent" +
		"&.%2Fjcr%3Acontent%2Fjcr%3Atitle=Hello+%26+Welcome" +
		"&.%2Fjcr%3Acontent%2Froot%2Fsling%3AresourceType=wcm%2Ffoundation%2Fcomponents%2Fresponsivegrid" +
		"&.%2Fcq%3Atags=a&.%2Fcq%3Atags=b" +
		"&.%2Fcq%3Atags%40TypeHint=String%5B%5D"
	if got := b.Encode(); got != want {
		t.Fatalf("unexpected encoding:\nwant %s\ngot  %s", want, got)
	}

	vals, err := url.ParseQuery(b.Encode())
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if want, got := 2, len(vals["./cq:tags"]); want != got {
		t.Fatalf("unexpected multi-value count: want %d got %d", want, got)
	}
}

func TestBuilderHelpers(t *testing.T) {
	b := New().Operation("move").Set(":dest", "/content/dam/b.png")
	if v, ok := b.Get(":operation"); !ok || v != "move" {
		t.Fatalf("unexpected operation: %q %v", v, ok)
	}
	b.Delete("./dc:title")
	if _, ok := b.Get("./dc:title@Delete"); !ok {
		t.Fatalf("expected delete marker")
	}
	fields := b.Fields()
	fields[0].Value = "mutated"
	if v, _ := b.Get(":operation"); v != "move" {
		t.Fatalf("Fields should return a copy")
	}
	if want, got := 3, b.Len(); want != got {
		t.Fatalf("unexpected length: want %d got %d", want, got)
	}
	if got := New().Encode(); got != "" {
		t.Fatalf("expected empty encoding, got %q", got)
	}
}

func TestSetValue(t *testing.T) {
	b := New().
		SetValue("title", "Hello").
		SetValue("count", float64(3)).
		SetValue("ratio", 0.5).
		SetValue("hidden", true).
		SetValue("tags", []any{"a", "b"}).
		SetValue("gone", nil)

	tests := []struct{ key, want string }{
		{"title", "Hello"},
		{"count", "3"},
		{"count@TypeHint", "Long"},
		{"ratio", "0.5"},
		{"ratio@TypeHint", "Double"},
		{"hidden", "true"},
		{"hidden@TypeHint", "Boolean"},
		{"tags@TypeHint", "String[]"},
		{"gone@Delete", ""},
	}
	for _, tt := range tests {
		got, ok := b.Get(tt.key)
		if !ok || got != tt.want {
			t.Fatalf("%s: want %q got %q (present=%v)", tt.key, tt.want, got, ok)
		}
	}
}
