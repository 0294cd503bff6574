package urlutil

import "testing"

func TestEncodeUnreservedUnchanged(t *testing.T) {
	in := "ABCxyz019-_.~"
	if got := Encode(in); got != in {
		t.Fatalf("encode unreserved: got %q", got)
	}
}

func TestEncodeUppercaseHex(t *testing.T) {
	cases := map[string]string{
		"/BIC/Z1":  "%2FBIC%2FZ1",
		"a b":      "a%20b",
		"ä":        "%C3%A4",
		"x=y&z":    "x%3Dy%26z",
		"":         "",
		"100%done": "100%25done",
	}
	for in, want := range cases {
		if got := Encode(in); got != want {
			t.Fatalf("encode %q: got %q want %q", in, got, want)
		}
	}
}

func TestExpandTemplatePathAndQuery(t *testing.T) {
	got := ExpandTemplate("/sap/bc/adt/packages/{name}{?user,lang,empty}",
		map[string]string{"name": "Z PKG"},
		map[string]string{"user": "DEV", "lang": "", "empty": ""})
	want := "/sap/bc/adt/packages/Z%20PKG?user=DEV"
	if got != want {
		t.Fatalf("expand: got %q want %q", got, want)
	}
}

func TestExpandTemplateQueryOrdering(t *testing.T) {
	got := ExpandTemplate("/x{?a,b,c}", nil, map[string]string{"a": "1", "c": "3"})
	if got != "/x?a=1&c=3" {
		t.Fatalf("expand: got %q", got)
	}
	got = ExpandTemplate("/x{?a}", nil, nil)
	if got != "/x" {
		t.Fatalf("expand empty query: got %q", got)
	}
}

func TestExpandTemplateUnknownAndUnbalanced(t *testing.T) {
	if got := ExpandTemplate("/a/{missing}/b", nil, nil); got != "/a//b" {
		t.Fatalf("unknown var: got %q", got)
	}
	if got := ExpandTemplate("/a/{name", map[string]string{"name": "x"}, nil); got != "/a/{name" {
		t.Fatalf("unbalanced: got %q", got)
	}
}

func TestExpandTemplateExactKeys(t *testing.T) {
	cases := []struct {
		name     string
		template string
		path     map[string]string
		query    map[string]string
		want     string
	}{
		{"hyphenated path", "/x/{object-type}/{name}", map[string]string{"object-type": "ADSO/ADSO", "name": "Z1"}, nil, "/x/ADSO%2FADSO/Z1"},
		{"hyphenated query", "/x/{objectType}{?child-name}", map[string]string{"objectType": "ADSO"}, map[string]string{"child-name": "Z 1"}, "/x/ADSO?child-name=Z%201"},
		{"hyphenated query missing", "/x{?child-name,child-type}", nil, map[string]string{"child-type": "IOBJ"}, "/x?child-type=IOBJ"},
		{"continuation", "/x?a=1{&child-name}", nil, map[string]string{"child-name": "B"}, "/x?a=1&child-name=B"},
		{"empty braces", "/x/{}/y", nil, nil, "/x//y"},
		{"invalid utf8", "/x/{n}", map[string]string{"n": "\xff\xfe"}, nil, "/x/%FF%FE"},
		{"utf8 bytes", "/x/{n}{?q}", map[string]string{"n": "ä"}, map[string]string{"q": "ö"}, "/x/%C3%A4?q=%C3%B6"},
	}
	for _, tc := range cases {
		if got := ExpandTemplate(tc.template, tc.path, tc.query); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestExpandTemplateIdempotent(t *testing.T) {
	expanded := ExpandTemplate("/sap/bw/modeling/dtpa/{name}/{version}{?top}",
		map[string]string{"name": "DTP_1", "version": "a"},
		map[string]string{"top": "10"})
	if again := ExpandTemplate(expanded, nil, nil); again != expanded {
		t.Fatalf("not idempotent: %q -> %q", expanded, again)
	}
}

func TestJoinQuery(t *testing.T) {
	got := JoinQuery("/p", "a", "x y", "b", "", "c", "3")
	if got != "/p?a=x%20y&c=3" {
		t.Fatalf("join: got %q", got)
	}
	got = JoinQuery("/p?z=1", "a", "2")
	if got != "/p?z=1&a=2" {
		t.Fatalf("join existing: got %q", got)
	}
}
