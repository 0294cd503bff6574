package version

import (
	"strings"
	"testing"
)

func TestPseudoVersion(t *testing.T) {
	cases := []struct {
		info Info
		want string
	}{
		{Info{}, "v0.0.0-unknown"},
		{Info{Revision: "0123456789abcdef", Time: "2026-03-01T10:20:30Z"}, "v0.0.0-20260301102030-0123456789ab"},
		{Info{Revision: "abc", Time: "2026-03-01T10:20:30+02:00", Modified: true}, "v0.0.0-20260301082030-abc+dirty"},
		{Info{Revision: "abc", Time: "yesterday"}, "v0.0.0-unknown"},
	}
	for _, tc := range cases {
		if got := tc.info.pseudo(); got != tc.want {
			t.Fatalf("pseudo(%+v) = %q, want %q", tc.info, got, tc.want)
		}
	}
}

func TestBuildVersionWins(t *testing.T) {
	prev := buildVersion
	buildVersion = "v1.2.3"
	t.Cleanup(func() { buildVersion = prev })
	if got := Current(); got != "v1.2.3" {
		t.Fatalf("current %q", got)
	}
	ua := UserAgent()
	if !strings.HasPrefix(ua, "sapadt/v1.2.3 (go") || !strings.HasSuffix(ua, ")") {
		t.Fatalf("user agent %q", ua)
	}
}
