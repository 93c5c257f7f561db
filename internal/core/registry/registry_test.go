package registry

import (
	"testing"

	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/testkit"
)

func TestCatalogIsWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, tool := range Tools() {
		if tool.Name == "" || tool.Description == "" || tool.Output == "" {
			t.Fatalf("incomplete tool: %+v", tool)
		}
		if seen[tool.Name] {
			t.Fatalf("duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = true
		for _, p := range tool.Params {
			if p.Name == "" || p.Type == "" {
				t.Fatalf("tool %s has an unnamed or untyped param: %+v", tool.Name, p)
			}
		}
	}
}

func TestFind(t *testing.T) {
	tool, ok := Find("post_status")
	if !ok {
		t.Fatalf("post_status missing")
	}
	var statusParam *Param
	for i := range tool.Params {
		if tool.Params[i].Name == "status" {
			statusParam = &tool.Params[i]
		}
	}
	if statusParam == nil || !statusParam.Required || statusParam.Max != 5000 {
		t.Fatalf("status param = %+v", statusParam)
	}

	if _, ok := Find("no_such_tool"); ok {
		t.Fatalf("found a tool that does not exist")
	}
}

func TestWriteToolsDeclareWriteErrors(t *testing.T) {
	want := perr.CodeName(perr.ErrorCodeWriteNotEnabled)
	for _, name := range []string{"post_status", "delete_status", "interact_status", "vote_poll", "upload_media"} {
		tool, ok := Find(name)
		if !ok {
			t.Fatalf("%s missing from catalog", name)
		}
		found := false
		for _, e := range tool.Errors {
			if e == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s does not declare %s", name, want)
		}
	}
}

func TestResourceKindCatalog(t *testing.T) {
	want := []string{
		"server-info", "remote-actor", "remote-timeline", "remote-followers",
		"remote-following", "instance-info", "trending", "local-timeline",
		"federated-timeline", "post-thread",
	}
	kinds := ResourceKinds()
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v", kinds)
	}
	for _, w := range want {
		found := false
		for _, k := range kinds {
			if k == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("kind %q missing from %v", w, kinds)
		}
	}
}

func TestParseResourceURI(t *testing.T) {
	tests := []struct {
		uri   string
		kind  string
		param string
	}{
		{"activitypub://server-info", KindServerInfo, ""},
		{"activitypub://remote-actor/user@mastodon.social", KindRemoteActor, "user@mastodon.social"},
		{"activitypub://remote-timeline/user@mastodon.social", KindRemoteTimeline, "user@mastodon.social"},
		{"activitypub://remote-followers/user@h.test", KindRemoteFollowers, "user@h.test"},
		{"activitypub://remote-following/user@h.test", KindRemoteFollowing, "user@h.test"},
		{"activitypub://instance-info/fosstodon.org", KindInstanceInfo, "fosstodon.org"},
		{"activitypub://trending/fosstodon.org", KindTrending, "fosstodon.org"},
		{"activitypub://local-timeline/fosstodon.org", KindLocalTimeline, "fosstodon.org"},
		{"activitypub://federated-timeline/fosstodon.org", KindFederatedTimeline, "fosstodon.org"},
		{"activitypub://post-thread/https%3A%2F%2Fmasto.test%2F%40a%2F12345", KindPostThread, "https://masto.test/@a/12345"},
	}
	for _, tt := range tests {
		res, err := ParseResourceURI(tt.uri)
		testkit.MustNoErr(t, err)
		if res.Kind != tt.kind || res.Param != tt.param {
			t.Fatalf("ParseResourceURI(%q) = %+v", tt.uri, res)
		}
	}
}

func TestParseResourceURIRejects(t *testing.T) {
	for _, uri := range []string{
		"http://remote-actor/user@h.test",  // wrong scheme
		"activitypub://teleport/x",         // unknown kind
		"activitypub://remote-actor/",      // empty param
		"activitypub://remote-actor",       // no param at all
		"activitypub://remote-actor/%zz",   // undecodable
		"activitypub://actor/user@h.test",  // not a catalog kind
	} {
		_, err := ParseResourceURI(uri)
		testkit.MustCode(t, err, perr.ErrorCodeInvalidInput)
	}
}
