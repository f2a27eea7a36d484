package backend

import (
	"testing"

	"github.com/wozniakbe/ecolife-prefs/preferences"
)

var (
	_ preferences.ChangeNotifier = (*MemorySession)(nil)
	_ preferences.ChangeNotifier = (*File)(nil)
	_ preferences.ChangeNotifier = (*Badger)(nil)
	_ preferences.ChangeNotifier = (*Redis)(nil)
	_ preferences.Backend        = (*Dynamo)(nil)
	_ preferences.Backend        = (*S3)(nil)
)

func TestKeyLayouts(t *testing.T) {
	if got := NewS3(nil, "bucket", "/prefs/", "a/b").objectKey("ecolife_theme"); got != "prefs/a%2Fb/ecolife_theme" {
		t.Errorf("unexpected S3 object key %q", got)
	}
	if got := NewS3(nil, "bucket", "", "p").objectKey("k"); got != "p/k" {
		t.Errorf("unexpected S3 object key without prefix %q", got)
	}

	r := NewRedis(nil, "u1", testLogger())
	if got := r.nsKey("ecolife_theme"); got != "ecolife:u1:ecolife_theme" {
		t.Errorf("unexpected redis key %q", got)
	}
	if got := r.channel(); got != "ecolife:u1:changes" {
		t.Errorf("unexpected redis channel %q", got)
	}
	if NewRedis(nil, "u1", testLogger()).origin == r.origin {
		t.Error("each redis backend needs its own origin")
	}

	if got := NewDynamo(nil, "t", "u1").pk(); got != "PROFILE#u1" {
		t.Errorf("unexpected dynamo pk %q", got)
	}
	if got := string(NewBadger(nil, "a b", testLogger()).key("k")); got != "/a%20b/k" {
		t.Errorf("unexpected badger key %q", got)
	}
}
