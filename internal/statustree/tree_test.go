package statustree

import (
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(tree.Stop)
	return tree
}

func TestSetAndGetRoundTrip(t *testing.T) {
	tree := newTestTree(t)

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := tree.Get("status://house/kitchen/light", Null())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind() != KindBool || !got.BoolValue() {
		t.Errorf("got %+v, want true", got)
	}
}

func TestGetUnknownPathReturnsDefault(t *testing.T) {
	tree := newTestTree(t)

	got, err := tree.Get("status://never/set", String("fallback"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind() != KindString || got.StringValue() != "fallback" {
		t.Errorf("got %+v, want fallback", got)
	}
}

func TestSetBumpsAncestorRevisionsNotSiblings(t *testing.T) {
	tree := newTestTree(t)

	if err := tree.Set("status://house/kitchen/light", Bool(false), nil); err != nil {
		t.Fatal(err)
	}
	if err := tree.Set("status://house/garage/door", String("closed"), nil); err != nil {
		t.Fatal(err)
	}

	garageRevBefore, err := tree.Revision("status://house/garage")
	if err != nil {
		t.Fatal(err)
	}
	houseRevBefore, err := tree.Revision("status://house")
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatal(err)
	}

	kitchenRev, err := tree.Revision("status://house/kitchen")
	if err != nil {
		t.Fatal(err)
	}
	houseRevAfter, err := tree.Revision("status://house")
	if err != nil {
		t.Fatal(err)
	}
	garageRevAfter, err := tree.Revision("status://house/garage")
	if err != nil {
		t.Fatal(err)
	}
	lightRev, err := tree.Revision("status://house/kitchen/light")
	if err != nil {
		t.Fatal(err)
	}

	if kitchenRev != lightRev {
		t.Errorf("kitchen revision %d should equal light revision %d", kitchenRev, lightRev)
	}
	if houseRevAfter != lightRev {
		t.Errorf("house revision %d should equal the new write's revision %d", houseRevAfter, lightRev)
	}
	if houseRevAfter == houseRevBefore {
		t.Errorf("house revision should have changed")
	}
	if garageRevAfter != garageRevBefore {
		t.Errorf("garage revision changed from %d to %d, should be untouched by a kitchen write", garageRevBefore, garageRevAfter)
	}
}

func TestNoOpSetDoesNotBumpRevision(t *testing.T) {
	tree := newTestTree(t)

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatal(err)
	}
	before, err := tree.Revision("status://house/kitchen/light")
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatal(err)
	}
	after, err := tree.Revision("status://house/kitchen/light")
	if err != nil {
		t.Fatal(err)
	}

	if before != after {
		t.Errorf("no-op set changed revision from %d to %d", before, after)
	}
}

func TestSetRevisionMismatchLeavesTreeUnchanged(t *testing.T) {
	tree := newTestTree(t)

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatal(err)
	}
	rev, err := tree.Revision("status://house/kitchen/light")
	if err != nil {
		t.Fatal(err)
	}

	stale := rev + 100
	err = tree.Set("status://house/kitchen/light", Bool(false), &stale)
	if err == nil {
		t.Fatal("expected RevisionMismatchError")
	}
	if _, ok := err.(*RevisionMismatchError); !ok {
		t.Errorf("got error %T, want *RevisionMismatchError", err)
	}

	got, err := tree.Get("status://house/kitchen/light", Null())
	if err != nil {
		t.Fatal(err)
	}
	if !got.BoolValue() {
		t.Error("value should be unchanged after a failed conditional set")
	}
}

func TestSetExpectedMatchingAncestorSucceeds(t *testing.T) {
	tree := newTestTree(t)

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatal(err)
	}
	houseRev, err := tree.Revision("status://house")
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.Set("status://house/kitchen/light", Bool(false), &houseRev); err != nil {
		t.Fatalf("expected success using ancestor revision, got %v", err)
	}
}

func TestSetThroughScalarIsBadPath(t *testing.T) {
	tree := newTestTree(t)

	if err := tree.Set("status://house/kitchen", Bool(true), nil); err != nil {
		t.Fatal(err)
	}

	err := tree.Set("status://house/kitchen/light", Bool(true), nil)
	if _, ok := err.(*BadPathError); !ok {
		t.Errorf("got %T (%v), want *BadPathError", err, err)
	}
}

func TestGetMatchingURLsWildcardExpansion(t *testing.T) {
	tree := newTestTree(t)

	for _, path := range []string{
		"status://house/kitchen/light",
		"status://house/garage/light",
		"status://house/bedroom/light",
	} {
		if err := tree.Set(path, Bool(true), nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.Set("status://house/kitchen/fan", Bool(false), nil); err != nil {
		t.Fatal(err)
	}

	urls, err := tree.GetMatchingURLs("status://house/*/light")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(urls)
	want := []string{
		"status://house/bedroom/light",
		"status://house/garage/light",
		"status://house/kitchen/light",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestGetMatchingURLsSkipsNonExistentPrefix(t *testing.T) {
	tree := newTestTree(t)
	urls, err := tree.GetMatchingURLs("status://nothing/*/light")
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 0 {
		t.Errorf("expected no matches, got %v", urls)
	}
}

func TestWatcherFiresOnMatchingSet(t *testing.T) {
	tree := newTestTree(t)
	if err := tree.Set("status://house/kitchen/light", Bool(false), nil); err != nil {
		t.Fatal(err)
	}

	w, err := tree.Deferred("status://house/kitchen/light", nil)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Done():
		t.Fatal("watcher fired before any change")
	case <-time.After(20 * time.Millisecond):
	}

	if err := tree.Set("status://house/kitchen/light", Bool(true), nil); err != nil {
		t.Fatal(err)
	}

	select {
	case outcome := <-w.Done():
		if outcome.Cancelled {
			t.Error("watcher should not report cancellation on a real change")
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not fire after matching set")
	}
}

func TestWatcherDoesNotFireOnUnrelatedSet(t *testing.T) {
	tree := newTestTree(t)
	if err := tree.Set("status://house/kitchen/light", Bool(false), nil); err != nil {
		t.Fatal(err)
	}

	w, err := tree.Deferred("status://house/kitchen/light", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.Set("status://house/garage/door", String("open"), nil); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Done():
		t.Fatal("watcher fired on an unrelated path")
	case <-time.After(20 * time.Millisecond):
	}

	w.Cancel()
	select {
	case outcome := <-w.Done():
		if !outcome.Cancelled {
			t.Error("expected Cancelled outcome")
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not deliver an outcome")
	}
}

func TestDeferredFiresImmediatelyOnStaleBaseline(t *testing.T) {
	tree := newTestTree(t)
	if err := tree.Set("status://house/kitchen/light", Bool(false), nil); err != nil {
		t.Fatal(err)
	}

	rev, err := tree.Revision("status://house/kitchen/light")
	if err != nil {
		t.Fatal(err)
	}
	stale := rev - 1

	w, err := tree.Deferred("status://house/kitchen/light", &stale)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case outcome := <-w.Done():
		if outcome.Cancelled {
			t.Error("immediate fire on stale baseline should not be Cancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("watcher with stale baseline should fire immediately")
	}
}

func TestStopCancelsPendingWatchers(t *testing.T) {
	tree := NewTree(slog.New(slog.NewTextHandler(io.Discard, nil)))

	w, err := tree.Deferred("status://house/kitchen/light", nil)
	if err != nil {
		t.Fatal(err)
	}

	tree.Stop()

	select {
	case outcome := <-w.Done():
		if !outcome.Cancelled {
			t.Error("expected Cancelled outcome on Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the pending watcher")
	}
}

func TestSetRejectsWildcardPath(t *testing.T) {
	tree := newTestTree(t)
	err := tree.Set("status://house/*/light", Bool(true), nil)
	if _, ok := err.(*BadPathError); !ok {
		t.Errorf("got %T, want *BadPathError", err)
	}
}
