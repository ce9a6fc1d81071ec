package actions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DonGar/house-monitor/internal/scheduling"
	"github.com/DonGar/house-monitor/internal/statustree"
)

func newTestManager(t *testing.T) (*Manager, *statustree.Tree) {
	t.Helper()
	tree := statustree.NewTree(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(tree.Stop)

	sched := scheduling.NewScheduler(nil)
	m := NewManager(tree, sched)
	m.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	m.DownloadsDir = t.TempDir()
	return m, tree
}

func TestHandleActionStatusURLResolvesAndRedispatches(t *testing.T) {
	m, tree := newTestManager(t)

	if err := tree.Set("status://rules/one/action", statustree.Map(map[string]statustree.Value{
		"action": statustree.String("set"),
		"dest":   statustree.String("status://values/out"),
		"value":  statustree.Int(5),
	}), nil); err != nil {
		t.Fatal(err)
	}

	if err := m.HandleAction(context.Background(), statustree.String("status://rules/one/action")); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}

	got, err := tree.Get("status://values/out", statustree.Null())
	if err != nil {
		t.Fatal(err)
	}
	if got.IntValue() != 5 {
		t.Errorf("got %+v, want 5", got)
	}
}

func TestHandleActionStatusURLResolvingToNullIsInvalid(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.HandleAction(context.Background(), statustree.String("status://rules/missing/action"))
	if _, ok := err.(*InvalidActionError); !ok {
		t.Errorf("got %T (%v), want *InvalidActionError", err, err)
	}
}

func TestHandleActionAbsoluteURLFetches(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m, _ := newTestManager(t)
	if err := m.HandleAction(context.Background(), statustree.String(server.URL)); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	if hits != 1 {
		t.Errorf("got %d hits, want 1", hits)
	}
}

func TestHandleActionMapMissingActionTagIsInvalid(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.HandleAction(context.Background(), statustree.EmptyMap())
	if _, ok := err.(*InvalidActionError); !ok {
		t.Errorf("got %T, want *InvalidActionError", err)
	}
}

func TestHandleActionMapUnknownTag(t *testing.T) {
	m, _ := newTestManager(t)
	action := statustree.Map(map[string]statustree.Value{"action": statustree.String("nonexistent")})
	err := m.HandleAction(context.Background(), action)
	if _, ok := err.(*UnknownActionTagError); !ok {
		t.Errorf("got %T, want *UnknownActionTagError", err)
	}
}

func TestHandleActionSequenceDispatchesAllAndJoinsErrors(t *testing.T) {
	m, tree := newTestManager(t)

	good := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("set"),
		"dest":   statustree.String("status://values/a"),
		"value":  statustree.Int(1),
	})
	bad := statustree.Map(map[string]statustree.Value{"action": statustree.String("bogus")})

	err := m.HandleAction(context.Background(), statustree.Seq([]statustree.Value{good, bad}))
	if err == nil {
		t.Fatal("expected a joined error from the failing element")
	}
	var tagErr *UnknownActionTagError
	if !errors.As(err, &tagErr) {
		t.Errorf("expected the joined error to contain *UnknownActionTagError, got %v", err)
	}

	got, gerr := tree.Get("status://values/a", statustree.Null())
	if gerr != nil {
		t.Fatal(gerr)
	}
	if got.IntValue() != 1 {
		t.Error("the first element should still have run despite the second failing")
	}
}

func TestHandleSetFromSrc(t *testing.T) {
	m, tree := newTestManager(t)
	if err := tree.Set("status://values/src", statustree.String("hi"), nil); err != nil {
		t.Fatal(err)
	}

	action := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("set"),
		"dest":   statustree.String("status://values/dst"),
		"src":    statustree.String("status://values/src"),
	})
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}

	got, err := tree.Get("status://values/dst", statustree.Null())
	if err != nil {
		t.Fatal(err)
	}
	if got.StringValue() != "hi" {
		t.Errorf("got %+v, want hi", got)
	}
}

func TestHandleSetRejectsBothSrcAndValue(t *testing.T) {
	m, _ := newTestManager(t)
	action := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("set"),
		"dest":   statustree.String("status://values/dst"),
		"src":    statustree.String("status://values/src"),
		"value":  statustree.Int(1),
	})
	err := m.HandleAction(context.Background(), action)
	if _, ok := err.(*InvalidActionError); !ok {
		t.Errorf("got %T, want *InvalidActionError", err)
	}
}

func TestHandleIncrementDefaultsToZero(t *testing.T) {
	m, tree := newTestManager(t)
	action := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("increment"),
		"dest":   statustree.String("status://counters/visits"),
	})

	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}

	got, err := tree.Get("status://counters/visits", statustree.Null())
	if err != nil {
		t.Fatal(err)
	}
	if got.IntValue() != 2 {
		t.Errorf("got %+v, want 2", got)
	}
}

type fakeWOL struct {
	sentMAC string
	err     error
}

func (f *fakeWOL) Send(mac string) error {
	f.sentMAC = mac
	return f.err
}

func TestHandleWOLDispatchesToSender(t *testing.T) {
	m, _ := newTestManager(t)
	fake := &fakeWOL{}
	m.WOL = fake

	action := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("wol"),
		"mac":    statustree.String("aa:bb:cc:dd:ee:ff"),
	})
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	if fake.sentMAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("got %q, want aa:bb:cc:dd:ee:ff", fake.sentMAC)
	}
}

type fakePinger struct {
	result bool
	err    error
}

func (f *fakePinger) Ping(ctx context.Context, hostname string) (bool, error) {
	return f.result, f.err
}

func TestHandlePingSetsResult(t *testing.T) {
	m, tree := newTestManager(t)
	m.Pinger = &fakePinger{result: true}

	action := statustree.Map(map[string]statustree.Value{
		"action":   statustree.String("ping"),
		"hostname": statustree.String("example.test"),
		"dest":     statustree.String("status://hosts/example/up"),
	})
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}

	got, err := tree.Get("status://hosts/example/up", statustree.Null())
	if err != nil {
		t.Fatal(err)
	}
	if !got.BoolValue() {
		t.Error("expected ping result true")
	}
}

type fakeMailer struct {
	sent EmailMessage
}

func (f *fakeMailer) Send(msg EmailMessage) error {
	f.sent = msg
	return nil
}

func TestHandleEmailUsesDefaultRecipient(t *testing.T) {
	m, tree := newTestManager(t)
	if err := tree.Set("status://server/email_address", statustree.String("ops@example.test"), nil); err != nil {
		t.Fatal(err)
	}
	mailer := &fakeMailer{}
	m.Mailer = mailer

	action := statustree.Map(map[string]statustree.Value{
		"action":  statustree.String("email"),
		"subject": statustree.String("hello"),
		"body":    statustree.String("world"),
	})
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	if mailer.sent.To != "ops@example.test" {
		t.Errorf("got To=%q, want ops@example.test", mailer.sent.To)
	}
}

func TestHandleEmailFailsWholeOnAttachmentFailure(t *testing.T) {
	m, tree := newTestManager(t)
	if err := tree.Set("status://server/email_address", statustree.String("ops@example.test"), nil); err != nil {
		t.Fatal(err)
	}
	mailer := &fakeMailer{}
	m.Mailer = mailer

	action := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("email"),
		"attachments": statustree.Seq([]statustree.Value{
			statustree.Map(map[string]statustree.Value{
				"url":           statustree.String("http://127.0.0.1:1/does-not-exist"),
				"download_name": statustree.String("a.txt"),
			}),
		}),
	})

	err := m.HandleAction(context.Background(), action)
	if err == nil {
		t.Fatal("expected failure from unreachable attachment")
	}
	if mailer.sent.To != "" {
		t.Error("mailer should not have been invoked when an attachment fails")
	}
}

func TestHandleEmailDownloadsAttachmentsConcurrently(t *testing.T) {
	const perRequest = 100 * time.Millisecond
	const attachmentCount = 3

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(perRequest)
		w.Write([]byte("attachment body"))
	}))
	defer server.Close()

	m, tree := newTestManager(t)
	if err := tree.Set("status://server/email_address", statustree.String("ops@example.test"), nil); err != nil {
		t.Fatal(err)
	}
	mailer := &fakeMailer{}
	m.Mailer = mailer

	attachments := make([]statustree.Value, attachmentCount)
	for i := range attachments {
		attachments[i] = statustree.Map(map[string]statustree.Value{
			"url":           statustree.String(server.URL),
			"download_name": statustree.String("a.txt"),
		})
	}
	action := statustree.Map(map[string]statustree.Value{
		"action":      statustree.String("email"),
		"attachments": statustree.Seq(attachments),
	})

	start := time.Now()
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}
	elapsed := time.Since(start)

	if len(mailer.sent.Attachments) != attachmentCount {
		t.Fatalf("got %d attachments, want %d", len(mailer.sent.Attachments), attachmentCount)
	}
	// Sequential downloads would take roughly attachmentCount*perRequest;
	// concurrent downloads should take roughly one perRequest regardless of
	// attachmentCount. Leave generous headroom for scheduler jitter.
	if elapsed >= time.Duration(attachmentCount)*perRequest {
		t.Errorf("attachments took %v, want well under %v (downloads did not overlap)", elapsed, time.Duration(attachmentCount)*perRequest)
	}
}

func TestHandleEmailCancelsOutstandingAttachmentsOnFailure(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("attachment body"))
	}))
	defer server.Close()

	m, tree := newTestManager(t)
	if err := tree.Set("status://server/email_address", statustree.String("ops@example.test"), nil); err != nil {
		t.Fatal(err)
	}
	mailer := &fakeMailer{}
	m.Mailer = mailer

	action := statustree.Map(map[string]statustree.Value{
		"action": statustree.String("email"),
		"attachments": statustree.Seq([]statustree.Value{
			statustree.Map(map[string]statustree.Value{
				"url":           statustree.String("http://127.0.0.1:1/does-not-exist"),
				"download_name": statustree.String("a.txt"),
			}),
			statustree.Map(map[string]statustree.Value{
				"url":           statustree.String(server.URL),
				"download_name": statustree.String("b.txt"),
			}),
			statustree.Map(map[string]statustree.Value{
				"url":           statustree.String(server.URL),
				"download_name": statustree.String("c.txt"),
			}),
		}),
	})

	start := time.Now()
	err := m.HandleAction(context.Background(), action)
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected failure from the unreachable attachment")
	}
	if mailer.sent.To != "" {
		t.Error("mailer should not have been invoked when an attachment fails")
	}
	// Each reachable download takes 200ms; cancelling them on the first
	// failure lets the action return before either one completes.
	if elapsed >= 200*time.Millisecond {
		t.Errorf("email action took %v, want under 200ms (outstanding downloads were not cancelled)", elapsed)
	}
}

func TestHandleDelayedFiresAfterDuration(t *testing.T) {
	m, tree := newTestManager(t)

	action := statustree.Map(map[string]statustree.Value{
		"action":  statustree.String("delayed"),
		"seconds": statustree.Float(0.01),
		"delayed_action": statustree.Map(map[string]statustree.Value{
			"action": statustree.String("set"),
			"dest":   statustree.String("status://values/delayed"),
			"value":  statustree.Bool(true),
		}),
	})
	if err := m.HandleAction(context.Background(), action); err != nil {
		t.Fatalf("HandleAction: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err := tree.Get("status://values/delayed", statustree.Null())
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind() == statustree.KindBool && got.BoolValue() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("delayed action did not fire within timeout")
}
