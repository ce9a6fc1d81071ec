package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DonGar/house-monitor/internal/statustree"
)

func (m *Manager) handleDelayed(_ context.Context, action statustree.Value) error {
	secondsVal, ok := action.Child("seconds")
	if !ok {
		return &InvalidActionError{Reason: "delayed action missing \"seconds\""}
	}
	delayedAction, ok := action.Child("delayed_action")
	if !ok {
		return &InvalidActionError{Reason: "delayed action missing \"delayed_action\""}
	}

	delay := time.Duration(secondsVal.FloatValue() * float64(time.Second))
	m.Scheduler.After(delay, func() {
		if err := m.HandleAction(context.Background(), delayedAction); err != nil {
			m.Logger.Error("delayed action failed", "error", err)
		}
	})
	return nil
}

func (m *Manager) handleFetchURL(ctx context.Context, action statustree.Value) error {
	urlVal, ok := action.Child("url")
	if !ok || urlVal.Kind() != statustree.KindString {
		return &InvalidActionError{Reason: "fetch_url action missing \"url\""}
	}

	if downloadVal, ok := action.Child("download_name"); ok && downloadVal.Kind() == statustree.KindString {
		return m.downloadToFile(ctx, urlVal.StringValue(), downloadVal.StringValue())
	}
	_, err := m.fetch(ctx, urlVal.StringValue())
	return err
}

func (m *Manager) handleSet(_ context.Context, action statustree.Value) error {
	destVal, ok := action.Child("dest")
	if !ok || destVal.Kind() != statustree.KindString {
		return &InvalidActionError{Reason: "set action missing \"dest\""}
	}
	dest := destVal.StringValue()

	srcVal, hasSrc := action.Child("src")
	valueVal, hasValue := action.Child("value")

	switch {
	case hasSrc && hasValue:
		return &InvalidActionError{Reason: "set action must have exactly one of \"src\", \"value\""}
	case hasSrc:
		if srcVal.Kind() != statustree.KindString {
			return &InvalidActionError{Reason: "set action \"src\" must be a status url"}
		}
		v, err := m.Tree.Get(srcVal.StringValue(), statustree.Null())
		if err != nil {
			return err
		}
		return m.Tree.Set(dest, v, nil)
	case hasValue:
		return m.Tree.Set(dest, valueVal, nil)
	default:
		return &InvalidActionError{Reason: "set action requires one of \"src\", \"value\""}
	}
}

func (m *Manager) handleIncrement(_ context.Context, action statustree.Value) error {
	destVal, ok := action.Child("dest")
	if !ok || destVal.Kind() != statustree.KindString {
		return &InvalidActionError{Reason: "increment action missing \"dest\""}
	}
	dest := destVal.StringValue()

	current, err := m.Tree.Get(dest, statustree.Int(0))
	if err != nil {
		return err
	}

	switch current.Kind() {
	case statustree.KindInt:
		return m.Tree.Set(dest, statustree.Int(current.IntValue()+1), nil)
	case statustree.KindFloat:
		return m.Tree.Set(dest, statustree.Float(current.FloatValue()+1), nil)
	case statustree.KindNull:
		return m.Tree.Set(dest, statustree.Int(1), nil)
	default:
		return &InvalidActionError{Reason: fmt.Sprintf("increment action: %q is not numeric", dest)}
	}
}

func (m *Manager) handleWOL(action statustree.Value) error {
	macVal, ok := action.Child("mac")
	if !ok || macVal.Kind() != statustree.KindString {
		return &InvalidActionError{Reason: "wol action missing \"mac\""}
	}
	if m.WOL == nil {
		return &InvalidActionError{Reason: "wol action: no Wake-on-LAN sender configured"}
	}
	if err := m.WOL.Send(macVal.StringValue()); err != nil {
		return &ExternalFailureError{Op: "wol " + macVal.StringValue(), Err: err}
	}
	return nil
}

func (m *Manager) handlePing(ctx context.Context, action statustree.Value) error {
	hostVal, ok := action.Child("hostname")
	if !ok || hostVal.Kind() != statustree.KindString {
		return &InvalidActionError{Reason: "ping action missing \"hostname\""}
	}
	destVal, ok := action.Child("dest")
	if !ok || destVal.Kind() != statustree.KindString {
		return &InvalidActionError{Reason: "ping action missing \"dest\""}
	}
	if m.Pinger == nil {
		return &InvalidActionError{Reason: "ping action: no Pinger configured"}
	}

	success, err := m.Pinger.Ping(ctx, hostVal.StringValue())
	if err != nil {
		m.Logger.Warn("ping probe error", "hostname", hostVal.StringValue(), "error", err)
	}
	return m.Tree.Set(destVal.StringValue(), statustree.Bool(success), nil)
}

func (m *Manager) handleEmail(ctx context.Context, action statustree.Value) error {
	to := ""
	if toVal, ok := action.Child("to"); ok && toVal.Kind() == statustree.KindString {
		to = toVal.StringValue()
	} else {
		defaultTo, err := m.Tree.Get("status://server/email_address", statustree.Null())
		if err != nil {
			return err
		}
		if defaultTo.Kind() == statustree.KindString {
			to = defaultTo.StringValue()
		}
	}
	if to == "" {
		return &InvalidActionError{Reason: "email action: no recipient and no status://server/email_address default"}
	}

	subject := ""
	if v, ok := action.Child("subject"); ok && v.Kind() == statustree.KindString {
		subject = v.StringValue()
	}
	body := ""
	if v, ok := action.Child("body"); ok && v.Kind() == statustree.KindString {
		body = v.StringValue()
	}

	tempDir, err := os.MkdirTemp("", "housemonitor-email-")
	if err != nil {
		return &ExternalFailureError{Op: "email", Err: err}
	}
	defer os.RemoveAll(tempDir)

	var attachmentPaths []string
	if attachVal, ok := action.Child("attachments"); ok && attachVal.Kind() == statustree.KindSeq {
		paths, err := m.downloadAttachments(ctx, attachVal.SeqValue(), tempDir)
		if err != nil {
			// A single failed attachment is fatal for the whole email; the
			// others are cancelled to the extent outstanding, and the
			// tempdir is still removed by the defer above.
			return err
		}
		attachmentPaths = paths
	}

	if m.Mailer == nil {
		return &InvalidActionError{Reason: "email action: no Mailer configured"}
	}
	if err := m.Mailer.Send(EmailMessage{To: to, Subject: subject, Body: body, Attachments: attachmentPaths}); err != nil {
		return &ExternalFailureError{Op: "email to " + to, Err: err}
	}
	return nil
}

// downloadAttachments schedules every attachment's download concurrently,
// per spec.md's "three concurrent downloads" seed scenario: the first
// failure cancels the shared context, aborting any download still
// outstanding, and downloadAttachments returns that failure once every
// goroutine has unwound. Results are returned in the attachments' original
// order regardless of completion order.
func (m *Manager) downloadAttachments(ctx context.Context, attachments []statustree.Value, tempDir string) ([]string, error) {
	paths := make([]string, len(attachments))

	g, gctx := errgroup.WithContext(ctx)
	for i, att := range attachments {
		i, att := i, att
		g.Go(func() error {
			path, err := m.downloadAttachment(gctx, att, tempDir)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (m *Manager) downloadAttachment(ctx context.Context, att statustree.Value, tempDir string) (string, error) {
	if att.Kind() != statustree.KindMap {
		return "", &InvalidActionError{Reason: "email attachment must be a map"}
	}
	urlVal, ok := att.Child("url")
	if !ok || urlVal.Kind() != statustree.KindString {
		return "", &InvalidActionError{Reason: "email attachment missing \"url\""}
	}
	nameVal, ok := att.Child("download_name")
	if !ok || nameVal.Kind() != statustree.KindString {
		return "", &InvalidActionError{Reason: "email attachment missing \"download_name\""}
	}
	preserve := false
	if p, ok := att.Child("preserve"); ok && p.Kind() == statustree.KindBool {
		preserve = p.BoolValue()
	}

	body, err := m.fetch(ctx, urlVal.StringValue())
	if err != nil {
		return "", err
	}

	name := filepath.Base(nameVal.StringValue())
	dir := tempDir
	if preserve {
		dir = m.DownloadsDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &ExternalFailureError{Op: "email attachment " + name, Err: err}
		}
	}

	dest := filepath.Join(dir, name)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", &ExternalFailureError{Op: "email attachment " + name, Err: err}
	}
	return dest, nil
}
