package actions

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
)

// SMTPMailer is the default Mailer: it composes a multipart/mixed message
// with the body as the first part and each attachment as a following
// part, and sends it with net/smtp. No SMTP client appears anywhere in
// the retrieved pack, so this is built directly on the standard library.
type SMTPMailer struct {
	Addr string // host:port of the SMTP relay
	From string
	Auth smtp.Auth // nil for an unauthenticated relay
}

func (m *SMTPMailer) Send(msg EmailMessage) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return fmt.Errorf("smtp: compose body: %w", err)
	}
	if _, err := bodyPart.Write([]byte(msg.Body)); err != nil {
		return fmt.Errorf("smtp: write body: %w", err)
	}

	for _, path := range msg.Attachments {
		if err := attachFile(writer, path); err != nil {
			return fmt.Errorf("smtp: attach %s: %w", path, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp: close multipart writer: %w", err)
	}

	return smtp.SendMail(m.Addr, m.Auth, m.From, []string{msg.To}, buf.Bytes())
}

func attachFile(writer *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filepath.Base(path))},
		"Content-Transfer-Encoding": {"binary"},
	})
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
