package email

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/platform/config"
)

func TestBuildWithAttachment(t *testing.T) {
	pdf := bytes.Repeat([]byte("%PDF-1.4 payslip "), 20)
	raw, err := Build(Message{
		From:        "payroll@acme.test",
		To:          "jane@acme.test",
		Subject:     "Your payslip",
		Body:        "Please find your payslip attached.",
		Attachments: []Attachment{{Filename: "jane-doe-tok.pdf", ContentType: "application/pdf", Data: pdf}},
	}, "<id@acme.test>")
	require.NoError(t, err)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "<id@acme.test>", msg.Header.Get("Message-ID"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	body, err := reader.NextPart()
	require.NoError(t, err)
	text, _ := io.ReadAll(body)
	assert.Contains(t, string(text), "payslip attached")

	attachment, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "jane-doe-tok.pdf", attachment.FileName())
	assert.Equal(t, "application/pdf", attachment.Header.Get("Content-Type"))
}

func TestBuildPlainText(t *testing.T) {
	raw, err := Build(Message{From: "a@b.test", To: "c@d.test", Subject: "Hi", Body: "hello"}, "<x@b.test>")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "\r\n\r\nhello"))
}

func TestNoopMailer(t *testing.T) {
	m := New(config.Config{EmailEnabled: false, EmailFrom: "payroll@acme.test"})
	id, err := m.Send(context.Background(), Message{To: "jane@acme.test"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@acme.test>"))

	_, err = m.Send(context.Background(), Message{})
	require.ErrorIs(t, err, ErrNoRecipient)
}
