package mail

import (
	"context"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestTemplates_RenderWelcome(t *testing.T) {
	tpl := NewTemplates()

	out, err := tpl.Render("welcome", map[string]any{"name": "Alice", "email": "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Userfire, Alice!", out.Subject)
	assert.Contains(t, out.Text, "alice@example.com")
	assert.Contains(t, out.HTML, "<h1>Welcome, Alice!</h1>")

	// cached path
	again, err := tpl.Render("welcome", map[string]any{"name": "Bob", "email": "bob@example.com"})
	require.NoError(t, err)
	assert.Contains(t, again.Subject, "Bob")
}

func TestTemplates_EscapesHTML(t *testing.T) {
	out, err := NewTemplates().Render("welcome", map[string]any{"name": "<script>", "email": "x@y"})
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>")
}

func TestTemplates_Unknown(t *testing.T) {
	_, err := NewTemplates().Render("farewell", nil)
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	res, err := NewLogSender(logger.Discard()).Send(context.Background(), SendOptions{To: "a@b", Subject: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestNewMailgunSender_NotConfigured(t *testing.T) {
	assert.Nil(t, NewMailgunSender(config.EmailConfig{Enabled: true}, logger.Discard()))
	assert.Nil(t, NewMailgunSender(config.EmailConfig{MailgunDomain: "d", MailgunAPIKey: "k"}, logger.Discard()))

	s := NewMailgunSender(config.EmailConfig{Enabled: true, MailgunDomain: "mg.example.com", MailgunAPIKey: "key"}, logger.Discard())
	require.NotNil(t, s)
	var _ Sender = s
}
