package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailTemplates(t *testing.T) {
	Conf.TestMode = true
	require.NoError(t, ParseEmailTemplates())

	tests := []struct {
		name     string
		data     map[string]string
		wantText string
		wantHTML string
	}{
		{
			name:     "password_reset",
			data:     map[string]string{"Name": "Grace", "UID": "uid1", "Token": "tok1"},
			wantText: "/password-reset/uid1/tok1",
			wantHTML: "Reset my password",
		},
		{
			name: "invoice_issued",
			data: map[string]string{
				"ParentName": "Grace", "PlayerName": "Ada Okafor", "Number": "INV-2024-0001",
				"Amount": "45.00", "Currency": "EUR", "DueDate": "2024-02-01", "InvoiceID": "inv1",
			},
			wantText: "A new invoice INV-2024-0001 has been issued for Ada Okafor.",
			wantHTML: "<strong>45.00 EUR</strong>",
		},
		{
			name: "invoice_reminder",
			data: map[string]string{
				"ParentName": "Grace", "PlayerName": "Ada Okafor", "Number": "INV-2024-0001",
				"Balance": "20.00", "Currency": "EUR", "DueDate": "2024-02-01", "InvoiceID": "inv1",
			},
			wantText: "Outstanding balance: 20.00 EUR",
			wantHTML: "/billing/invoices/inv1",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			msg := &EmailMessage{TemplateName: tt.name, TemplateData: tt.data}
			require.NoError(t, msg.Render())
			assert.Contains(t, msg.TextContent, tt.wantText)
			assert.Contains(t, msg.HTMLContent, tt.wantHTML)
			// the layout wraps every body
			assert.Contains(t, msg.TextContent, "Hello Grace,")
			assert.Contains(t, msg.HTMLContent, "<!DOCTYPE html>")
		})
	}
}

func TestEmailMessage_Render(t *testing.T) {
	Conf.TestMode = true
	require.NoError(t, ParseEmailTemplates())

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "lol"}
		assert.EqualError(t, msg.Render(), `email template "lol" not found`)
	})

	t.Run("missing data key", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "password_reset", TemplateData: map[string]string{"Name": "Grace"}}
		assert.Error(t, msg.Render())
	})

	t.Run("template without content", func(t *testing.T) {
		tmplMu.Lock()
		templates["empty"] = &tmplCacheEntry{}
		tmplMu.Unlock()
		defer func() {
			tmplMu.Lock()
			delete(templates, "empty")
			tmplMu.Unlock()
		}()

		msg := &EmailMessage{TemplateName: "empty"}
		assert.EqualError(t, msg.Render(), `email template "empty" rendered no content`)
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{BodyStr: "hello"}
		require.NoError(t, msg.Render())
		assert.Equal(t, "hello", msg.TextContent)
	})
}
