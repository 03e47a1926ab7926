package notify

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkoester/sevactual/internal/config"
	"github.com/fkoester/sevactual/internal/storage"
)

func invalidVouchers() []*storage.VoucherRecord {
	return []*storage.VoucherRecord{{
		SourceVoucherID:  "V-1",
		VoucherNumber:    "RE-1",
		Amount:           decimal.RequireFromString("10"),
		ValidationReason: "missing cost center",
	}}
}

func TestSendInvalidVouchers_DisabledWithoutConfig(t *testing.T) {
	m := NewMailer(config.SMTPConfig{}, nil)
	assert.False(t, m.Enabled())

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not send when disabled")
		return nil
	}
	require.NoError(t, m.SendInvalidVouchers(invalidVouchers()))
}

func TestSendInvalidVouchers_NothingToReport(t *testing.T) {
	m := NewMailer(config.SMTPConfig{
		Host: "mail.example.com", Port: 587,
		From: "sync@example.com", To: []string{"ops@example.com"},
	}, nil)

	var sent bool
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		sent = true
		return nil
	}
	require.NoError(t, m.SendInvalidVouchers(nil))
	assert.False(t, sent)
}

func TestSendInvalidVouchers_BuildsMessage(t *testing.T) {
	m := NewMailer(config.SMTPConfig{
		Host: "mail.example.com", Port: 587,
		Username: "user", Password: "pass",
		From: "sync@example.com", To: []string{"ops@example.com"},
	}, nil)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendInvalidVouchers(invalidVouchers()))
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "sync@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: sevactual: 1 invalid voucher(s)")
	assert.Contains(t, string(gotMsg), "missing cost center")
}

func TestSendInvalidVouchers_SendFailure(t *testing.T) {
	m := NewMailer(config.SMTPConfig{
		Host: "mail.example.com", Port: 587,
		From: "sync@example.com", To: []string{"ops@example.com"},
	}, nil)

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := m.SendInvalidVouchers(invalidVouchers())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending notification")
}
