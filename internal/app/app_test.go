package app

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"device-loan-backend/internal/config"
	"device-loan-backend/internal/notify"
	"device-loan-backend/internal/resilience"
)

const minimalConfig = `
database:
  host: localhost
  user: loans
  database: loans
jwt:
  secret: 0123456789abcdef0123456789abcdef
`

func TestWire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg, err := config.Parse([]byte(minimalConfig))
	require.NoError(t, err)

	a, err := Wire(cfg, db)
	require.NoError(t, err)

	assert.NotNil(t, a.Loans)
	assert.NotNil(t, a.Jobs)
	snaps := a.Breakers.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, notify.DependencyEmail, snaps[0].Name)
	assert.Equal(t, resilience.StateClosed, snaps[0].State)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	mock.ExpectClose()
	require.NoError(t, a.Close())
}

func TestNewEmailSender(t *testing.T) {
	s, err := NewEmailSender(config.EmailConfig{Provider: config.EmailProviderLog})
	require.NoError(t, err)
	assert.IsType(t, &notify.LogSender{}, s)

	s, err = NewEmailSender(config.EmailConfig{Provider: config.EmailProviderSendGrid, APIKey: "SG.x", From: "a@b.c", Host: "https://api.eu.sendgrid.com"})
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, s)

	_, err = NewEmailSender(config.EmailConfig{Provider: "pigeon"})
	assert.Error(t, err)
}
