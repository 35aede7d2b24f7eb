package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		SMTPUser:            "reader@example.com",
		SMTPPass:            "secret",
		ReminderCron:        "0 9 * * *",
		Timezone:            "Asia/Shanghai",
		DispatchConcurrency: 4,
		DeliveryTimeout:     30 * time.Second,
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "Asia/Shanghai", cfg.Location.String())
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPPass = ""
	err := cfg.Validate()
	assert.ErrorContains(t, err, "SMTP credentials")
}

func TestValidateRejectsBadCron(t *testing.T) {
	cfg := validConfig()
	cfg.ReminderCron = "not a cron line"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "REMINDER_CRON")
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "REMINDER_TIMEZONE")
}

func TestValidateRejectsBadDispatchBounds(t *testing.T) {
	cfg := validConfig()
	cfg.DispatchConcurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.DeliveryTimeout = 0
	assert.Error(t, cfg.Validate())
}
