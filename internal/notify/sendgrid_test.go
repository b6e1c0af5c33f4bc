package notify

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"device-loan-backend/internal/resilience"
)

const sendURL = "https://api.sendgrid.com/v3/mail/send"

func testEmail() Email {
	return Email{
		To:        "ada@example.com",
		ToName:    "Ada",
		Subject:   "Pixel 9 is available",
		PlainText: "Hello Ada",
		HTML:      "<p>Hello Ada</p>",
	}
}

func TestSendGridSender_Send(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	t.Run("Accepted", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(http.MethodPost, sendURL,
			func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "Bearer SG.test-key", req.Header.Get("Authorization"))
				return httpmock.NewStringResponse(http.StatusAccepted, ""), nil
			})

		s := NewSendGridSender("SG.test-key", "loans@example.com", "Device Loans")
		require.NoError(t, s.Send(context.Background(), testEmail()))
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("Server error is transient", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(http.MethodPost, sendURL,
			httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"errors":[{"message":"try later"}]}`))

		err := NewSendGridSender("SG.test-key", "loans@example.com", "Device Loans").Send(context.Background(), testEmail())

		var sendErr *SendError
		require.ErrorAs(t, err, &sendErr)
		assert.Equal(t, http.StatusServiceUnavailable, sendErr.StatusCode())
		assert.Contains(t, sendErr.Body, "try later")
		assert.True(t, resilience.IsTransient(err))
	})

	t.Run("Bad request is terminal", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(http.MethodPost, sendURL,
			httpmock.NewStringResponder(http.StatusBadRequest, `{"errors":[{"message":"invalid email"}]}`))

		err := NewSendGridSender("SG.test-key", "loans@example.com", "Device Loans").Send(context.Background(), testEmail())
		require.Error(t, err)
		assert.False(t, resilience.IsTransient(err))
	})

	t.Run("Regional host", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(http.MethodPost, "https://api.eu.sendgrid.com/v3/mail/send",
			httpmock.NewStringResponder(http.StatusAccepted, ""))

		s := NewSendGridSender("SG.test-key", "loans@example.com", "Device Loans").WithHost("https://api.eu.sendgrid.com")
		require.NoError(t, s.Send(context.Background(), testEmail()))
	})
}

func TestLogSender(t *testing.T) {
	s := NewLogSender()
	assert.Equal(t, "email", s.Channel())
	assert.NoError(t, s.Send(context.Background(), testEmail()))
}
