package sender

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/education-platform/internal/lib/smtp"
	"github.com/magabrotheeeer/education-platform/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSendPaymentFailed(t *testing.T) {
	body, err := json.Marshal(models.PaymentFailedNotification{
		Email:            "alice@example.com",
		StripeCustomerID: "cus_1",
		AttemptCount:     2,
	})
	require.NoError(t, err)

	t.Run("sends email", func(t *testing.T) {
		transport := new(MockTransport)
		client := new(MockSMTPClient)
		writer := new(MockSMTPWriter)

		transport.On("GetSMTPUser").Return("noreply@example.com")
		transport.On("Connect").Return(client, nil)
		client.On("Mail", "noreply@example.com").Return(nil)
		client.On("Rcpt", "alice@example.com").Return(nil)
		client.On("Data").Return(writer, nil)
		writer.On("Write", mock.Anything).Return(0, nil)
		writer.On("Close").Return(nil)
		client.On("Quit").Return(nil)
		client.On("Close").Return(nil)

		svc := New(transport, newNoopLogger())
		assert.NoError(t, svc.SendPaymentFailed(body))
		client.AssertExpectations(t)
	})

	t.Run("skips message without email", func(t *testing.T) {
		transport := new(MockTransport)
		empty, err := json.Marshal(models.PaymentFailedNotification{StripeCustomerID: "cus_1"})
		require.NoError(t, err)

		svc := New(transport, newNoopLogger())
		assert.NoError(t, svc.SendPaymentFailed(empty))
		transport.AssertNotCalled(t, "Connect")
	})

	t.Run("connect failure is returned for requeue", func(t *testing.T) {
		transport := new(MockTransport)
		transport.On("GetSMTPUser").Return("noreply@example.com")
		transport.On("Connect").Return(nil, errors.New("dial failed"))

		svc := New(transport, newNoopLogger())
		assert.Error(t, svc.SendPaymentFailed(body))
	})

	t.Run("garbage body is rejected", func(t *testing.T) {
		svc := New(new(MockTransport), newNoopLogger())
		assert.Error(t, svc.SendPaymentFailed([]byte("{not json")))
	})
}
