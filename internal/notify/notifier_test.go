package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/intake-gw/internal/intake"
	"github.com/mattjoyce/intake-gw/internal/log"
	"github.com/mattjoyce/intake-gw/internal/notify"
	"github.com/mattjoyce/intake-gw/internal/notify/mocks"
)

func newNotifier(t *testing.T, ch notify.Channel) *notify.Notifier {
	t.Helper()
	r, err := notify.NewRenderer(intake.DefaultSchema())
	require.NoError(t, err)
	return notify.NewNotifier(ch, r, notify.Options{
		From: "intake@example.com",
		To:   []string{"desk@example.com"},
	}, log.Discard())
}

func TestNotifyIntake(t *testing.T) {
	ctrl := gomock.NewController(t)
	ch := mocks.NewMockChannel(ctrl)
	ch.EXPECT().Type().Return("resend").AnyTimes()
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) (string, error) {
		assert.Equal(t, "intake@example.com", msg.From)
		assert.Equal(t, []string{"desk@example.com"}, msg.To)
		assert.Equal(t, "New Patient Intake – Jane", msg.Subject)
		assert.Contains(t, msg.HTML, "Jane")
		assert.Contains(t, msg.Text, "Name: Jane")
		return "re_123", nil
	})

	rcpt, err := newNotifier(t, ch).NotifyIntake(context.Background(), intake.Fields{intake.FieldPatientName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, notify.Receipt{Channel: "resend", ProviderID: "re_123", Subject: "New Patient Intake – Jane"}, rcpt)
}

func TestNotifyIntake_UnknownName(t *testing.T) {
	ctrl := gomock.NewController(t)
	ch := mocks.NewMockChannel(ctrl)
	ch.EXPECT().Type().Return("dir").AnyTimes()
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) (string, error) {
		assert.Equal(t, "New Patient Intake – Unknown", msg.Subject)
		return "id", nil
	})

	_, err := newNotifier(t, ch).NotifyIntake(context.Background(), intake.Fields{intake.FieldEmail: "a@b.c"})
	require.NoError(t, err)
}

func TestNotifyIntake_SendFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	ch := mocks.NewMockChannel(ctrl)
	ch.EXPECT().Type().Return("resend").AnyTimes()
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return("", errors.New("boom"))

	_, err := newNotifier(t, ch).NotifyIntake(context.Background(), intake.Fields{intake.FieldPatientName: "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, notify.ErrDispatch)
	assert.Contains(t, err.Error(), "boom")
}

func TestNotifyIntake_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	ch := mocks.NewMockChannel(ctrl)
	ch.EXPECT().Type().Return("resend").AnyTimes()
	// Send must not be called.

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newNotifier(t, ch).NotifyIntake(ctx, intake.Fields{intake.FieldPatientName: "X"})
	assert.ErrorIs(t, err, notify.ErrDispatch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotifyBasic(t *testing.T) {
	ctrl := gomock.NewController(t)
	ch := mocks.NewMockChannel(ctrl)
	ch.EXPECT().Type().Return("resend").AnyTimes()
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) (string, error) {
		assert.Equal(t, "New Patient Intake – John Doe", msg.Subject)
		assert.Contains(t, msg.HTML, "Annual eye exam")
		return "re_9", nil
	})

	rcpt, err := newNotifier(t, ch).NotifyBasic(context.Background(), notify.BasicIntake{
		PatientName:    "John Doe",
		ReasonForVisit: "Annual eye exam",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_9", rcpt.ProviderID)
}

func TestSubjectPrefix(t *testing.T) {
	r, err := notify.NewRenderer(nil)
	require.NoError(t, err)
	n := notify.NewNotifier(nil, r, notify.Options{SubjectPrefix: "Intake"}, log.Discard())
	assert.Equal(t, "Intake – Bob", n.Subject(" Bob "))
	assert.Equal(t, "Intake – Unknown", n.Subject(""))
}
