package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-reminders/internal/models"
)

// MockCycleRequester is a mock of CycleRequester
type MockCycleRequester struct {
	mock.Mock
}

func (m *MockCycleRequester) RequestCycle() {
	m.Called()
}

func bookChangeJSON(t *testing.T, op, bookID, userID string, reminderEnabled bool) []byte {
	t.Helper()
	var event models.BookChangeEvent
	event.Payload.Operation = op
	event.Payload.After.ID = bookID
	event.Payload.After.UserID = userID
	event.Payload.After.ReminderEnabled = reminderEnabled

	raw, err := json.Marshal(event)
	assert.NoError(t, err)
	return raw
}

func TestProcessBookChange_EnabledUpdateRequestsCycle(t *testing.T) {
	requester := new(MockCycleRequester)
	requester.On("RequestCycle").Return()

	consumer := &BookConsumer{Requester: requester}

	err := consumer.processBookChange(bookChangeJSON(t, "u", "book-1", "user-1", true))

	assert.NoError(t, err)
	requester.AssertExpectations(t)
}

func TestProcessBookChange_DisabledUpdateIsIgnored(t *testing.T) {
	requester := new(MockCycleRequester)

	consumer := &BookConsumer{Requester: requester}

	err := consumer.processBookChange(bookChangeJSON(t, "u", "book-1", "user-1", false))

	assert.NoError(t, err)
	requester.AssertNotCalled(t, "RequestCycle")
}

func TestProcessBookChange_SnapshotAndDeleteAreIgnored(t *testing.T) {
	requester := new(MockCycleRequester)

	consumer := &BookConsumer{Requester: requester}

	assert.NoError(t, consumer.processBookChange(bookChangeJSON(t, "r", "book-1", "user-1", true)))
	assert.NoError(t, consumer.processBookChange(bookChangeJSON(t, "d", "book-1", "user-1", true)))
	requester.AssertNotCalled(t, "RequestCycle")
}

func TestProcessBookChange_MalformedPayload(t *testing.T) {
	requester := new(MockCycleRequester)

	consumer := &BookConsumer{Requester: requester}

	err := consumer.processBookChange([]byte("not json"))

	assert.Error(t, err)
	requester.AssertNotCalled(t, "RequestCycle")
}
