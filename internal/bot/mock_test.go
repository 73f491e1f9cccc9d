package bot

import (
	"context"
	"sync"

	"github.com/graffic/soup/internal/telegram"
	"github.com/stretchr/testify/mock"
)

type sentMessage struct {
	id     int64
	chatID int64
	text   string
	fileID string
	opts   *telegram.SendOptions
}

// mockMessenger is a testify mock of telegram.Messenger that also hands out
// message ids and keeps what was sent
type mockMessenger struct {
	mock.Mock

	mu     sync.Mutex
	lastID int64
	sent   []sentMessage
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{lastID: 1000}
}

// acceptAll makes every call succeed. Expectations set before it win.
func (m *mockMessenger) acceptAll() {
	for _, method := range []string{"Send", "SendPhoto", "EditText", "EditCaption", "EditButtons", "AnswerCallback"} {
		var args []interface{}
		switch method {
		case "Send", "EditText", "EditCaption", "EditButtons":
			args = []interface{}{mock.Anything, mock.Anything, mock.Anything, mock.Anything}
		case "SendPhoto":
			args = []interface{}{mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything}
		case "AnswerCallback":
			args = []interface{}{mock.Anything, mock.Anything, mock.Anything}
		}
		m.On(method, args...).Return(nil).Maybe()
	}
}

func (m *mockMessenger) record(chatID int64, text, fileID string, opts *telegram.SendOptions) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	m.sent = append(m.sent, sentMessage{id: m.lastID, chatID: chatID, text: text, fileID: fileID, opts: opts})
	return m.lastID
}

func (m *mockMessenger) Send(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (int64, error) {
	args := m.Called(ctx, chatID, text, opts)
	if err := args.Error(0); err != nil {
		return 0, err
	}
	return m.record(chatID, text, "", opts), nil
}

func (m *mockMessenger) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *telegram.SendOptions) (int64, error) {
	args := m.Called(ctx, chatID, fileID, caption, opts)
	if err := args.Error(0); err != nil {
		return 0, err
	}
	return m.record(chatID, caption, fileID, opts), nil
}

func (m *mockMessenger) EditText(ctx context.Context, chatID, messageID int64, text string) error {
	return m.Called(ctx, chatID, messageID, text).Error(0)
}

func (m *mockMessenger) EditCaption(ctx context.Context, chatID, messageID int64, caption string) error {
	return m.Called(ctx, chatID, messageID, caption).Error(0)
}

func (m *mockMessenger) EditButtons(ctx context.Context, chatID, messageID int64, buttons []telegram.Button) error {
	return m.Called(ctx, chatID, messageID, buttons).Error(0)
}

func (m *mockMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return m.Called(ctx, callbackID, text).Error(0)
}

// last returns the most recent message sent
func (m *mockMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// answers lists the callback answers in order
func (m *mockMessenger) answers() []string {
	var out []string
	for _, call := range m.Calls {
		if call.Method == "AnswerCallback" {
			out = append(out, call.Arguments.String(2))
		}
	}
	return out
}

// editedButtons returns the button labels of the last EditButtons call
func (m *mockMessenger) editedButtons() []string {
	var labels []string
	for _, call := range m.Calls {
		if call.Method == "EditButtons" {
			labels = labels[:0]
			for _, b := range call.Arguments.Get(3).([]telegram.Button) {
				labels = append(labels, b.Text)
			}
		}
	}
	return labels
}

func buttonLabels(opts *telegram.SendOptions) []string {
	if opts == nil {
		return nil
	}
	labels := make([]string, 0, len(opts.Buttons))
	for _, b := range opts.Buttons {
		labels = append(labels, b.Text)
	}
	return labels
}
