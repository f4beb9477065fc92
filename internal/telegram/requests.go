package telegram

// Request is one of the request types below.
type Request interface {
	Name() string
}

// SetParameters configures the client before authorization starts.
type SetParameters struct {
	DeviceModel   string
	SystemVersion string
	AppVersion    string
	LangCode      string
	SessionDir    string
}

type SetPhoneNumber struct {
	Phone string
}

type CheckCode struct {
	Code string
}

type CheckPassword struct {
	Password string
}

// LoadChats pushes up to Limit chats as UpdateNewChat and resolves with
// their ids in service order ([]int64).
type LoadChats struct {
	Limit int
}

// GetHistory resolves with []domain.Message in the order the service
// returned them.
type GetHistory struct {
	ChatID int64
	Limit  int
}

type SendMessage struct {
	ChatID int64
	Text   string
}

// GetMe resolves with the authorized domain.Account.
type GetMe struct{}

type LogOut struct{}

// Close shuts the client down; the adapter pushes Closing and Closed.
type Close struct{}

func (SetParameters) Name() string  { return "setParameters" }
func (SetPhoneNumber) Name() string { return "setPhoneNumber" }
func (CheckCode) Name() string      { return "checkCode" }
func (CheckPassword) Name() string  { return "checkPassword" }
func (LoadChats) Name() string      { return "loadChats" }
func (GetHistory) Name() string     { return "getHistory" }
func (SendMessage) Name() string    { return "sendMessage" }
func (GetMe) Name() string          { return "getMe" }
func (LogOut) Name() string         { return "logOut" }
func (Close) Name() string          { return "close" }
