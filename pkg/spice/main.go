package spice

// MouseMode bits, negotiated on the main channel and arbitrated in
// internal/inputs.
const (
	MouseModeServer uint32 = 1 << iota
	MouseModeClient
)

// MainInit is SPICE_MSG_MAIN_INIT: the server's session bootstrap, carrying
// the session id, channel caches/window sizes, and the agent's initial
// presence and mouse-mode state.
type MainInit struct {
	SessionID             uint32
	DisplayChannelsHint   uint32
	SupportedMouseModes   uint32
	CurrentMouseMode      uint32
	AgentConnected        bool
	AgentTokens           uint32
	MultiMediaTime        uint32
	RamHint               uint32
}

// ChannelID identifies one channel endpoint within MainChannelsList.
type ChannelID struct {
	Type ChannelType
	ID   uint8
}

// MainChannelsList is SPICE_MSG_MAIN_CHANNELS_LIST: every channel the
// server is willing to open for this session.
type MainChannelsList struct {
	Channels []ChannelID
}

// MainMouseMode is SPICE_MSG_MAIN_MOUSE_MODE: a mode change notification.
type MainMouseMode struct {
	Supported uint32
	Current   uint32
}

// MainMultiMediaTime synchronizes the client's playback/video clock to the
// server's mm-time domain (wrapping uint32 milliseconds).
type MainMultiMediaTime struct {
	Time uint32
}

// MainAgentTokens grants the client credits to send MsgcMainAgentData.
type MainAgentTokens struct {
	NumTokens uint32
}

// MainName/MainUUID are informational, sent once at session start.
type MainName struct {
	Name string
}

type MainUUID struct {
	UUID [16]byte
}

// MigrateFlags on MsgMainMigrateBegin.
const (
	MigrateFlagNeedFlush uint32 = 1 << iota
	MigrateFlagNeedDataTransfer
)

// MainMigrateBegin starts a live migration to a destination host.
type MainMigrateBegin struct {
	Flags       uint32
	Host        string
	Port        int32
	SecurePort  int32
	CertSubject string
}

// MainMigrateSwitchHost redirects the client to connect elsewhere without a
// migration handoff.
type MainMigrateSwitchHost struct {
	Host        string
	Port        int32
	SecurePort  int32
	CertSubject string
}

// NotifySeverity/NotifyVisibility on MsgNotify.
type NotifySeverity uint32

const (
	NotifyInfo NotifySeverity = iota
	NotifyWarn
	NotifyError
)

// Notify is SPICE_MSG_NOTIFY: a human-readable diagnostic from the server.
type Notify struct {
	TimeMS   uint64
	Severity NotifySeverity
	What     uint32
	Message  string
}
