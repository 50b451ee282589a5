package spice

import "encoding/binary"

// readString reads a u32 length prefix followed by that many raw bytes,
// the convention spice_marshallers.c uses for every variable-length
// string field (NOTIFY's message, MIGRATE_BEGIN's host/cert_subject).
func (r *reader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalMainInit parses SPICE_MSG_MAIN_INIT.
func UnmarshalMainInit(body []byte) (MainInit, error) {
	r := newReader(body)
	sessionID, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	displayHint, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	supported, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	current, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	agentConnected, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	agentTokens, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	mmTime, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	ramHint, err := r.u32()
	if err != nil {
		return MainInit{}, err
	}
	return MainInit{
		SessionID:           sessionID,
		DisplayChannelsHint: displayHint,
		SupportedMouseModes: supported,
		CurrentMouseMode:    current,
		AgentConnected:      agentConnected != 0,
		AgentTokens:         agentTokens,
		MultiMediaTime:      mmTime,
		RamHint:             ramHint,
	}, nil
}

// UnmarshalMainChannelsList parses SPICE_MSG_MAIN_CHANNELS_LIST.
func UnmarshalMainChannelsList(body []byte) (MainChannelsList, error) {
	r := newReader(body)
	n, err := r.u32()
	if err != nil {
		return MainChannelsList{}, err
	}
	chans := make([]ChannelID, n)
	for i := range chans {
		t, err := r.u8()
		if err != nil {
			return MainChannelsList{}, err
		}
		id, err := r.u8()
		if err != nil {
			return MainChannelsList{}, err
		}
		chans[i] = ChannelID{Type: ChannelType(t), ID: id}
	}
	return MainChannelsList{Channels: chans}, nil
}

// UnmarshalMainMouseMode parses SPICE_MSG_MAIN_MOUSE_MODE.
func UnmarshalMainMouseMode(body []byte) (MainMouseMode, error) {
	r := newReader(body)
	supported, err := r.u32()
	if err != nil {
		return MainMouseMode{}, err
	}
	current, err := r.u32()
	return MainMouseMode{Supported: supported, Current: current}, err
}

// UnmarshalMainMultiMediaTime parses SPICE_MSG_MAIN_MULTI_MEDIA_TIME.
func UnmarshalMainMultiMediaTime(body []byte) (MainMultiMediaTime, error) {
	r := newReader(body)
	t, err := r.u32()
	return MainMultiMediaTime{Time: t}, err
}

// UnmarshalMainAgentTokens parses SPICE_MSG_MAIN_AGENT_TOKENS.
func UnmarshalMainAgentTokens(body []byte) (MainAgentTokens, error) {
	r := newReader(body)
	n, err := r.u32()
	return MainAgentTokens{NumTokens: n}, err
}

// UnmarshalMainName parses SPICE_MSG_MAIN_NAME.
func UnmarshalMainName(body []byte) (MainName, error) {
	r := newReader(body)
	s, err := r.string()
	return MainName{Name: s}, err
}

// UnmarshalMainUUID parses SPICE_MSG_MAIN_UUID.
func UnmarshalMainUUID(body []byte) (MainUUID, error) {
	r := newReader(body)
	b, err := r.bytes(16)
	if err != nil {
		return MainUUID{}, err
	}
	var u MainUUID
	copy(u.UUID[:], b)
	return u, nil
}

// UnmarshalMainMigrateBegin parses SPICE_MSG_MAIN_MIGRATE_BEGIN.
func UnmarshalMainMigrateBegin(body []byte) (MainMigrateBegin, error) {
	r := newReader(body)
	flags, err := r.u32()
	if err != nil {
		return MainMigrateBegin{}, err
	}
	host, err := r.string()
	if err != nil {
		return MainMigrateBegin{}, err
	}
	port, err := r.u32()
	if err != nil {
		return MainMigrateBegin{}, err
	}
	securePort, err := r.u32()
	if err != nil {
		return MainMigrateBegin{}, err
	}
	cert, err := r.string()
	if err != nil {
		return MainMigrateBegin{}, err
	}
	return MainMigrateBegin{
		Flags:       flags,
		Host:        host,
		Port:        int32(port),
		SecurePort:  int32(securePort),
		CertSubject: cert,
	}, nil
}

// UnmarshalMainMigrateSwitchHost parses SPICE_MSG_MAIN_MIGRATE_SWITCH_HOST.
func UnmarshalMainMigrateSwitchHost(body []byte) (MainMigrateSwitchHost, error) {
	r := newReader(body)
	host, err := r.string()
	if err != nil {
		return MainMigrateSwitchHost{}, err
	}
	port, err := r.u32()
	if err != nil {
		return MainMigrateSwitchHost{}, err
	}
	securePort, err := r.u32()
	if err != nil {
		return MainMigrateSwitchHost{}, err
	}
	cert, err := r.string()
	if err != nil {
		return MainMigrateSwitchHost{}, err
	}
	return MainMigrateSwitchHost{
		Host:        host,
		Port:        int32(port),
		SecurePort:  int32(securePort),
		CertSubject: cert,
	}, nil
}

// UnmarshalNotify parses SPICE_MSG_NOTIFY.
func UnmarshalNotify(body []byte) (Notify, error) {
	r := newReader(body)
	timeMS, err := r.u64()
	if err != nil {
		return Notify{}, err
	}
	severity, err := r.u32()
	if err != nil {
		return Notify{}, err
	}
	what, err := r.u32()
	if err != nil {
		return Notify{}, err
	}
	msg, err := r.string()
	if err != nil {
		return Notify{}, err
	}
	return Notify{TimeMS: timeMS, Severity: NotifySeverity(severity), What: what, Message: msg}, nil
}

// MouseModeRequest is SPICE_MSGC_MAIN_MOUSE_MODE_REQUEST: the client's
// request to switch to a given mouse mode (one of MouseModeServer/Client).
type MouseModeRequest struct {
	Mode uint32
}

func (m MouseModeRequest) Marshal() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, m.Mode)
	return buf
}

// AttachChannels is SPICE_MSGC_MAIN_ATTACH_CHANNELS: carries no body, it
// simply asks the server to start announcing its channel list.
type AttachChannels struct{}

func (AttachChannels) Marshal() []byte { return nil }

// ClientInfo is SPICE_MSGC_MAIN_CLIENT_INFO: the client's declared cache
// sizes, sent once at session start.
type ClientInfo struct {
	CacheSize uint32
}

func (c ClientInfo) Marshal() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, c.CacheSize)
	return buf
}

// AgentStart is SPICE_MSGC_MAIN_AGENT_START: grants the guest agent an
// initial token credit for AGENT_DATA flow control.
type AgentStart struct {
	NumTokens uint32
}

func (a AgentStart) Marshal() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, a.NumTokens)
	return buf
}

// AgentData is SPICE_MSGC_MAIN_AGENT_DATA / SPICE_MSG_MAIN_AGENT_DATA: an
// opaque blob relayed to/from the guest agent (clipboard, display config).
type AgentData struct {
	Data []byte
}

func (a AgentData) Marshal() []byte { return a.Data }

func UnmarshalAgentData(body []byte) (AgentData, error) {
	return AgentData{Data: append([]byte(nil), body...)}, nil
}

// MigrateConnected is SPICE_MSGC_MAIN_MIGRATE_CONNECTED: reported once
// every migration-target channel has linked successfully.
type MigrateConnected struct{}

func (MigrateConnected) Marshal() []byte { return nil }

// MigrateConnectFailed is SPICE_MSGC_MAIN_MIGRATE_CONNECT_FAILED: the
// converse, sent when the target could not be reached.
type MigrateConnectFailed struct{}

func (MigrateConnectFailed) Marshal() []byte { return nil }
