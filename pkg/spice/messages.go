package spice

// Common message types (MessageHeader.Type), shared by every channel.
// Channel-specific message types start at 101 on each channel, mirroring
// the layering of the real SPICE wire protocol (red_common.h / red_*.h).
const (
	MsgMigrate uint16 = iota + 1
	MsgMigrateData
	MsgSetAck
	MsgPing
	MsgWaitForChannels
	MsgDisconnecting
	MsgNotify
	MsgList // capability renegotiation, rarely used
)

// Common client -> server message types, paired with the server -> client
// ones above (MsgPing is answered with MsgcPong, MsgSetAck with MsgcAck).
const (
	MsgcAckSync uint16 = iota + 1
	MsgcPong
	MsgcMigrateFlushMark
	MsgcMigrateData
	MsgcDisconnecting
	MsgcAck
)

// Main-channel message types.
const (
	MsgcMainClientInfo uint16 = iota + 101 // client -> server
	MsgcMainAttachChannels
	MsgcMainMigrateConnected
	MsgcMainMigrateConnectFailed
	MsgcMainMouseModeRequest
	MsgcMainAgentStart
	MsgcMainAgentData
	MsgcMainAgentTokens
)

const (
	MsgMainInit uint16 = iota + 101 // server -> client
	MsgMainChannelsList
	MsgMainMouseMode
	MsgMainMultiMediaTime
	MsgMainAgentConnected
	MsgMainAgentDisconnected
	MsgMainAgentData
	MsgMainAgentTokens
	MsgMainMigrateBegin
	MsgMainMigrateCancel
	MsgMainMigrateSwitchHost
	MsgMainName
	MsgMainUUID
)

// Display-channel message types (server -> client unless noted).
const (
	MsgDisplayMode uint16 = iota + 101
	MsgDisplayMark
	MsgDisplayReset
	MsgDisplayCopyBits
	MsgDisplayInvalList
	MsgDisplayInvalAllPixmaps
	MsgDisplayInvalPalette
	MsgDisplayInvalAllPalettes
	MsgDisplayDrawFill
	MsgDisplayDrawOpaque
	MsgDisplayDrawCopy
	MsgDisplayDrawBlend
	MsgDisplayDrawBlackness
	MsgDisplayDrawWhiteness
	MsgDisplayDrawInvers
	MsgDisplayDrawRop3
	MsgDisplayDrawStroke
	MsgDisplayDrawText
	MsgDisplayDrawTransparent
	MsgDisplayDrawAlphaBlend
	MsgDisplaySurfaceCreate
	MsgDisplaySurfaceDestroy
	MsgDisplayStreamCreate
	MsgDisplayStreamData
	MsgDisplayStreamClip
	MsgDisplayStreamDestroy
	MsgDisplayStreamDestroyAll
	MsgDisplayMonitorsConfig
)

// Cursor-channel message types (server -> client).
const (
	MsgCursorInit uint16 = iota + 101
	MsgCursorReset
	MsgCursorSet
	MsgCursorMove
	MsgCursorHide
	MsgCursorTrail
	MsgCursorInvalOne
	MsgCursorInvalAll
)

// Inputs-channel message types.
const (
	MsgcInputsKeyDown uint16 = iota + 101 // client -> server
	MsgcInputsKeyUp
	MsgcInputsKeyModifiers
	MsgcInputsMouseMotion
	MsgcInputsMousePosition
	MsgcInputsMousePress
	MsgcInputsMouseRelease
)

const (
	MsgInputsInit uint16 = iota + 101 // server -> client
	MsgInputsKeyModifiers
	MsgInputsMouseMotionAck
)
