package rtmp

const (
	msgtypeidSetChunkSize     = 1
	msgtypeidAbort            = 2
	msgtypeidAck              = 3
	msgtypeidUserControl      = 4
	msgtypeidWindowAckSize    = 5
	msgtypeidSetPeerBandwidth = 6
	msgtypeidAudioMsg         = 8
	msgtypeidVideoMsg         = 9
	msgtypeidDataMsgAMF3      = 15
	msgtypeidCommandMsgAMF3   = 17
	msgtypeidDataMsgAMF0      = 18
	msgtypeidCommandMsgAMF0   = 20
)

const (
	eventtypeStreamBegin     = 0
	eventtypeStreamEOF       = 1
	eventtypeSetBufferLength = 3
	eventtypePingRequest     = 6
	eventtypePingResponse    = 7
)

// chunk stream id
const (
	csidControl = 2
	csidCommand = 3
	csidAudio   = 6
	csidVideo   = 7
	csidPublish = 8
)

const (
	chunkHeaderLength = 12
	extTimestampLen   = 4
	timestampMax      = 0xFFFFFF
	handshakeSize     = 1536
	defaultChunkSize  = 128
	maxChunkSize      = 0xFFFFFF
)

const (
	CodeConnectSuccess          = "NetConnection.Connect.Success"
	CodeConnectRejected         = "NetConnection.Connect.Rejected"
	CodePublishStart            = "NetStream.Publish.Start"
	CodePublishBadName          = "NetStream.Publish.BadName"
	CodePublishStreamDuplicated = "NetStream.Publish.StreamDuplicated"
	CodeUnpublishSuccess        = "NetStream.Unpublish.Success"
)
