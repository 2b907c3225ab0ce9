package errs

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCodeAndMsg(t *testing.T) {
	require.Equal(t, int32(0), Code(nil))
	require.Equal(t, Success, Msg(nil))
	require.Equal(t, int32(CodeDuplicateStream), Code(ErrDuplicateStream))
	require.Equal(t, int32(CodeStreamNotExist), Code(Wrapf(ErrStreamNotExist, "name: %s", "live")))
	require.Equal(t, int32(CodeUnknown), Code(errors.New("boom")))
	require.Equal(t, "unknown error: boom", Msg(errors.New("boom")))
	require.Equal(t, int32(3003), Code(NetworkError("rtmp", "write", 7, nil)))
}

func TestRecoverableFlags(t *testing.T) {
	cases := []struct {
		err         *StreamError
		category    Category
		recoverable bool
	}{
		{ConnectionFailed("rtmp", "dial", nil), CategoryTransport, true},
		{AuthenticationFailed("rtmp", "denied"), CategoryTransport, false},
		{NetworkError("rtmp", "write", -1, nil), CategoryTransport, true},
		{TimeoutError("rtmp", "handshake", 0), CategoryTransport, true},
		{ProtocolError("rtmp", "bad chunk", nil), CategoryTransport, false},
		{EncodingError(KindHardwareEncoderFailed, "codec"), CategoryEncoding, true},
		{EncodingError(KindSoftwareEncoderFailed, "codec"), CategoryEncoding, false},
		{EncodingError(KindSettingsInvalid, "profile"), CategoryEncoding, false},
		{EncodingError(KindBufferOverflow, "queue"), CategoryEncoding, true},
		{EncodingError(KindFormatNotSupported, "vp8"), CategoryEncoding, false},
		{ConfigurationError(KindInvalidParameter, "url"), CategoryConfiguration, false},
		{ConfigurationError(KindUnsupportedConfiguration, "aes"), CategoryConfiguration, false},
		{ConfigurationError(KindConflictingSettings, "x"), CategoryConfiguration, false},
		{SystemError(KindPermissionDenied, "camera", nil), CategorySystem, false},
		{SystemError(KindResourceUnavailable, "mic", nil), CategorySystem, true},
		{SystemError(KindOutOfMemory, "", nil), CategorySystem, true},
		{InvalidState("idle -> streaming"), CategorySystem, false},
		{Unknown("", nil), CategorySystem, false},
	}
	for _, c := range cases {
		require.Equal(t, c.category, c.err.Category(), c.err.Error())
		require.Equal(t, c.recoverable, c.err.Recoverable, c.err.Error())
	}
}

func TestWrongCategoryFallsBack(t *testing.T) {
	require.Equal(t, KindSoftwareEncoderFailed, EncodingError(KindNetworkError, "x").Kind)
	require.Equal(t, KindInvalidParameter, ConfigurationError(KindTimeout, "x").Kind)
	require.Equal(t, KindUnknown, SystemError(KindProtocolError, "x", nil).Kind)
}

func TestNetworkErrorMessage(t *testing.T) {
	e := NetworkError("rtmp", "send failed", 42, io.EOF)
	require.Equal(t, "[rtmp] network error: send failed (code=42): EOF", e.Error())
	require.True(t, errors.Is(e, io.EOF))
}

func TestFrom(t *testing.T) {
	require.Nil(t, From(nil))

	orig := AuthenticationFailed("rtmp", "denied")
	require.Equal(t, orig, From(errors.Wrap(orig, "connect")))

	require.Equal(t, KindTimeout, From(context.DeadlineExceeded).Kind)
	require.Equal(t, KindNetworkError, From(io.ErrUnexpectedEOF).Kind)
	require.Equal(t, KindUnknown, From(errors.New("boom")).Kind)

	require.True(t, IsRecoverable(errors.Wrap(io.EOF, "read")))
	require.False(t, IsRecoverable(nil))
	require.False(t, IsRecoverable(ProtocolError("rtmp", "x", nil)))
}
