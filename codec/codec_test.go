package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"secure-chat/domain/chat"
	"secure-chat/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func frameFromBody(body string) []byte {
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], Checksum([]byte(body)))
	copy(frame[HeaderSize:], body)
	return frame
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	messages := map[string]chat.Message{
		"login":              chat.NewLoginRequest("alice", "s3cret"),
		"login empty secret": chat.NewLoginRequest("alice", ""),
		"login response":     chat.NewLoginResponse("alice", "eyJhbGciOi.x.y"),
		"text":               chat.NewText("lobby", "hello world"),
		"text empty content": chat.NewText("lobby", ""),
		"text with sender":   chat.NewText("lobby", "hi").WithSender("carol"),
		"private":            chat.NewPrivate("bob", "psst"),
		"join":               chat.NewJoinRoom("lobby"),
		"user list":          chat.NewUserListRequest(chat.None),
		"user list in room":  chat.NewUserListRequest(chat.Some("")),
		"error":              chat.NewError(chat.ReasonUserOffline),
		"delimiters":         chat.NewText(`{"room":null}`, `a","content":null,"x":"\`),
		"null marker text":   chat.NewPrivate("null", "null"),
		"unicode":            chat.NewText("salon", "un été à Paris 🚀\n\ttab"),
		"control characters": chat.NewText("lobby", "\x00\x01\x1f"),
		"all fields": chat.NewMessage(chat.Private,
			chat.Some("a"), chat.Some("b"), chat.Some("c"), chat.Some("d")),
	}

	for name, msg := range messages {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			frame, err := Encode(msg)
			req.NoError(err)

			decoded, err := Decode(frame)
			req.NoError(err)
			req.Equal(msg, decoded)
		})
	}
}

func TestEncode_AbsentIsNull(t *testing.T) {
	req := require.New(t)
	msg := chat.NewUserListRequest(chat.None)
	msg.Timestamp = 1700000000000

	frame, err := Encode(msg)
	req.NoError(err)

	req.JSONEq(`{"type":"USER_LIST_REQUEST","version":1,"timestamp":1700000000000,
		"sender":null,"recipient":null,"room":null,"content":null}`, string(frame[HeaderSize:]))
}

func TestEncode_Header(t *testing.T) {
	req := require.New(t)

	frame, err := Encode(chat.NewText("lobby", "hi"))
	req.NoError(err)

	body := frame[HeaderSize:]
	h, err := ParseHeader(frame)
	req.NoError(err)
	req.Equal(uint32(len(body)), h.BodyLength)
	req.Equal(Checksum(body), h.Checksum)
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	req := require.New(t)

	_, err := Encode(chat.NewText("lobby", string([]byte{0xff, 0xfe})))

	req.ErrorIs(err, errors.ErrMalformedBody)
}

func TestDecode_AnySingleByteFlipFailsChecksum(t *testing.T) {
	frame, err := Encode(chat.NewPrivate("bob", "meet at noon"))
	require.NoError(t, err)

	for i := HeaderSize; i < len(frame); i++ {
		corrupted := bytes.Clone(frame)
		corrupted[i] ^= 0x01

		_, err := Decode(corrupted)
		require.ErrorIs(t, err, errors.ErrChecksumMismatch, "byte %d", i)
	}
}

func TestDecode_LengthMismatch(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(chat.NewText("lobby", "hi"))
	req.NoError(err)

	// Truncated body
	_, err = Decode(frame[:len(frame)-1])
	req.ErrorIs(err, errors.ErrLengthMismatch)

	// Extra byte after the body
	_, err = Decode(append(bytes.Clone(frame), '!'))
	req.ErrorIs(err, errors.ErrLengthMismatch)

	// Not even a header
	_, err = Decode(frame[:3])
	req.ErrorIs(err, errors.ErrShortFrame)
}

func TestDecode_OversizeLength(t *testing.T) {
	req := require.New(t)
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], MaxBodyLength+1)

	_, err := Decode(header)

	req.ErrorIs(err, errors.ErrFrameTooLarge)
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"unknown kind", `{"type":"SHOUT","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"x","content":"y"}`, errors.ErrUnknownKind},
		{"lower case kind", `{"type":"text_message","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"x","content":"y"}`, errors.ErrUnknownKind},
		{"missing room", `{"type":"TEXT_MESSAGE","version":1,"timestamp":1,"sender":null,"recipient":null,"room":null,"content":"y"}`, errors.ErrMissingField},
		{"missing text keys", `{"type":"PRIVATE_MESSAGE","version":1,"timestamp":1,"content":"y"}`, errors.ErrMalformedBody},
		{"missing version and timestamp", `{"type":"TEXT_MESSAGE","sender":null,"recipient":null,"room":"lobby","content":"hi"}`, errors.ErrMalformedBody},
		{"only room and content", `{"type":"TEXT_MESSAGE","room":"lobby","content":"hi"}`, errors.ErrMalformedBody},
		{"upper case keys", `{"TYPE":"TEXT_MESSAGE","version":1,"timestamp":1,"sender":null,"recipient":null,"ROOM":"lobby","content":"hi"}`, errors.ErrMalformedBody},
		{"duplicate type", `{"type":"ERROR_RESPONSE","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"lobby","content":"hi","type":"TEXT_MESSAGE"}`, errors.ErrMalformedBody},
		{"duplicate text key", `{"type":"TEXT_MESSAGE","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"lobby","content":"hi","content":"again"}`, errors.ErrMalformedBody},
		{"null version", `{"type":"TEXT_MESSAGE","version":null,"timestamp":1,"sender":null,"recipient":null,"room":"lobby","content":"hi"}`, errors.ErrMalformedBody},
		{"null type", `{"type":null,"version":1,"timestamp":1,"sender":null,"recipient":null,"room":"lobby","content":"hi"}`, errors.ErrMalformedBody},
		{"unknown key", `{"type":"JOIN_ROOM_REQUEST","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"x","content":null,"admin":true}`, errors.ErrMalformedBody},
		{"trailing data", `{"type":"JOIN_ROOM_REQUEST","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"x","content":null} {}`, errors.ErrMalformedBody},
		{"not an object", `["TEXT_MESSAGE"]`, errors.ErrMalformedBody},
		{"bad escape", `{"type":"JOIN_ROOM_REQUEST","version":1,"timestamp":1,"sender":null,"recipient":null,"room":"\q","content":null}`, errors.ErrMalformedBody},
		{"wrong field type", `{"type":"JOIN_ROOM_REQUEST","version":"1","timestamp":1,"sender":null,"recipient":null,"room":"x","content":null}`, errors.ErrMalformedBody},
		{"empty body", ``, errors.ErrMalformedBody},
		{"invalid utf8", "{\"type\":\"JOIN_ROOM_REQUEST\",\"room\":\"\xff\"}", errors.ErrMalformedBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(frameFromBody(tt.body))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChecksum_Wraps(t *testing.T) {
	req := require.New(t)

	req.Equal(uint32(0), Checksum(nil))
	req.Equal(uint32(255*3), Checksum([]byte{0xff, 0xff, 0xff}))
	req.Equal(uint32('a'+'b'), Checksum([]byte("ab")))
}

// countingReader fails the test if more than limit bytes are requested.
type countingReader struct {
	r     io.Reader
	read  int
	limit int
	t     *testing.T
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	if c.read > c.limit {
		c.t.Fatalf("read %d bytes, expected at most %d", c.read, c.limit)
	}
	return n, err
}

func TestReadFrame_OversizeStopsAfterHeader(t *testing.T) {
	req := require.New(t)
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], MaxBodyLength+1)
	stream := io.MultiReader(bytes.NewReader(header), strings.NewReader(strings.Repeat("x", 64)))
	reader := &countingReader{r: stream, limit: HeaderSize, t: t}

	_, err := ReadFrame(reader)

	req.ErrorIs(err, errors.ErrFrameTooLarge)
	req.Equal(HeaderSize, reader.read)
}

func TestReadFrame_Stream(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	first := chat.NewText("lobby", "one")
	second := chat.NewPrivate("bob", "two")
	req.NoError(WriteFrame(&buf, first))
	req.NoError(WriteFrame(&buf, second))

	for _, want := range []chat.Message{first, second} {
		frame, err := ReadFrame(&buf)
		req.NoError(err)
		got, err := Decode(frame)
		req.NoError(err)
		req.Equal(want, got)
	}

	// Clean end of stream between frames
	_, err := ReadFrame(&buf)
	req.ErrorIs(err, io.EOF)
}

func TestReadFrame_TruncatedStream(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(chat.NewText("lobby", "hello"))
	req.NoError(err)

	// Inside the header
	_, err = ReadFrame(bytes.NewReader(frame[:5]))
	req.ErrorIs(err, io.ErrUnexpectedEOF)

	// Inside the body
	_, err = ReadFrame(bytes.NewReader(frame[:HeaderSize+2]))
	req.ErrorIs(err, io.ErrUnexpectedEOF)

	// Header only, body never arrives
	_, err = ReadFrame(bytes.NewReader(frame[:HeaderSize]))
	req.ErrorIs(err, io.ErrUnexpectedEOF)
}

func TestDecode_KeyOrderIsFree(t *testing.T) {
	req := require.New(t)
	body := `{"content":"hi","room":"lobby","recipient":null,"sender":null,"timestamp":7,"version":1,"type":"TEXT_MESSAGE"}`

	msg, err := Decode(frameFromBody(body))

	req.NoError(err)
	req.Equal(chat.Text, msg.Kind)
	req.Equal(int64(7), msg.Timestamp)
	req.Equal(chat.Some("lobby"), msg.Room)
	req.Equal(chat.None, msg.Sender)
}
