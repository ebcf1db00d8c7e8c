// Package codec implements the frame format shared by the server and its
// clients.
//
//	[0:4)  body length, uint32 big-endian
//	[4:8)  checksum, uint32 big-endian, sum of the body bytes mod 2^32
//	[8:..) body, the JSON envelope of one chat.Message
//
// The checksum only catches accidental corruption such as truncation or bit
// errors. Tamper resistance is the job of the TLS layer underneath.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"secure-chat/domain/chat"
	"secure-chat/errors"
)

const (
	HeaderSize = 8
	// MaxBodyLength bounds what a peer can make us buffer for a single frame.
	MaxBodyLength = 10_000_000
)

type Header struct {
	BodyLength uint32
	Checksum   uint32
}

// ParseHeader reads the first HeaderSize bytes of b. When the declared length
// is above MaxBodyLength the header is returned together with
// errors.ErrFrameTooLarge.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", errors.ErrShortFrame, len(b))
	}
	h := Header{
		BodyLength: binary.BigEndian.Uint32(b[0:4]),
		Checksum:   binary.BigEndian.Uint32(b[4:8]),
	}
	if h.BodyLength > MaxBodyLength {
		return h, fmt.Errorf("%w: %d > %d", errors.ErrFrameTooLarge, h.BodyLength, MaxBodyLength)
	}
	return h, nil
}

// Checksum is the unsigned sum of every byte, wrapping at 2^32.
func Checksum(body []byte) uint32 {
	var sum uint32
	for _, b := range body {
		sum += uint32(b)
	}
	return sum
}

// Encode serializes m into a complete frame.
func Encode(m chat.Message) ([]byte, error) {
	body, err := encodeBody(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodyLength {
		return nil, fmt.Errorf("%w: %d > %d", errors.ErrFrameTooLarge, len(body), MaxBodyLength)
	}
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], Checksum(body))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// Decode parses one complete frame. Any failure leaves the stream usable
// except errors.ErrFrameTooLarge.
func Decode(frame []byte) (chat.Message, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return chat.Message{}, err
	}
	body := frame[HeaderSize:]
	if uint32(len(body)) != h.BodyLength {
		return chat.Message{}, fmt.Errorf("%w: header says %d, got %d",
			errors.ErrLengthMismatch, h.BodyLength, len(body))
	}
	if sum := Checksum(body); sum != h.Checksum {
		return chat.Message{}, fmt.Errorf("%w: header says %d, computed %d",
			errors.ErrChecksumMismatch, h.Checksum, sum)
	}
	return decodeBody(body)
}

// ReadFrame reads the next frame from r without decoding it.
// It returns io.EOF when the stream ends cleanly before a new frame,
// io.ErrUnexpectedEOF when it ends inside one, and errors.ErrFrameTooLarge
// before allocating anything for an oversize body.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	h, err := ParseHeader(header)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, HeaderSize+int(h.BodyLength))
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// WriteFrame encodes m and writes the whole frame to w.
func WriteFrame(w io.Writer, m chat.Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
