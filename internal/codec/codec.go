// Package codec implements the self-describing wire format the
// replicated-log collaborator uses to ship Put/Delete mutations to an
// engine (spec §6's command codec), and an Apply helper that turns a
// decoded Command back into an engine call.
//
// Grounded on the teacher repo's pkg/storage/bson.go for the
// tag-prefixed self-describing encoding style (a leading type byte
// followed by length-prefixed fields), here reduced to the two
// mutation kinds the spec names instead of a general document format.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/bobboyms/kvengine/internal/kverrors"
)

// Tag identifies a Command's kind on the wire.
type Tag byte

const (
	TagPut    Tag = 0x01
	TagDelete Tag = 0x02
)

// Command is one decoded replicated mutation.
type Command struct {
	Tag   Tag
	Key   []byte
	Value []byte // unused for TagDelete
}

// Encode serializes cmd per spec §6:
//
//	Put:    [0x01][klen:4B BE][key][vlen:4B BE][value]
//	Delete: [0x02][klen:4B BE][key]
func Encode(cmd Command) []byte {
	switch cmd.Tag {
	case TagPut:
		buf := make([]byte, 1+4+len(cmd.Key)+4+len(cmd.Value))
		buf[0] = byte(TagPut)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(cmd.Key)))
		n := copy(buf[5:], cmd.Key)
		binary.BigEndian.PutUint32(buf[5+n:5+n+4], uint32(len(cmd.Value)))
		copy(buf[5+n+4:], cmd.Value)
		return buf
	case TagDelete:
		buf := make([]byte, 1+4+len(cmd.Key))
		buf[0] = byte(TagDelete)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(cmd.Key)))
		copy(buf[5:], cmd.Key)
		return buf
	default:
		panic(fmt.Sprintf("codec: Encode called with unknown tag %#x", cmd.Tag))
	}
}

// Decode parses a command from the front of buf. An unknown leading tag
// byte is a DecodeError, never a panic (spec §6: "an unknown tag must
// not panic; it must be surfaced to the caller").
func Decode(buf []byte) (Command, error) {
	if len(buf) < 1 {
		return Command{}, &kverrors.DecodeError{Tag: 0}
	}
	tag := Tag(buf[0])
	rest := buf[1:]

	switch tag {
	case TagPut:
		key, after, err := readField(rest)
		if err != nil {
			return Command{}, err
		}
		value, _, err := readField(after)
		if err != nil {
			return Command{}, err
		}
		return Command{Tag: TagPut, Key: key, Value: value}, nil
	case TagDelete:
		key, _, err := readField(rest)
		if err != nil {
			return Command{}, err
		}
		return Command{Tag: TagDelete, Key: key}, nil
	default:
		return Command{}, &kverrors.DecodeError{Tag: byte(tag)}
	}
}

func readField(buf []byte) (field, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, &kverrors.DecodeError{Tag: 0}
	}
	n := binary.BigEndian.Uint32(buf[:4])
	if uint64(len(buf)-4) < uint64(n) {
		return nil, nil, &kverrors.DecodeError{Tag: 0}
	}
	field = buf[4 : 4+n]
	rest = buf[4+n:]
	return field, rest, nil
}
