// Package wire implements the binary framing for every message the
// membership and KV protocols exchange: a one-byte type discriminant
// followed by the sender address and type-specific fields in
// declaration order. Digest arrays are serialized as a length-prefixed
// run of fixed-size entries inline in the frame, so a frame owns its
// whole payload and can cross queue boundaries safely.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/mcastellin/distkv/internal/address"
)

// Type is the one-byte message type discriminant.
type Type byte

const (
	JoinReq Type = iota + 1
	JoinRep
	Ping
	Create
	Read
	Update
	Delete
	Reply
	ReadReply
)

func (t Type) String() string {
	switch t {
	case JoinReq:
		return "JOINREQ"
	case JoinRep:
		return "JOINREP"
	case Ping:
		return "PING"
	case Create:
		return "CREATE"
	case Read:
		return "READ"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Reply:
		return "REPLY"
	case ReadReply:
		return "READREPLY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// StabilizationTxID marks a CREATE sent by the stabilization protocol:
// the replica applies it silently, no log entry and no reply.
const StabilizationTxID int32 = -1

// Digest is a compact (id, port, heartbeat) triple piggybacked on PING
// and JOINREP frames. It carries no timestamp: last-seen times are
// always local to the receiver.
type Digest struct {
	ID        uint32
	Port      uint16
	Heartbeat uint64
}

// Message is the tagged union exchanged between peers. Not every field
// applies to every Type; see the per-type cases in Encode.
type Message struct {
	Type Type
	From address.Address

	// Membership payloads.
	SenderHeartbeat uint64
	Digests         []Digest

	// KV payloads.
	TransID int32
	Key     string
	Value   string
	Success bool
}

// IsKV reports whether this is one of the KV CRUD/reply message types.
func (m Message) IsKV() bool {
	switch m.Type {
	case Create, Read, Update, Delete, Reply, ReadReply:
		return true
	default:
		return false
	}
}

// IsStabilization reports whether this CREATE originated from the
// stabilization protocol rather than a client-coordinated transaction.
func (m Message) IsStabilization() bool {
	return m.Type == Create && m.TransID == StabilizationTxID
}

// Encode serializes m to its wire form.
func (m Message) Encode() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(m.Type))
	addrBuf := make([]byte, address.Size)
	m.From.Encode(addrBuf)
	buf = append(buf, addrBuf...)

	switch m.Type {
	case JoinReq:
		// sender address only.
	case JoinRep:
		buf = appendDigests(buf, m.Digests)
	case Ping:
		buf = appendUint64(buf, m.SenderHeartbeat)
		buf = appendDigests(buf, m.Digests)
	case Create, Update:
		buf = appendInt32(buf, m.TransID)
		buf = appendString(buf, m.Key)
		buf = appendString(buf, m.Value)
	case Read, Delete:
		buf = appendInt32(buf, m.TransID)
		buf = appendString(buf, m.Key)
	case Reply:
		buf = appendInt32(buf, m.TransID)
		buf = appendBool(buf, m.Success)
	case ReadReply:
		buf = appendInt32(buf, m.TransID)
		buf = appendBool(buf, m.Success)
		buf = appendString(buf, m.Value)
	}
	return buf
}

// Decode parses a Message from its wire form produced by Encode.
func Decode(buf []byte) (Message, error) {
	if len(buf) < 1+address.Size {
		return Message{}, fmt.Errorf("wire: frame too short (%d bytes)", len(buf))
	}
	m := Message{Type: Type(buf[0])}
	m.From = address.Decode(buf[1 : 1+address.Size])
	rest := buf[1+address.Size:]

	var err error
	switch m.Type {
	case JoinReq:
	case JoinRep:
		m.Digests, rest, err = readDigests(rest)
	case Ping:
		m.SenderHeartbeat, rest, err = readUint64(rest)
		if err == nil {
			m.Digests, rest, err = readDigests(rest)
		}
	case Create, Update:
		m.TransID, rest, err = readInt32(rest)
		if err == nil {
			m.Key, rest, err = readString(rest)
		}
		if err == nil {
			m.Value, rest, err = readString(rest)
		}
	case Read, Delete:
		m.TransID, rest, err = readInt32(rest)
		if err == nil {
			m.Key, rest, err = readString(rest)
		}
	case Reply:
		m.TransID, rest, err = readInt32(rest)
		if err == nil {
			m.Success, rest, err = readBool(rest)
		}
	case ReadReply:
		m.TransID, rest, err = readInt32(rest)
		if err == nil {
			m.Success, rest, err = readBool(rest)
		}
		if err == nil {
			m.Value, rest, err = readString(rest)
		}
	default:
		return Message{}, fmt.Errorf("wire: unknown message type %d", buf[0])
	}
	if err != nil {
		return Message{}, err
	}
	_ = rest
	return m, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendString(buf []byte, s string) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func appendDigests(buf []byte, digests []Digest) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(len(digests)))
	buf = append(buf, tmp[:]...)
	for _, d := range digests {
		var idb [4]byte
		binary.LittleEndian.PutUint32(idb[:], d.ID)
		buf = append(buf, idb[:]...)
		var portb [2]byte
		binary.LittleEndian.PutUint16(portb[:], d.Port)
		buf = append(buf, portb[:]...)
		var hbb [8]byte
		binary.LittleEndian.PutUint64(hbb[:], d.Heartbeat)
		buf = append(buf, hbb[:]...)
	}
	return buf
}

func readUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("wire: short uint64")
	}
	return binary.LittleEndian.Uint64(buf[:8]), buf[8:], nil
}

func readInt32(buf []byte) (int32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("wire: short int32")
	}
	return int32(binary.LittleEndian.Uint32(buf[:4])), buf[4:], nil
}

func readBool(buf []byte) (bool, []byte, error) {
	if len(buf) < 1 {
		return false, nil, fmt.Errorf("wire: short bool")
	}
	return buf[0] != 0, buf[1:], nil
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, fmt.Errorf("wire: short string length")
	}
	n := int(binary.LittleEndian.Uint16(buf[:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, fmt.Errorf("wire: short string body")
	}
	return string(buf[:n]), buf[n:], nil
}

func readDigests(buf []byte) ([]Digest, []byte, error) {
	if len(buf) < 2 {
		return nil, nil, fmt.Errorf("wire: short digest count")
	}
	n := int(binary.LittleEndian.Uint16(buf[:2]))
	buf = buf[2:]
	digests := make([]Digest, 0, n)
	for i := 0; i < n; i++ {
		if len(buf) < 14 {
			return nil, nil, fmt.Errorf("wire: short digest entry")
		}
		id := binary.LittleEndian.Uint32(buf[:4])
		port := binary.LittleEndian.Uint16(buf[4:6])
		hb := binary.LittleEndian.Uint64(buf[6:14])
		digests = append(digests, Digest{ID: id, Port: port, Heartbeat: hb})
		buf = buf[14:]
	}
	return digests, buf, nil
}
