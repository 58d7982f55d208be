package command

import (
	"fmt"
	"strings"
)

// ParamType is the wire type of a message parameter.
type ParamType int

// Parameter types.
const (
	PTUint32 ParamType = iota
	PTInt32
	PTUint16
	PTInt16
	PTByte
	PTString
	PTBuffer
)

// Param describes one message parameter.
type Param struct {
	Name string
	Type ParamType
}

// Message describes a command or response.
type Message struct {
	ID     uint32
	Name   string
	Params []Param
}

var formats = map[ParamType]string{
	PTUint32: "%u",
	PTInt32:  "%i",
	PTUint16: "%hu",
	PTInt16:  "%hi",
	PTByte:   "%c",
	PTString: "%s",
	PTBuffer: "%*s",
}

// Format returns the printf style format of the message.
func (m *Message) Format() string {
	parts := []string{m.Name}
	for _, p := range m.Params {
		parts = append(parts, p.Name+"="+formats[p.Type])
	}
	return strings.Join(parts, " ")
}

// Value is a decoded parameter.
type Value struct {
	U uint32
	B []byte
}

// Args are decoded parameters in declaration order.
type Args []Value

// Uint returns parameter i as an unsigned integer.
func (a Args) Uint(i int) uint32 {
	return a[i].U
}

// Int returns parameter i as a signed integer.
func (a Args) Int(i int) int32 {
	return int32(a[i].U)
}

// Bytes returns parameter i as a buffer.
func (a Args) Bytes(i int) []byte {
	return a[i].B
}

// AppendArgs encodes args according to the message parameters.
func (m *Message) AppendArgs(dst []byte, args ...interface{}) ([]byte, error) {
	if len(args) != len(m.Params) {
		return dst, fmt.Errorf("%s: expect %d args, got %d", m.Name, len(m.Params), len(args))
	}
	dst = AppendInt(dst, m.ID)
	for n, p := range m.Params {
		switch p.Type {
		case PTString, PTBuffer:
			var b []byte
			switch v := args[n].(type) {
			case []byte:
				b = v
			case string:
				b = []byte(v)
			default:
				return dst, &ParamError{Message: m.Name, Param: p.Name, Value: args[n]}
			}
			if len(b) > MessagePayloadMax {
				return dst, ErrTooLarge
			}
			dst = append(dst, byte(len(b)))
			dst = append(dst, b...)
		default:
			v, ok := toUint32(args[n])
			if !ok {
				return dst, &ParamError{Message: m.Name, Param: p.Name, Value: args[n]}
			}
			dst = AppendInt(dst, v)
		}
	}
	return dst, nil
}

func toUint32(v interface{}) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case int32:
		return uint32(n), true
	case uint16:
		return uint32(n), true
	case int16:
		return uint32(n), true
	case uint8:
		return uint32(n), true
	case int8:
		return uint32(n), true
	case int:
		return uint32(n), true
	case uint:
		return uint32(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ParseArgs decodes the parameters of m from p and returns the rest.
func (m *Message) ParseArgs(p []byte) (Args, []byte, error) {
	args := make(Args, len(m.Params))
	for n, param := range m.Params {
		switch param.Type {
		case PTString, PTBuffer:
			if len(p) == 0 {
				return nil, p, ErrTruncated
			}
			l := int(p[0])
			if len(p) < l+1 {
				return nil, p, ErrTruncated
			}
			args[n].B, p = p[1:l+1], p[l+1:]
			args[n].U = uint32(l)
		default:
			v, rest, err := ParseInt(p)
			if err != nil {
				return nil, rest, err
			}
			switch param.Type {
			case PTUint16:
				v = uint32(uint16(v))
			case PTInt16:
				v = uint32(int32(int16(v)))
			case PTByte:
				v = uint32(uint8(v))
			}
			args[n].U, p = v, rest
		}
	}
	return args, p, nil
}

// Dictionary maps message ids to messages.
type Dictionary struct {
	byID   map[uint32]*Message
	byName map[string]*Message
}

// NewDictionary creates a Dictionary with messages.
func NewDictionary(msgs ...*Message) *Dictionary {
	d := &Dictionary{
		byID:   make(map[uint32]*Message),
		byName: make(map[string]*Message),
	}
	for _, m := range msgs {
		d.Add(m)
	}
	return d
}

// Add adds a message, panicking on duplicate ids.
func (d *Dictionary) Add(m *Message) {
	if _, exist := d.byID[m.ID]; exist {
		panic(fmt.Sprintf("duplicated message id %d (%s)", m.ID, m.Name))
	}
	d.byID[m.ID] = m
	d.byName[m.Name] = m
}

// Lookup finds a message by id.
func (d *Dictionary) Lookup(id uint32) *Message {
	return d.byID[id]
}

// ByName finds a message by name.
func (d *Dictionary) ByName(name string) *Message {
	return d.byName[name]
}

// Decoded is one message decoded from a payload.
type Decoded struct {
	Message *Message
	Args    Args
}

// Decode decodes every message in a block payload.
func (d *Dictionary) Decode(payload []byte) ([]Decoded, error) {
	var out []Decoded
	for len(payload) > 0 {
		id, rest, err := ParseInt(payload)
		if err != nil {
			return out, err
		}
		m := d.byID[id]
		if m == nil {
			return out, &UnknownMessageError{ID: id}
		}
		args, rest, err := m.ParseArgs(rest)
		if err != nil {
			return out, err
		}
		out, payload = append(out, Decoded{Message: m, Args: args}), rest
	}
	return out, nil
}
