package status

import (
	"fmt"
	"sort"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"
)

// Event kinds.
const (
	KindOnline   = "online"
	KindShutdown = "shutdown"
	KindStats    = "stats"
	KindOffline  = "offline"
)

// Event is a runtime notification published to the broker.
type Event struct {
	Kind   string
	Reason string
	Clock  uint32
	Time   time.Time
	Fields map[string]interface{}
}

func toValue(v interface{}) (*structpb.Value, error) {
	switch val := v.(type) {
	case string:
		return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: val}}, nil
	case bool:
		return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(val)}}, nil
	case uint32:
		return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(val)}}, nil
	case uint64:
		return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(val)}}, nil
	case float64:
		return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: val}}, nil
	}
	return nil, fmt.Errorf("unsupported field value %T", v)
}

// Struct converts the event into a protobuf Struct.
func (e *Event) Struct() (*structpb.Struct, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value)}
	ts, err := ptypes.TimestampProto(e.Time)
	if err != nil {
		return nil, err
	}
	s.Fields["kind"], _ = toValue(e.Kind)
	s.Fields["clock"], _ = toValue(e.Clock)
	s.Fields["time"], _ = toValue(ptypes.TimestampString(ts))
	if e.Reason != "" {
		s.Fields["reason"], _ = toValue(e.Reason)
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val, err := toValue(e.Fields[key])
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", key, err)
		}
		s.Fields[key] = val
	}
	return s, nil
}

// Marshal encodes the event as a serialized protobuf Struct.
func (e *Event) Marshal() ([]byte, error) {
	s, err := e.Struct()
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(payload []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
