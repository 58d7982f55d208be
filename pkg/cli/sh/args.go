package sh

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/hostmcu/pkg/command"
)

// ParseArgs converts shell arguments into values for m. Integers accept
// any strconv base prefix, buffers are hex strings.
func ParseArgs(m *command.Message, args []string) ([]interface{}, error) {
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%s expects %d arguments: %s", m.Name, len(m.Params), m.Format())
	}
	vals := make([]interface{}, len(args))
	for n, p := range m.Params {
		arg := args[n]
		if pos := strings.IndexByte(arg, '='); pos >= 0 && arg[:pos] == p.Name {
			arg = arg[pos+1:]
		}
		switch p.Type {
		case command.PTString:
			vals[n] = arg
		case command.PTBuffer:
			b, err := hex.DecodeString(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", p.Name, err)
			}
			vals[n] = b
		case command.PTInt32, command.PTInt16:
			v, err := strconv.ParseInt(arg, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", p.Name, err)
			}
			vals[n] = int32(v)
		default:
			v, err := strconv.ParseUint(arg, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", p.Name, err)
			}
			vals[n] = uint32(v)
		}
	}
	return vals, nil
}
