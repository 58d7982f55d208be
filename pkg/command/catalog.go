package command

// Messages shared by the firmware and the host client.
var (
	MsgGetUptime = &Message{ID: 1, Name: "get_uptime"}
	MsgUptime    = &Message{ID: 2, Name: "uptime", Params: []Param{
		{Name: "high", Type: PTUint32},
		{Name: "clock", Type: PTUint32},
	}}
	MsgGetClock = &Message{ID: 3, Name: "get_clock"}
	MsgClock    = &Message{ID: 4, Name: "clock", Params: []Param{
		{Name: "clock", Type: PTUint32},
	}}
	MsgGetConfig = &Message{ID: 5, Name: "get_config"}
	MsgConfig    = &Message{ID: 6, Name: "config", Params: []Param{
		{Name: "is_shutdown", Type: PTByte},
		{Name: "clock_freq", Type: PTUint32},
	}}
	MsgEmergencyStop = &Message{ID: 7, Name: "emergency_stop"}
	MsgShutdown      = &Message{ID: 8, Name: "shutdown", Params: []Param{
		{Name: "clock", Type: PTUint32},
		{Name: "reason", Type: PTString},
	}}
	MsgIsShutdown = &Message{ID: 9, Name: "is_shutdown", Params: []Param{
		{Name: "reason", Type: PTString},
	}}
	MsgConfigI2C = &Message{ID: 10, Name: "config_i2c", Params: []Param{
		{Name: "oid", Type: PTByte},
		{Name: "bus", Type: PTUint32},
		{Name: "addr", Type: PTUint32},
	}}
	MsgI2CWrite = &Message{ID: 11, Name: "i2c_write", Params: []Param{
		{Name: "oid", Type: PTByte},
		{Name: "data", Type: PTBuffer},
	}}
	MsgI2CRead = &Message{ID: 12, Name: "i2c_read", Params: []Param{
		{Name: "oid", Type: PTByte},
		{Name: "reg", Type: PTBuffer},
		{Name: "read_len", Type: PTUint32},
	}}
	MsgI2CReadResponse = &Message{ID: 13, Name: "i2c_read_response", Params: []Param{
		{Name: "oid", Type: PTByte},
		{Name: "response", Type: PTBuffer},
	}}
)

// Default is the dictionary of all known messages.
var Default = NewDictionary(
	MsgGetUptime, MsgUptime,
	MsgGetClock, MsgClock,
	MsgGetConfig, MsgConfig,
	MsgEmergencyStop, MsgShutdown, MsgIsShutdown,
	MsgConfigI2C, MsgI2CWrite, MsgI2CRead, MsgI2CReadResponse,
)
