package mcu

import (
	"github.com/abiosoft/ishell"

	"github.com/robotalks/hostmcu/pkg/cli/sh"
	"github.com/robotalks/hostmcu/pkg/command"
)

func simpleCmd(name string, m, reply *command.Message, aliases ...string) ishell.Cmd {
	return ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    m.Format(),
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			args, err := sh.ParseArgs(m, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, m, reply, args...)
		}),
	}
}

var (
	// ClockCmd queries the current tick.
	ClockCmd = simpleCmd("clock", command.MsgGetClock, command.MsgClock)
	// UptimeCmd queries the 64-bit uptime.
	UptimeCmd = simpleCmd("uptime", command.MsgGetUptime, command.MsgUptime)
	// ConfigCmd queries the firmware config.
	ConfigCmd = simpleCmd("config", command.MsgGetConfig, command.MsgConfig)
	// EmergencyStopCmd shuts the firmware down.
	EmergencyStopCmd = simpleCmd("estop", command.MsgEmergencyStop, nil)
	// I2CConfigCmd binds an oid to a bus address.
	I2CConfigCmd = simpleCmd("i2c.config", command.MsgConfigI2C, nil, "i2cc")
	// I2CWriteCmd writes to an I2C device.
	I2CWriteCmd = simpleCmd("i2c.write", command.MsgI2CWrite, nil, "i2cw")
	// I2CReadCmd reads from an I2C device.
	I2CReadCmd = simpleCmd("i2c.read", command.MsgI2CRead, command.MsgI2CReadResponse, "i2cr")

	// ForceShutdownCmd sends the in-band force shutdown line.
	ForceShutdownCmd = ishell.Cmd{
		Name: "force-shutdown",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if err := sh.ShellFrom(c).Conn.Client.Raw([]byte("FORCE_SHUTDOWN\n")); err != nil {
				c.Err(err)
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&ClockCmd,
		&UptimeCmd,
		&ConfigCmd,
		&EmergencyStopCmd,
		&I2CConfigCmd,
		&I2CWriteCmd,
		&I2CReadCmd,
		&ForceShutdownCmd,
	)
}
