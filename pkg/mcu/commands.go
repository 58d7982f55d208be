package mcu

import (
	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/clock"
	"github.com/robotalks/hostmcu/pkg/command"
	"github.com/robotalks/hostmcu/pkg/i2c"
)

func (r *Runtime) cmdGetClock(command.Args) {
	r.Layer.Sendf(r.clockResp, r.Clock.ReadTime())
}

func (r *Runtime) cmdGetUptime(command.Args) {
	up := r.Clock.Uptime()
	r.Layer.Sendf(r.uptimeResp, uint32(up>>32), uint32(up))
}

func (r *Runtime) cmdGetConfig(command.Args) {
	r.Layer.Sendf(r.configResp, r.Sched.IsShutdown(), uint32(clock.ClockFreq))
}

func (r *Runtime) cmdEmergencyStop(command.Args) {
	r.Sched.Shutdown("Command request")
}

func (r *Runtime) cmdConfigI2C(args command.Args) {
	oid, bus, addr := uint8(args.Uint(0)), args.Uint(1), args.Uint(2)
	if r.oids[oid] != nil {
		r.Sched.Shutdown("Can't assign oid")
		return
	}
	if addr > 0x7f {
		r.Sched.Shutdown("Invalid i2c address")
		return
	}
	dev, err := r.I2C.Open(bus, uint16(addr))
	if err != nil {
		glog.Errorf("config_i2c: %v", err)
		r.Sched.Shutdown("Unable to open i2c device")
		return
	}
	r.oids[oid] = dev
}

func (r *Runtime) prepareI2C(dev *i2c.Device, write []byte, readLen int) bool {
	if err := dev.Prepare(write, readLen); err != nil {
		glog.Errorf("i2c %d:%#x: %v", dev.Key.Bus, dev.Key.Addr, err)
		r.Sched.Shutdown("i2c transaction rejected")
		return false
	}
	return true
}

func (r *Runtime) cmdI2CWrite(args command.Args) {
	dev := r.lookupI2C(uint8(args.Uint(0)))
	if dev == nil {
		return
	}
	if r.i2cSync {
		if err := dev.Write(args.Bytes(1)); err != nil {
			glog.Errorf("i2c %d:%#x: %v", dev.Key.Bus, dev.Key.Addr, err)
			r.Sched.Shutdown("Unable to write i2c device")
		}
		return
	}
	if !r.prepareI2C(dev, args.Bytes(1), 0) {
		return
	}
	dev.Async(nil)
}

// I2CReadMax is the largest read whose i2c_read_response fits in one
// block: message id, a two byte oid and the buffer length.
const I2CReadMax = command.MessagePayloadMax - 4

func (r *Runtime) cmdI2CRead(args command.Args) {
	oid, readLen := uint8(args.Uint(0)), int(args.Uint(2))
	dev := r.lookupI2C(oid)
	if dev == nil {
		return
	}
	if readLen > I2CReadMax {
		r.Sched.Shutdown("Message encode error")
		return
	}
	if r.i2cSync {
		data := make([]byte, readLen)
		if err := dev.Read(args.Bytes(1), data); err != nil {
			glog.Errorf("i2c %d:%#x: %v", dev.Key.Bus, dev.Key.Addr, err)
			r.Sched.Shutdown("Unable to read i2c device")
			return
		}
		r.Layer.Sendf(r.i2cReadResp, oid, data)
		return
	}
	if !r.prepareI2C(dev, args.Bytes(1), readLen) {
		return
	}
	dev.Async(func(d *i2c.Device) {
		r.Layer.Sendf(r.i2cReadResp, oid, d.ReadData())
	})
}
