package main

//go-build: CGO_ENABLED=0

import (
	"errors"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/hostmcu/pkg/console"
	"github.com/robotalks/hostmcu/pkg/framework"
	"github.com/robotalks/hostmcu/pkg/i2c"
	"github.com/robotalks/hostmcu/pkg/mcu"
	"github.com/robotalks/hostmcu/pkg/sched"
	"github.com/robotalks/hostmcu/pkg/status"
)

func init() {
	mcu.SetupFlags()
	status.SetupFlags()
}

func run() error {
	conf := mcu.DefaultConfig()
	pty, err := console.OpenPTY(conf.Console.Path)
	if err != nil {
		return err
	}
	// the console closes the pty when it stops, this covers setup failures
	defer func() {
		if err := pty.Close(); err != nil {
			glog.Warningf("close pty: %v", err)
		}
	}()

	rt, err := mcu.New(conf, pty, i2c.Linux())
	if err != nil {
		return err
	}
	runner := framework.NewRunner().HandleSignals()
	reporter, err := status.Default().NewReporter()
	if err != nil {
		return err
	}
	if reporter != nil {
		rt.Reporter = reporter
		runner.Go(framework.NamedRun("status", reporter))
	}
	runner.Go(framework.NamedRun("mcu", rt))
	return runner.Wait()
}

func main() {
	flag.Parse()

	err := run()
	if err == nil {
		glog.Flush()
		return
	}
	var shutdownErr *sched.ShutdownError
	if errors.As(err, &shutdownErr) {
		glog.Errorf("firmware shutdown: %s", shutdownErr.Reason)
	} else {
		glog.Errorf("%v", err)
	}
	glog.Flush()
	os.Exit(1)
}
