package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"golang.org/x/sys/unix"

	"github.com/robotalks/hostmcu/pkg/command"
	"github.com/robotalks/hostmcu/pkg/console"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell *ishell.Shell
	Path  string
	Conn  *Conn
}

// Conn is a connected firmware console.
type Conn struct {
	Ctx    context.Context
	Cancel func()
	Path   string
	Client *command.Client
	done   chan struct{}
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&RawCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell for the console at path.
func New(path string) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     time.Second,

		Shell: ishell.New(),
		Path:  path,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatDecoded prints a decoded message in the firmware's format style.
func FormatDecoded(d command.Decoded) string {
	parts := []string{d.Message.Name}
	for n, p := range d.Message.Params {
		var val string
		switch p.Type {
		case command.PTString:
			val = fmt.Sprintf("%q", d.Args.Bytes(n))
		case command.PTBuffer:
			val = hex.EncodeToString(d.Args.Bytes(n))
		case command.PTInt32, command.PTInt16:
			val = fmt.Sprintf("%d", d.Args.Int(n))
		default:
			val = fmt.Sprintf("%d", d.Args.Uint(n))
		}
		parts = append(parts, p.Name+"="+val)
	}
	return strings.Join(parts, " ")
}

// DecodedMap converts a decoded message for JSON output.
func DecodedMap(d command.Decoded) map[string]interface{} {
	out := map[string]interface{}{"name": d.Message.Name}
	for n, p := range d.Message.Params {
		switch p.Type {
		case command.PTString:
			out[p.Name] = string(d.Args.Bytes(n))
		case command.PTBuffer:
			out[p.Name] = hex.EncodeToString(d.Args.Bytes(n))
		case command.PTInt32, command.PTInt16:
			out[p.Name] = d.Args.Int(n)
		default:
			out[p.Name] = d.Args.Uint(n)
		}
	}
	return out
}

func (s *Shell) format(d command.Decoded) string {
	if s.OutputJSON {
		out, err := json.Marshal(DecodedMap(d))
		if err != nil {
			return err.Error()
		}
		return string(out)
	}
	return FormatDecoded(d)
}

// DoCommand sends a command and waits for the reply message, or sends it
// without waiting when reply is nil.
func DoCommand(c *ishell.Context, m, reply *command.Message, args ...interface{}) (err error) {
	s := ShellFrom(c)
	if s.Conn == nil {
		err = fmt.Errorf("not connected")
		c.Err(err)
		return
	}
	if reply == nil {
		if err = s.Conn.Client.Send(m, args...); err != nil {
			c.Err(err)
			return
		}
		c.Println("OK")
		return nil
	}
	call := s.Conn.Client.Do(m, reply, args...)
	select {
	case res := <-call.ResultChan():
		if res.Err != nil {
			c.Err(res.Err)
			return res.Err
		}
		c.Println(s.format(command.Decoded{Message: reply, Args: res.Args}))
	case <-time.After(s.Timeout):
		c.Err(fmt.Errorf("Command timeout"))
		return context.DeadlineExceeded
	}
	return nil
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// openConsole opens the pty slave exposed by the firmware.
func openConsole(path string) (io.ReadWriteCloser, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Connect connects the firmware console at path.
func (s *Shell) Connect(path string) error {
	rw, err := openConsole(path)
	if err != nil {
		return fmt.Errorf("open %s: %v", path, err)
	}
	conn := &Conn{Path: path, Client: command.NewClient(rw), done: make(chan struct{})}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	s.Disconnect()
	s.Conn = conn
	go func() {
		defer close(conn.done)
		conn.Client.Run(conn.Ctx)
	}()
	go s.printEvents(conn)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", path))
	return nil
}

func (s *Shell) printEvents(conn *Conn) {
	for {
		select {
		case d := <-conn.Client.EventChan():
			s.Shell.Println(s.format(d))
		case <-conn.done:
			return
		}
	}
}

// Disconnect disconnects current console.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		<-s.Conn.done
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Path != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Path)
		}
		if err := s.Connect(s.Path); err != nil {
			log.Fatalf("connect %q failed: %v", s.Path, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a firmware console.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PATH]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			path := s.Path
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			if err := s.Connect(path); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current console.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// RawCmd writes a raw line to the console, e.g. FORCE_SHUTDOWN.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "LINE",
		Func: MustBeConnected(func(c *ishell.Context) {
			line := strings.Join(c.Args, " ") + "\n"
			if err := ShellFrom(c).Conn.Client.Raw([]byte(line)); err != nil {
				c.Err(err)
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(console.Default().Path).WithAutoConnect(true).Run(flag.Args()...)
}
