package watchdog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	bytes.Buffer
	closed bool
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

type fakeClock struct {
	now uint32
}

func (c *fakeClock) ReadTime() uint32 { return c.now }

func TestFeedInterval(t *testing.T) {
	clk := &fakeClock{now: ^uint32(0) - Period/2}
	dev := &fakeDevice{}
	w := New(dev, clk)

	w.Task()
	require.Empty(t, dev.String())

	clk.now += Period - 1
	w.Task()
	require.Empty(t, dev.String())

	// crosses the 32-bit wraparound
	clk.now++
	w.Task()
	require.Equal(t, ".", dev.String())

	clk.now += Period / 2
	w.Task()
	require.Equal(t, ".", dev.String())
	clk.now += Period / 2
	w.Task()
	require.Equal(t, "..", dev.String())

	require.NoError(t, w.Close())
	require.Equal(t, "..V", dev.String())
	require.True(t, dev.closed)
}

func TestOpen(t *testing.T) {
	dir, err := os.MkdirTemp("", "watchdog")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "watchdog")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	w, err := Open(path, &fakeClock{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, ".V", string(content))

	_, err = Open(filepath.Join(dir, "missing"), &fakeClock{})
	require.Error(t, err)
}
