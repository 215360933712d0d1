//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Named pipes are Windows-only. Elsewhere the bridge listens on a Unix
// socket derived from the pipe name, so the controller and the test suite
// run on any platform. Message boundaries follow write boundaries for the
// small frames this protocol uses; responses still carry their NUL
// terminator.

func socketPath(name string) string {
	base := name
	if i := strings.LastIndexByte(base, '\\'); i >= 0 {
		base = base[i+1:]
	}
	return filepath.Join(os.TempDir(), base+".sock")
}

func listen(name string) (net.Listener, error) {
	path := socketPath(name)
	os.Remove(path)
	return net.Listen("unix", path)
}

func dial(name string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath(name), timeout)
}
