//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// listen opens the single-instance message-mode duplex named pipe.
func listen(name string) (net.Listener, error) {
	return winio.ListenPipe(name, &winio.PipeConfig{
		MessageMode:      true,
		InputBufferSize:  BufferSize,
		OutputBufferSize: BufferSize,
	})
}

// dial connects a controller-side client to the pipe.
func dial(name string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(name, &timeout)
}
