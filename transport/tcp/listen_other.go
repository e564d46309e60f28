//go:build !linux
// +build !linux

package tcp

import "net"

// listenTCP ignores backlog; the runtime picks the queue depth.
func listenTCP(ip net.IP, port, _ int) (*net.TCPListener, error) {
	return net.ListenTCP("tcp4", &net.TCPAddr{IP: ip, Port: port})
}
