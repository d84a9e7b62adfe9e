package net

import (
	"fmt"
	"log"
	"net"
)

// ShareScheme prefixes share links handed to joining users.
const ShareScheme = "boardsync://"

// ShareLink builds the join link for a room hosted on this machine.
func ShareLink(ip string, port int, roomID string) string {
	return fmt.Sprintf("%s%s:%d/%s", ShareScheme, ip, port, roomID)
}

// OutgoingIP finds the preferred local IP address for the host to share.
func OutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// No internet; fall back to checking local interfaces.
		return localIPFallback()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// localIPFallback is used on networks without internet access.
func localIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	log.Println("No suitable local IP found, link generation may fail.")
	return "127.0.0.1", nil
}
