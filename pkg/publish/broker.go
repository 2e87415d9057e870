package publish

import "errors"

// splitHostPort splits "host:port" at the last colon.
func splitHostPort(addr string) (host, port string, err error) {
	colonIdx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			colonIdx = i
			break
		}
	}
	if colonIdx == -1 {
		return "", "", errors.New("missing port in address")
	}

	host = addr[:colonIdx]
	port = addr[colonIdx+1:]
	if host == "" {
		return "", "", errors.New("empty host")
	}
	if port == "" {
		return "", "", errors.New("empty port")
	}
	return host, port, nil
}

// parsePort converts a decimal port to uint16, returning 0 on bad input.
func parsePort(s string) uint16 {
	var port uint16
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		port = port*10 + uint16(s[i]-'0')
	}
	return port
}
