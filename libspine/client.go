package libspine

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

// NewClient returns a RESP client for a spine server reachable over "tcp" or
// "unix".
func NewClient(protocol, address string) (*redis.Client, error) {
	switch protocol {
	case "tcp", "unix":
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
	return redis.NewClient(&redis.Options{
		Network: protocol,
		Addr:    address,
	}), nil
}
