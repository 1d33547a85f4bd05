// Package gitproto drives the Git Smart HTTP exchange: pkt-line framing of
// the service announcement and the go-git engine behind the advertisement,
// upload-pack and receive-pack endpoints.
package gitproto

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Service is one of the two Smart HTTP services.
type Service string

const (
	UploadPack  Service = transport.UploadPackServiceName
	ReceivePack Service = transport.ReceivePackServiceName
)

// ParseService validates the service query parameter.
func ParseService(name string) (Service, error) {
	switch Service(name) {
	case UploadPack, ReceivePack:
		return Service(name), nil
	case "":
		return "", fmt.Errorf("service parameter is required")
	default:
		return "", fmt.Errorf("unsupported service %q", name)
	}
}

func (s Service) String() string {
	return string(s)
}

// AdvertisementContentType is the Content-Type of an info/refs response.
func (s Service) AdvertisementContentType() string {
	return "application/x-" + string(s) + "-advertisement"
}

// ResultContentType is the Content-Type of a negotiation response.
func (s Service) ResultContentType() string {
	return "application/x-" + string(s) + "-result"
}

// RequestContentType is the Content-Type a client sends with a negotiation request.
func (s Service) RequestContentType() string {
	return "application/x-" + string(s) + "-request"
}
