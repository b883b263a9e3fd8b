package renderer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/huin/goupnp"
)

const (
	// ServiceAVTransport is the service whose events carry playback state.
	ServiceAVTransport = "urn:schemas-upnp-org:service:AVTransport:1"

	// DeviceMediaRenderer is the SSDP search target for renderers.
	DeviceMediaRenderer = "urn:schemas-upnp-org:device:MediaRenderer:1"
)

var (
	// ErrServiceNotFound is returned when a device has no AVTransport service.
	ErrServiceNotFound = errors.New("renderer has no AVTransport service")

	// ErrDeviceNotFound is returned when discovery finds no matching renderer.
	ErrDeviceNotFound = errors.New("no matching renderer found")
)

// Device describes a renderer and where to subscribe to its AVTransport events.
type Device struct {
	FriendlyName string
	UDN          string
	Location     string
	EventSubURL  *url.URL
}

// Describe fetches the device description at location.
func Describe(ctx context.Context, location string) (*Device, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid device location %q: %w", location, err)
	}

	root, err := goupnp.DeviceByURLCtx(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device description: %w", err)
	}

	return deviceFromRoot(root, loc)
}

func deviceFromRoot(root *goupnp.RootDevice, loc *url.URL) (*Device, error) {
	services := root.Device.FindService(ServiceAVTransport)
	if len(services) == 0 {
		return nil, fmt.Errorf("%s: %w", root.Device.FriendlyName, ErrServiceNotFound)
	}

	eventURL := services[0].EventSubURL.URL
	return &Device{
		FriendlyName: root.Device.FriendlyName,
		UDN:          root.Device.UDN,
		Location:     loc.String(),
		EventSubURL:  &eventURL,
	}, nil
}

// Discover runs an SSDP search for media renderers. Devices that fail to
// describe themselves are skipped.
func Discover(ctx context.Context) ([]Device, error) {
	found, err := goupnp.DiscoverDevicesCtx(ctx, DeviceMediaRenderer)
	if err != nil {
		return nil, fmt.Errorf("ssdp search failed: %w", err)
	}

	seen := make(map[string]bool)
	var devices []Device
	for _, maybe := range found {
		if maybe.Err != nil || maybe.Root == nil || maybe.Location == nil {
			continue
		}
		if seen[maybe.Location.String()] {
			continue
		}
		seen[maybe.Location.String()] = true

		dev, err := deviceFromRoot(maybe.Root, maybe.Location)
		if err != nil {
			continue
		}
		devices = append(devices, *dev)
	}

	return devices, nil
}

// Locate finds the description URL of a renderer by friendly name or UDN.
// UDN comparison ignores case.
func Locate(ctx context.Context, name, udn string) (string, error) {
	devices, err := Discover(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if udn != "" && strings.EqualFold(d.UDN, udn) {
			return d.Location, nil
		}
		if udn == "" && name != "" && d.FriendlyName == name {
			return d.Location, nil
		}
	}
	return "", ErrDeviceNotFound
}

// localAddrFor returns the local IP address the kernel would use to reach
// host. Nothing is sent.
func localAddrFor(host string) (string, error) {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "80")
	}
	conn, err := net.Dial("udp", host)
	if err != nil {
		return "", fmt.Errorf("failed to find local address for %s: %w", host, err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address %v", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
