// Package source implements the Source Adapter of spec §4.C: a uniform
// file-access capability set over LOCAL, SMB and FTP endpoints, modeled as
// a closed kind-variant rather than open inheritance (§9), grounded on
// rclone's backend/local, backend/smb and backend/ftp.
package source

import (
	"fmt"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/monitor"
)

// Adapter is the common capability set consumed by the Worker/Supervisor
// (§4.C, §9): list/get/put/connect plus monitoring control.
type Adapter interface {
	List(subpath string) ([]string, error)
	Get(remote, local string) error
	Put(local, remote string) error
	Connect() error
	Disconnect() error
	IsConnected() bool

	StartMonitoring() error
	StopMonitoring()
	SetCallback(cb monitor.Callback)
}

// New constructs the Adapter for desc.Kind (§9: closed kind-variant
// dispatch, no open inheritance).
func New(desc config.SourceDescriptor, log *logging.Facade) (Adapter, error) {
	switch desc.Kind {
	case config.KindLocal:
		return newLocalAdapter(desc, log), nil
	case config.KindSMB:
		return newSMBAdapter(desc, log), nil
	case config.KindFTP:
		return newFTPAdapter(desc, log), nil
	default:
		return nil, fmt.Errorf("source: unsupported kind %q", desc.Kind)
	}
}
