// Package printer writes rendered receipt bytes to a thermal printer
// device. The device is an opaque writable target (a spooler share or a
// character device path); no printer discovery or driver handling happens
// here.
package printer

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no printer device path is set.
var ErrNotConfigured = errors.New("printer device not configured")

// Printer sends raw ESC/POS payloads to a configured device path.
type Printer struct {
	devicePath string
}

// New returns a Printer writing to devicePath. An empty path yields a
// printer that reports ErrNotConfigured on every Print, so deployments
// without a thermal printer can still use the document format.
func New(devicePath string) *Printer {
	return &Printer{devicePath: devicePath}
}

// Print writes the payload to the device in a single write.
func (p *Printer) Print(ctx context.Context, payload []byte) error {
	if p.devicePath == "" {
		return ErrNotConfigured
	}

	if err := os.WriteFile(p.devicePath, payload, 0o644); err != nil {
		return errors.Wrap(err, "write to printer device")
	}

	zctx.From(ctx).Info("Receipt sent to printer",
		zap.String("device", p.devicePath),
		zap.Int("bytes", len(payload)),
	)
	return nil
}
