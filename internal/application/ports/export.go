package ports

import "context"

// Exporter writes a serialized tunnel config to an export target
type Exporter interface {
	Export(ctx context.Context, target string, data []byte) error
}
