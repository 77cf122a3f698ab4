package export

import (
	"context"
	"errors"
	"strings"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
)

// S3Scheme marks targets handed to the object store exporter
const S3Scheme = "s3://"

// ErrS3Disabled is returned for s3:// targets when no S3 exporter is set up
var ErrS3Disabled = errors.New("S3 export is not configured")

// Router sends s3:// targets to the object store exporter and everything
// else to the file exporter.
type Router struct {
	File ports.Exporter
	S3   ports.Exporter
}

var _ ports.Exporter = (*Router)(nil)

func (r *Router) Export(ctx context.Context, target string, data []byte) error {
	if strings.HasPrefix(target, S3Scheme) {
		if r.S3 == nil {
			return ErrS3Disabled
		}
		return r.S3.Export(ctx, target, data)
	}
	return r.File.Export(ctx, target, data)
}
