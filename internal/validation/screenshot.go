package validation

import (
	"fmt"
)

// ScreenshotConstraints defines validation rules for check-in screenshots.
var screenshotMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// MaxScreenshotSize caps check-in uploads at 5MB.
const MaxScreenshotSize = 5 << 20

// Screenshot validates a check-in image's declared type and size.
func Screenshot(mimeType string, size int) error {
	if size == 0 {
		return fmt.Errorf("screenshot is empty")
	}
	if size > MaxScreenshotSize {
		return fmt.Errorf("screenshot exceeds %d bytes", MaxScreenshotSize)
	}
	if !screenshotMimeTypes[mimeType] {
		return fmt.Errorf("unsupported screenshot type %q", mimeType)
	}
	return nil
}
