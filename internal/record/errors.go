package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLoad marks any resource fetch failure.
var ErrLoad = errors.New("resource load error")

// LoadError reports a failed fetch of a single JSONL resource.
type LoadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *LoadError) Error() string {
	if e == nil {
		return ""
	}
	url := strings.TrimSpace(e.URL)
	if e.Err != nil {
		return fmt.Sprintf("load %s: %v", url, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("load %s: unexpected status %d", url, e.StatusCode)
	}
	return fmt.Sprintf("load %s: failed", url)
}

func (e *LoadError) Unwrap() error {
	return ErrLoad
}
