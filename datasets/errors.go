package datasets

import "fmt"

// Stage names the step of a fetch that failed.
type Stage string

const (
	StageIndex   Stage = "index"
	StageImage   Stage = "image"
	StageMask    Stage = "mask"
	StageCaption Stage = "caption"
)

// FetchError reports a failed Example call.
type FetchError struct {
	Index int
	Stage Stage
	// Path is the image the sample was built from, when known.
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("sample %d: %s: %v", e.Index, e.Stage, e.Err)
	}
	return fmt.Sprintf("sample %d (%s): %s: %v", e.Index, e.Path, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConfigError reports a dataset that could not be constructed.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "inpainting dataset configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes every ConfigError match ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
