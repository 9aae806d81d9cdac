package sdk

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/hmgle/harcapture/pkg/capture"
	"github.com/hmgle/harcapture/pkg/har"
	"github.com/hmgle/harcapture/pkg/logger"
	"github.com/hmgle/harcapture/pkg/masking"
	"github.com/hmgle/harcapture/pkg/transport"
)

const (
	// Name and Version identify the creator of every archive
	Name    = "harcapture"
	Version = "0.1.0"

	maxIDLength = 128
)

var (
	ErrMissingAPIKey    = errors.New("api key is required")
	ErrInvalidAPIID     = errors.New("api id is invalid")
	ErrInvalidVersionID = errors.New("version id is invalid")
	ErrMissingSender    = errors.New("sender is required")
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_~]+$`)

// Config configures an SDK handle
type Config struct {
	APIKey    string
	APIID     string
	VersionID string

	// Port is the port the host application listens on. It is added to
	// recorded URLs when the Host header does not carry one.
	Port int

	// MaxCaptureSize is the byte ceiling shared by the request and response
	// bodies of one exchange. Zero selects capture.DefaultMaxCaptureSize.
	MaxCaptureSize int64

	Clock  har.Clock
	Sender transport.Sender
	Logger logger.Logger

	// DefaultMasks apply to every exchange before any per-request masks
	DefaultMasks []masking.Directive

	DecodeContentEncoding bool

	// SkipUnmatched drops exchanges no ServeMux pattern matched and no
	// handler gave a path hint for
	SkipUnmatched bool
}

// Validate checks the required fields and fills in defaults
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if err := validateID(c.APIID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAPIID, err)
	}
	if err := validateID(c.VersionID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVersionID, err)
	}
	if c.Sender == nil {
		return ErrMissingSender
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.MaxCaptureSize <= 0 {
		c.MaxCaptureSize = capture.DefaultMaxCaptureSize
	}
	if c.Clock == nil {
		c.Clock = har.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return nil
}

func validateID(id string) error {
	switch {
	case id == "":
		return errors.New("must not be empty")
	case len(id) > maxIDLength:
		return fmt.Errorf("must be at most %d characters", maxIDLength)
	case !idPattern.MatchString(id):
		return fmt.Errorf("%q may only contain letters, digits and . - _ ~", id)
	}
	return nil
}
