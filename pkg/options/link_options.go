package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*LinkOptions)(nil)

// LinkOptions configures the vehicle link transport served next to the
// operator API.
type LinkOptions struct {
	// Path is the HTTP path upgraded to the websocket link.
	Path string `json:"path" mapstructure:"path"`

	HandshakeTimeout time.Duration `json:"handshake-timeout" mapstructure:"handshake-timeout"`
	WriteTimeout     time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// IdleTimeout drops a peer that sends nothing for this long. Zero disables it.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
}

func NewLinkOptions() *LinkOptions {
	return &LinkOptions{
		Path:             "/link",
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     time.Second,
		IdleTimeout:      30 * time.Second,
	}
}

func (o *LinkOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if !strings.HasPrefix(o.Path, "/") {
		errors = append(errors, fmt.Errorf("--link.path must start with '/'"))
	}
	if o.WriteTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--link.write-timeout must be positive"))
	}
	if o.IdleTimeout < 0 {
		errors = append(errors, fmt.Errorf("--link.idle-timeout must not be negative"))
	}

	return errors
}

func (o *LinkOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "link.path", o.Path, "HTTP path of the vehicle websocket link.")
	fs.DurationVar(&o.HandshakeTimeout, "link.handshake-timeout", o.HandshakeTimeout, "Timeout of the websocket upgrade handshake.")
	fs.DurationVar(&o.WriteTimeout, "link.write-timeout", o.WriteTimeout, "Deadline for writing one frame to the vehicle.")
	fs.DurationVar(&o.IdleTimeout, "link.idle-timeout", o.IdleTimeout, "Drop a vehicle link that stays silent this long (0 disables).")
}
