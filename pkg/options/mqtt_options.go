package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/autogate/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for the authorization bridge connection.
// An empty Broker runs the agent without a bridge.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// Client behavior
	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// InsecureSkipVerify controls whether a client verifies the server's certificate chain and host name.
	// This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// TopicRoot is the namespace of every bridge topic: {TopicRoot}/{segment}/{gateID}.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	// Liveness probing of the bridge.
	ProbeInterval time.Duration `json:"probe-interval" mapstructure:"probe-interval"`
	ProbeTimeout  time.Duration `json:"probe-timeout" mapstructure:"probe-timeout"`

	// PublishTimeout bounds a single request publish, acknowledgement included.
	PublishTimeout time.Duration `json:"publish-timeout" mapstructure:"publish-timeout"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:             "",
		KeepAlive:          20 * time.Second,
		ConnectTimeout:     5 * time.Second,
		ReconnectBackoff:   3 * time.Second,
		SessionExpiry:      60,
		CleanStart:         true,
		InsecureSkipVerify: false,
		TopicRoot:          "parking/v1",
		ProbeInterval:      2 * time.Second,
		ProbeTimeout:       100 * time.Millisecond,
		PublishTimeout:     time.Second,
	}
}

// Enabled reports whether a bridge broker is configured.
func (o *MqttOptions) Enabled() bool {
	return o != nil && o.Broker != ""
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errors := []error{}

	if o.TopicRoot == "" {
		errors = append(errors, fmt.Errorf("--mqtt.topic-root must not be empty"))
	}
	if o.ProbeInterval <= 0 {
		errors = append(errors, fmt.Errorf("--mqtt.probe-interval must be positive"))
	}
	if o.ProbeTimeout <= 0 || o.ProbeTimeout >= o.ProbeInterval {
		errors = append(errors, fmt.Errorf("--mqtt.probe-timeout must be positive and shorter than --mqtt.probe-interval"))
	}
	if o.PublishTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--mqtt.publish-timeout must be positive"))
	}

	return errors
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker. Empty runs without an authorization bridge.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit Client ID (optional, derived from the gate id).")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.DurationVar(&o.ReconnectBackoff, "mqtt.reconnect-backoff", o.ReconnectBackoff, "Delay between MQTT reconnection attempts.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Start a clean MQTT session on first connect.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")

	fs.StringVar(&o.TopicRoot, "mqtt.topic-root", o.TopicRoot, "Namespace of every bridge topic.")
	fs.DurationVar(&o.ProbeInterval, "mqtt.probe-interval", o.ProbeInterval, "Interval between bridge liveness probes.")
	fs.DurationVar(&o.ProbeTimeout, "mqtt.probe-timeout", o.ProbeTimeout, "Time a liveness probe may wait for the broker acknowledgement.")
	fs.DurationVar(&o.PublishTimeout, "mqtt.publish-timeout", o.PublishTimeout, "Time a request publish may wait for the broker acknowledgement.")
}

func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           o.ClientID,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		ConnectTimeout:     o.ConnectTimeout,
		ReconnectBackoff:   o.ReconnectBackoff,
		SessionExpiry:      o.SessionExpiry,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}
}
