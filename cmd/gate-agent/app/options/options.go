package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/autogate/internal/gateagent"
	"github.com/autopeer-io/autogate/pkg/app"
	"github.com/autopeer-io/autogate/pkg/log"
	"github.com/autopeer-io/autogate/pkg/options"
)

type AgentOptions struct {
	GateOptions *options.GateOptions `json:"gate" mapstructure:"gate"`
	MqttOptions *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions *options.HttpOptions `json:"http" mapstructure:"http"`
	LinkOptions *options.LinkOptions `json:"link" mapstructure:"link"`
	Log         *log.Options         `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		GateOptions: options.NewGateOptions(),
		MqttOptions: options.NewMqttOptions(),
		HttpOptions: options.NewHttpOptions(),
		LinkOptions: options.NewLinkOptions(),
		Log:         log.NewOptions(),
	}
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.GateOptions.AddFlags(fss.FlagSet("gate"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.LinkOptions.AddFlags(fss.FlagSet("link"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete fills in values derived from other options.
func (o *AgentOptions) Complete() error {
	if o.MqttOptions.ClientID == "" && o.MqttOptions.Enabled() {
		o.MqttOptions.ClientID = "autogate-" + o.GateOptions.ID
	}
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.GateOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.LinkOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*gateagent.Config, error) {
	return &gateagent.Config{
		GateOptions: o.GateOptions,
		MqttOptions: o.MqttOptions,
		HttpOptions: o.HttpOptions,
		LinkOptions: o.LinkOptions,
	}, nil
}
