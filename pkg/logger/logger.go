package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"autoshop-agent"`

	// Output overrides stdout. Not read from the environment.
	Output io.Writer `ignored:"true"`
}

var DefaultConfig = &Config{
	Service: "autoshop-agent",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

func Init(opts ...Config) {
	conf := safe(opts...)

	var out io.Writer = os.Stdout
	if conf.Output != nil {
		out = conf.Output
	}
	if conf.PrettyFormat {
		out = zerolog.ConsoleWriter{Out: out}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if service := strings.TrimSpace(conf.Service); service != "" {
		ctx = ctx.Str("service", service)
	}
	log.Logger = ctx.Logger()

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

// Dispatch returns a child of the global logger tagged with the capability a
// request was routed to and the rule that picked it.
func Dispatch(capability, rule string) zerolog.Logger {
	return log.With().
		Str("capability", capability).
		Str("rule", rule).
		Logger()
}
