// Package autoload initialises the global logger from LOG_ environment
// variables when imported for side effects.
package autoload

import (
	configx "github.com/tanpawarit/autoshop-agent/pkg/config"
	logx "github.com/tanpawarit/autoshop-agent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
