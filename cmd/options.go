// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/luthersystems/varobj/expr"
	"github.com/luthersystems/varobj/target"
	"github.com/luthersystems/varobj/varobj"
)

// config is the decoded viper configuration shared by all commands.
type config struct {
	Image string `mapstructure:"image"`
	Log   struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Print struct {
		Values string `mapstructure:"values"`
	} `mapstructure:"print"`
	Eval struct {
		Latency time.Duration `mapstructure:"latency"`
	} `mapstructure:"eval"`
	DAP struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"dap"`
	Trace struct {
		Backend string `mapstructure:"backend"`
	} `mapstructure:"trace"`
}

func loadConfig(v *viper.Viper) (*config, error) {
	v.SetDefault("log.level", "warning")
	v.SetDefault("print.values", "1")
	v.SetDefault("dap.port", 4711)
	v.SetDefault("trace.backend", "none")
	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// session is a loaded debuggee with an engine observing it.
type session struct {
	target      *target.Target
	engine      *varobj.Engine
	log         *logrus.Logger
	printValues varobj.PrintValues
	// shutdown flushes the span backend.
	shutdown func(context.Context) error
}

// newSession loads the configured image and builds an engine for it. Logs
// are written to logOut.
func newSession(cfg *config, logOut io.Writer) (*session, error) {
	log := logrus.New()
	log.SetOutput(logOut)
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)

	pv, ok := varobj.ParsePrintValues(cfg.Print.Values)
	if !ok {
		return nil, fmt.Errorf("print.values: unknown value %q", cfg.Print.Values)
	}
	if cfg.Image == "" {
		return nil, fmt.Errorf("no debuggee image: set --image or the image config key")
	}
	tgt, err := target.LoadFile(cfg.Image)
	if err != nil {
		return nil, err
	}
	tracer, shutdown, err := newTracer(cfg.Trace.Backend, log)
	if err != nil {
		return nil, err
	}
	ev := expr.NewEvaluator(tgt, expr.WithLatency(cfg.Eval.Latency))
	engine := varobj.New(tgt, ev, varobj.WithLogger(log), varobj.WithTracer(tracer))
	log.WithFields(logrus.Fields{
		"image": cfg.Image,
		"trace": cfg.Trace.Backend,
	}).Debug("session ready")
	return &session{
		target:      tgt,
		engine:      engine,
		log:         log,
		printValues: pv,
		shutdown:    shutdown,
	}, nil
}

func (s *session) close() {
	if err := s.shutdown(context.Background()); err != nil {
		s.log.WithError(err).Error("shutdown tracing")
	}
}
