// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/core"
)

func TestConfigureLogging(t *testing.T) {
	c := qt.New(t)
	level, formatter := log.GetLevel(), log.StandardLogger().Formatter
	c.Cleanup(func() {
		log.SetLevel(level)
		log.SetFormatter(formatter)
	})

	c.Assert(core.ConfigureLogging(core.LoggingConfiguration{Level: "debug", Format: "json"}), qt.IsNil)
	c.Assert(log.GetLevel(), qt.Equals, log.DebugLevel)
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	c.Assert(isJSON, qt.IsTrue)

	c.Assert(core.ConfigureLogging(core.LoggingConfiguration{}), qt.IsNil)
	c.Assert(log.GetLevel(), qt.Equals, log.InfoLevel)
	_, isText := log.StandardLogger().Formatter.(*log.TextFormatter)
	c.Assert(isText, qt.IsTrue)
}

func TestConfigureLoggingErrors(t *testing.T) {
	c := qt.New(t)
	level := log.GetLevel()
	c.Cleanup(func() { log.SetLevel(level) })

	err := core.ConfigureLogging(core.LoggingConfiguration{Level: "loud"})
	c.Assert(err, qt.ErrorMatches, `not a valid logrus Level: "loud"`)

	err = core.ConfigureLogging(core.LoggingConfiguration{Level: "warn", Format: "xml"})
	c.Assert(err, qt.ErrorMatches, `unknown log format "xml"`)
	c.Assert(log.GetLevel(), qt.Equals, level)
}
