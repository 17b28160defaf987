// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"io"

	charmlog "github.com/charmbracelet/log"
)

// charmLogger adapts a charmbracelet logger to depscout's log.Logger
// interface so library code stays backend-agnostic.
type charmLogger struct {
	l *charmlog.Logger
}

// newLogger creates a leveled logger with timestamp formatting that writes
// to w.
func newLogger(w io.Writer, level charmlog.Level) *charmLogger {
	return &charmLogger{l: charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})}
}

func (c *charmLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }
func (c *charmLogger) Error(args ...any)                 { c.l.Error(fmt.Sprint(args...)) }
func (c *charmLogger) Warnf(format string, args ...any)  { c.l.Warnf(format, args...) }
func (c *charmLogger) Warn(args ...any)                  { c.l.Warn(fmt.Sprint(args...)) }
func (c *charmLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }
func (c *charmLogger) Info(args ...any)                  { c.l.Info(fmt.Sprint(args...)) }
func (c *charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c *charmLogger) Debug(args ...any)                 { c.l.Debug(fmt.Sprint(args...)) }
