// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// DefaultLogFormat is the default format of the log.
const DefaultLogFormat = "text"

// InitLogger initializes the global logger. The engine only ever logs at
// debug level, so callers that never call this keep the default info-level
// logger and see nothing from the rewrite passes.
func InitLogger(level string) error {
	conf := &log.Config{Level: level, Format: DefaultLogFormat}
	lg, p, err := log.InitLogger(conf)
	if err != nil {
		return err
	}
	log.ReplaceGlobals(lg, p)
	return nil
}

// BgLogger returns the default global logger.
func BgLogger() *zap.Logger {
	return log.L()
}
