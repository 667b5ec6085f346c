// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "audiotools/internal/log"
)

// LoggingTransport writes each message as JSON at DEBUG level.
type LoggingTransport struct {
	log *applog.Logger
}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{log: applog.With("LoggingTransport")}
}

// Send never fails; values that cannot be marshalled are logged with %+v.
func (lt *LoggingTransport) Send(data any) error {
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		lt.log.Debugf("(%T) %+v", data, data)
		return nil
	}
	lt.log.Debugf("%s", jsonData)
	return nil
}

func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("Close called")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
