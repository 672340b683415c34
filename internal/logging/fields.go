package logging

import "github.com/sirupsen/logrus"

// BaseFields is the action + config path pair every CLI log line carries.
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RetrieveFields describes one retrieval outcome.
func RetrieveFields(strategy, objectType, objectID, driver string, elapsedMs int64) logrus.Fields {
	return logrus.Fields{
		"strategy":    strategy,
		"object_type": objectType,
		"object_id":   objectID,
		"driver":      driver,
		"elapsed_ms":  elapsedMs,
	}
}
