package mqtt

import "strings"

// DefaultTopicPrefix is the root of every chemspyd topic.
const DefaultTopicPrefix = "chemspyd"

// Command lifecycle phases used in command topics.
const (
	PhasePosted    = "posted"
	PhaseStarted   = "started"
	PhaseCompleted = "completed"
	PhaseFailed    = "failed"
)

// Topics builds chemspyd topic names under a prefix:
//
//	{prefix}/command/{name}/{phase}   command lifecycle events
//	{prefix}/status                   converted status readings (retained)
//	{prefix}/status/refresh           request an immediate status read
//	{prefix}/system/status            online/offline (retained, LWT)
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix; an empty prefix uses
// DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Command returns the topic for one lifecycle phase of a command.
//
// Example: chemspyd/command/transfer_liquid/completed
func (t Topics) Command(name, phase string) string {
	return t.Prefix() + "/command/" + name + "/" + phase
}

// AllCommands matches every command event.
func (t Topics) AllCommands() string {
	return t.Prefix() + "/command/+/+"
}

// Status returns the status reading topic.
func (t Topics) Status() string {
	return t.Prefix() + "/status"
}

// StatusRefresh returns the topic that triggers an immediate status read.
func (t Topics) StatusRefresh() string {
	return t.Prefix() + "/status/refresh"
}

// SystemStatus returns the online/offline topic.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}
