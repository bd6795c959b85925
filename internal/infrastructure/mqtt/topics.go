package mqtt

import "fmt"

// TopicPrefix is the root of every console topic.
const TopicPrefix = "console"

// Topics provides builders for console MQTT topics.
// Using these helpers keeps topic naming consistent between the agent and
// whatever consumes its events.
//
//	topics := mqtt.Topics{}
//	topics.SessionEvents() // "console/session/events"
type Topics struct{}

// SessionEvents returns the topic for session lifecycle events.
func (Topics) SessionEvents() string {
	return TopicPrefix + "/session/events"
}

// SessionState returns the retained topic holding the current session state.
func (Topics) SessionState() string {
	return TopicPrefix + "/session/state"
}

// SessionCommand returns the topic the agent listens on for operator commands.
func (Topics) SessionCommand() string {
	return TopicPrefix + "/session/command"
}

// AgentStatus returns the online/offline status topic for one agent.
//
// Example: console/agent/admin-console/status
func (Topics) AgentStatus(clientID string) string {
	return fmt.Sprintf("%s/agent/%s/status", TopicPrefix, clientID)
}

// AllSession returns a wildcard matching every session topic.
func (Topics) AllSession() string {
	return TopicPrefix + "/session/#"
}
