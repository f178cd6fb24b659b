package infrastructure

import (
	"refwallet/events"
)

// StreamName is the JetStream stream ledger events are written to
const StreamName = "refwallet_events"

const subjectPrefix = "refwallet.events."

// SubjectFor maps an event type to its NATS subject
func SubjectFor(eventType events.EventType) string {
	return subjectPrefix + string(eventType)
}

// AllSubjects returns the subjects of every event type
func AllSubjects() []string {
	types := events.AllEventTypes()
	subjects := make([]string, 0, len(types))
	for _, t := range types {
		subjects = append(subjects, SubjectFor(t))
	}
	return subjects
}
