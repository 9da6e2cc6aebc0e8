package model

import (
	"strconv"
	"time"
)

// MessageField is the journal field carrying the log text.
const MessageField = "MESSAGE"

// LogRecord is one raw entry produced by a log source. The set of implementations is closed:
// JournalRecord, FileRecord and ContainerRecord. Only the message is used downstream.
type LogRecord interface {
	Message() (string, bool)
	Fields() map[string]string
	isLogRecord()
}

// JournalRecord holds every field of one journal entry, stringified.
type JournalRecord struct {
	Entry map[string]string
}

func (r JournalRecord) Message() (string, bool) {
	msg, ok := r.Entry[MessageField]
	return msg, ok
}

func (r JournalRecord) Fields() map[string]string { return r.Entry }

func (JournalRecord) isLogRecord() {}

// FileRecord is one trimmed line of a log file, stamped with the time it was read.
type FileRecord struct {
	ReadAt time.Time
	Line   string
}

func (r FileRecord) Message() (string, bool) { return r.Line, true }

func (r FileRecord) Fields() map[string]string {
	return map[string]string{
		"__REALTIME_TIMESTAMP": strconv.FormatInt(r.ReadAt.UnixMicro(), 10),
		MessageField:           r.Line,
	}
}

func (FileRecord) isLogRecord() {}

// ContainerRecord is one line of container output.
type ContainerRecord struct {
	Container string
	Line      string
}

func (r ContainerRecord) Message() (string, bool) { return r.Line, true }

func (r ContainerRecord) Fields() map[string]string {
	return map[string]string{
		"CONTAINER":  r.Container,
		MessageField: r.Line,
	}
}

func (ContainerRecord) isLogRecord() {}
