package memory

import (
	"fmt"
	"time"
)

// Key layout:
//
//	t:<thread>                          thread record
//	r:<resource>:t:<thread>             resource → thread index
//	m:<thread>:<createdAt nanos>:<id>   message record, ordered by creation time
//	mi:<id>                             message id → message key
//	im:<resource>:<savedAt nanos>:<id>  important memory note
const (
	threadPrefix    = "t:"
	resourcePrefix  = "r:"
	messagePrefix   = "m:"
	msgIndexPrefix  = "mi:"
	importantPrefix = "im:"
)

func threadKey(threadID string) []byte {
	return []byte(threadPrefix + threadID)
}

func resourceThreadKey(resourceID, threadID string) []byte {
	return []byte(resourceThreadPrefix(resourceID) + threadID)
}

func resourceThreadPrefix(resourceID string) string {
	return resourcePrefix + resourceID + ":t:"
}

func messageKey(threadID string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", threadMessagePrefix(threadID), createdAt.UnixNano(), id))
}

func threadMessagePrefix(threadID string) string {
	return messagePrefix + threadID + ":"
}

func messageIndexKey(id string) []byte {
	return []byte(msgIndexPrefix + id)
}

func importantKey(resourceID string, savedAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", importantResourcePrefix(resourceID), savedAt.UnixNano(), id))
}

func importantResourcePrefix(resourceID string) string {
	return importantPrefix + resourceID + ":"
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
