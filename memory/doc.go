// Package memory is the durable conversation store.
//
// Persistence model:
//   - Threads, messages and the resource → thread index live in a pebble database.
//   - Messages are stored in the canonical shape and upserted by id.
//   - Working memory is kept in thread metadata under "workingMemory".
//   - Recall combines the thread's most recent messages with a lexical match over the
//     resource's (or thread's) history.
package memory
