// Package realtime pushes task changes to a user's open WebSocket
// connections.
//
// Each authenticated connection joins its user's feed on the Hub. The Hub
// implements tasks.Publisher; publishing never blocks and drops events for
// clients whose queues are full.
package realtime
