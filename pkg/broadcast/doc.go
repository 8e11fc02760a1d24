// Package broadcast is the cross-instance publish/subscribe channel used to
// propagate session lifecycle events (token refreshed, logout, revocation,
// suspicious activity) between every open instance of an application origin
// without a server round-trip.
//
// Three interchangeable backends implement Channel, selected at construction
// time so the session manager stays decoupled from the transport:
//
//   - EventBusChannel – in-process delivery over github.com/asaskevich/EventBus,
//     for instances sharing one process.
//   - RedisChannel – Redis pub/sub for instances in separate processes.
//   - StoreWatcher – storage-mutation fallback that polls the shared store,
//     for environments where no real bus is available.
//
// Delivery is best-effort and unordered across instances. Receivers must
// ignore messages carrying their own tab ID.
package broadcast
