// Package registry owns the connection state of every configured provider.
//
// # State Machine
//
// Each provider moves Disconnected → Connecting → Connected. A failed or cancelled login moves
// Connecting → Error → Disconnected, and observers registered with [Registry.Watch] see both steps.
// Connection state only changes through [Registry.Connect], [Registry.Disconnect] and [Registry.Restore];
// nothing else flips it.
//
// # Selection
//
// One Connected provider can be selected as the sync source. Any other Connected provider can be added
// to the compare set, which is always a subset of the Connected providers and never contains the selection.
// A provider leaving Connected drops out of both.
//
// # Tokens
//
// Tokens are persisted through the token store on connect and cleared on disconnect. Adapters that refresh
// tokens on their own report them through [services.TokenNotifier] and the registry persists the new token.
package registry
