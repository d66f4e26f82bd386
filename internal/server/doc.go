// Package server captures the OAuth authorization redirect on a loopback port.
//
// # Callback Listener
//
// [CallbackListener] is a one-shot TCP server speaking just enough HTTP to answer a browser redirect.
// It accepts connections until one yields a request line with at least a method and a path, replies
// with a fixed confirmation page, and returns the absolute redirect URL rebuilt from the Host header
// and request path.
//
// Malformed requests (favicon noise, port scanners, half-closed sockets) are answered with a 400 and
// the listener keeps waiting. Bind failures are returned immediately as [shared.ErrListenerBind];
// an expired context is returned as [shared.ErrTimeout].
//
// After responding the socket is held open briefly so the browser can finish rendering before the
// connection drops.
//
// # Authorization Code
//
// [ParseAuthorizationCode] extracts the code from a redirect URL, whether it came from the listener
// or was pasted by the user, validating the state parameter and surfacing provider errors.
package server
