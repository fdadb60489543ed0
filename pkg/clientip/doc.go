// Package clientip resolves the address of the client behind an HTTP
// request, honouring the usual reverse-proxy headers.
//
//	r.Use(clientip.Middleware)
//	...
//	ip := clientip.FromContext(r.Context())
//
// The headers are only as trustworthy as the proxy in front of the server.
// Deployments exposed directly to clients should call FromHeaders with no
// headers so that only RemoteAddr is used.
package clientip
