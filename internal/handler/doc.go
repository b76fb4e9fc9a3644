// Package handler implements the HTTP control API of a running network.
//
// The controller owns every command sender and the data channels it took
// before Start. ControlHandler exposes them over HTTP so an operator can
// crash nodes, inject packets, change drop rates and rewire neighbors while
// the network runs.
//
// # Routes
//
//	GET    /api/topology                      validated topology
//	GET    /api/nodes                         running nodes and exit reports
//	POST   /api/nodes/{id}/crash              stop one node
//	POST   /api/nodes/{id}/send               originate a packet
//	PUT    /api/nodes/{id}/pdr                set the packet drop rate
//	PUT    /api/nodes/{id}/neighbors/{nb}     give id a sender to nb
//	DELETE /api/nodes/{id}/neighbors/{nb}     drop id's sender to nb
//	GET    /api/runs                          recorded runs (with a ledger)
//	GET    /api/runs/{id}                     one run with its node exits
//
// Errors are returned as JSON with {error, details}.
package handler
