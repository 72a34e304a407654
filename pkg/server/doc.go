// Package server is the bootstrap and accept core of keystone.
//
// A Server resolves an address, binds a TCP listener, and runs an accept
// loop as a task on an executor. Every accepted socket becomes its own task:
// a ConnService built by the ServiceFactory is handed to the Protocol, which
// serves HTTP/1.x requests on the socket until it closes.
//
// Three entry points cover the common setups:
//
//	server.Start(ctx, server.HostPort("127.0.0.1:7878"), nh)           // one worker per CPU, blocks
//	server.StartWithThreads(ctx, server.HostPort(addr), nh, 4)         // explicit worker count, blocks
//	server.StartOnExecutor(ctx, server.HostPort(addr), nh, exec)       // caller's executor, returns at once
//
// Start and StartWithThreads return startup failures as errors.
// StartOnExecutor cannot, so failures inside its task go to Config.OnFatal,
// which by default logs and exits the process.
package server
